package imports

import (
	"strings"
	"testing"
)

func parseCSV(t *testing.T, text string) [][]string {
	t.Helper()
	rows, err := ParseRows([]byte(text), ".csv")
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	return rows
}

func TestParseRowsCSV(t *testing.T) {
	rows := parseCSV(t, "Name,Grade\nAhmed,5\nSara,3\n")
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0][0] != "Name" || rows[2][1] != "3" {
		t.Fatalf("unexpected cells: %v", rows)
	}
}

func TestParseRowsCSVRaggedRows(t *testing.T) {
	rows := parseCSV(t, "a,b,c\n1,2\n1,2,3,4\n")
	if len(rows) != 3 || len(rows[1]) != 2 || len(rows[2]) != 4 {
		t.Fatalf("ragged rows not preserved: %v", rows)
	}
}

func TestParseRowsUnsupportedExt(t *testing.T) {
	if _, err := ParseRows([]byte("x"), ".txt"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestAnalyzeNoUsableData(t *testing.T) {
	for _, text := range []string{"", "Name,Grade\n"} {
		rows := parseCSV(t, text)
		if _, err := Analyze(rows, nil); err != ErrNoUsableData {
			t.Errorf("Analyze(%q) error = %v, want ErrNoUsableData", text, err)
		}
	}
}

func TestAnalyzeMapping(t *testing.T) {
	rows := parseCSV(t, strings.Join([]string{
		"Student Name,Gender,Date of Birth,Grade,Enrollment Date,Fees,Parent Job",
		"Ahmed Ali,male,2015-03-10,5,2024-09-01,1000,engineer",
	}, "\n"))
	result, err := Analyze(rows, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.TotalRows != 1 {
		t.Fatalf("TotalRows = %d, want 1", result.TotalRows)
	}
	if len(result.MissingRequired) != 0 {
		t.Fatalf("MissingRequired = %v, want none", result.MissingRequired)
	}
	byExcel := make(map[string]ColumnMapping)
	for _, m := range result.Mapping {
		byExcel[m.ExcelColumn] = m
	}
	if m := byExcel["Student Name"]; m.DBColumn != "full_name" || !m.IsRequired {
		t.Errorf("Student Name mapped to %+v", m)
	}
	if m := byExcel["Fees"]; m.DBColumn != "fees" || m.DataType != TypeNumeric {
		t.Errorf("Fees mapped to %+v", m)
	}
	// Unmatched header gets a sanitized name and a sample-based type.
	if m := byExcel["Parent Job"]; m.DBColumn != "parent_job" || m.DataType != TypeText {
		t.Errorf("Parent Job mapped to %+v", m)
	}
	// Unknown schema: every guessed column is new.
	if len(result.NewColumns) != len(result.Mapping) {
		t.Errorf("NewColumns = %v, want all %d columns", result.NewColumns, len(result.Mapping))
	}
}

func TestAnalyzeMissingRequired(t *testing.T) {
	rows := parseCSV(t, "Student Name,Fees\nAhmed,1000\n")
	result, err := Analyze(rows, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	want := map[string]bool{"gender": true, "birth_date": true, "grade_level": true, "enrollment_date": true}
	if len(result.MissingRequired) != len(want) {
		t.Fatalf("MissingRequired = %v, want %v", result.MissingRequired, want)
	}
	for _, field := range result.MissingRequired {
		if !want[field] {
			t.Errorf("unexpected missing field %q", field)
		}
	}
}

func TestAnalyzeNewColumnsAgainstSchema(t *testing.T) {
	rows := parseCSV(t, "Student Name,Parent Job\nAhmed,engineer\n")
	existing := map[string]bool{"full_name": true, "gender": true}
	result, err := Analyze(rows, existing)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(result.NewColumns) != 1 || result.NewColumns[0] != "parent_job" {
		t.Fatalf("NewColumns = %v, want [parent_job]", result.NewColumns)
	}
}

func TestAnalyzeNewColumnsDeduplicated(t *testing.T) {
	// Both headers guess full_name; it must be reported as new only once.
	rows := parseCSV(t, "Name,اسم الطالب\nAhmed,أحمد\n")
	result, err := Analyze(rows, map[string]bool{"gender": true})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	seen := 0
	for _, col := range result.NewColumns {
		if col == "full_name" {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("full_name appears %d times in NewColumns %v, want once", seen, result.NewColumns)
	}
}

func TestAnalyzeSampleCap(t *testing.T) {
	var lines []string
	lines = append(lines, "Student Name")
	for i := 0; i < 12; i++ {
		lines = append(lines, "row")
	}
	result, err := Analyze(parseCSV(t, strings.Join(lines, "\n")), nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.TotalRows != 12 {
		t.Errorf("TotalRows = %d, want 12", result.TotalRows)
	}
	if len(result.SampleRows) != 5 {
		t.Errorf("SampleRows = %d, want 5", len(result.SampleRows))
	}
}

func TestAnalyzeTypePromotionFromSample(t *testing.T) {
	// A text-typed rule gets promoted when the sample looks numeric.
	rows := parseCSV(t, "Grade\n5\n")
	result, err := Analyze(rows, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Mapping[0].DBColumn != "grade_level" || result.Mapping[0].DataType != TypeInteger {
		t.Fatalf("mapping = %+v, want grade_level/integer", result.Mapping[0])
	}
}
