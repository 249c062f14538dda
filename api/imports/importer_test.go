package imports

import (
	"strings"
	"testing"
)

func TestBuildRecordBasic(t *testing.T) {
	headers := []string{"Student Name", "Gender", "Date of Birth", "Fees"}
	row := []string{" Ahmed Ali ", "male", "01/09/2015", "1000"}
	mapping := []ColumnMapping{
		{ExcelColumn: "Student Name", DBColumn: "full_name", DataType: TypeText},
		{ExcelColumn: "Gender", DBColumn: "gender", DataType: TypeText},
		{ExcelColumn: "Date of Birth", DBColumn: "birth_date", DataType: TypeDate},
		{ExcelColumn: "Fees", DBColumn: "fees", DataType: TypeNumeric},
	}
	record, errs := BuildRecord(headers, row, mapping)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if record["full_name"] != "Ahmed Ali" {
		t.Errorf("full_name = %q, want trimmed value", record["full_name"])
	}
	if record["birth_date"] != "2015-09-01" {
		t.Errorf("birth_date = %q, want 2015-09-01", record["birth_date"])
	}
	if record["total_after_discount"] != "1000" {
		t.Errorf("total_after_discount = %q, want 1000", record["total_after_discount"])
	}
}

func TestBuildRecordDiscount(t *testing.T) {
	headers := []string{"Fees", "Discount"}
	row := []string{"1500.50", "200.25"}
	mapping := []ColumnMapping{
		{ExcelColumn: "Fees", DBColumn: "fees", DataType: TypeNumeric},
		{ExcelColumn: "Discount", DBColumn: "discount", DataType: TypeNumeric},
	}
	record, errs := BuildRecord(headers, row, mapping)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if record["total_after_discount"] != "1300.25" {
		t.Errorf("total_after_discount = %q, want 1300.25", record["total_after_discount"])
	}
}

func TestBuildRecordDefaults(t *testing.T) {
	headers := []string{"Student Name", "Grade"}
	row := []string{"Sara", ""}
	mapping := []ColumnMapping{
		{ExcelColumn: "Student Name", DBColumn: "full_name", DataType: TypeText},
		{ExcelColumn: "Grade", DBColumn: "grade_level", DataType: TypeText, Default: "1"},
	}
	record, errs := BuildRecord(headers, row, mapping)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if record["grade_level"] != "1" {
		t.Errorf("grade_level = %q, want default 1", record["grade_level"])
	}
}

func TestBuildRecordShortRow(t *testing.T) {
	headers := []string{"Student Name", "Notes"}
	row := []string{"Sara"}
	mapping := []ColumnMapping{
		{ExcelColumn: "Student Name", DBColumn: "full_name", DataType: TypeText},
		{ExcelColumn: "Notes", DBColumn: "notes", DataType: TypeText},
	}
	record, errs := BuildRecord(headers, row, mapping)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if _, ok := record["notes"]; ok {
		t.Error("notes should be absent for a short row with no default")
	}
	if record["full_name"] != "Sara" {
		t.Errorf("full_name = %q", record["full_name"])
	}
}

func TestBuildRecordTypeErrors(t *testing.T) {
	headers := []string{"Date of Birth", "Installment Count", "Fees"}
	row := []string{"someday", "three", "a lot"}
	mapping := []ColumnMapping{
		{ExcelColumn: "Date of Birth", DBColumn: "birth_date", DataType: TypeDate},
		{ExcelColumn: "Installment Count", DBColumn: "installment_count", DataType: TypeInteger},
		{ExcelColumn: "Fees", DBColumn: "fees", DataType: TypeNumeric},
	}
	record, errs := BuildRecord(headers, row, mapping)
	if len(errs) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(errs), errs)
	}
	for _, e := range errs {
		if e.Field == "" || e.Value == "" || e.Message == "" {
			t.Errorf("incomplete error: %+v", e)
		}
	}
	if len(record) != 0 {
		t.Errorf("bad values must not land in the record: %v", record)
	}
}

func TestLookupQueryIdentifierColumn(t *testing.T) {
	record := map[string]string{"national_id": "29901011234567", "full_name": "Ahmed Ali"}
	query, value := lookupQuery("national_id", record)
	if !strings.Contains(query, `"national_id" = $1`) {
		t.Errorf("query %q does not match on the identifier column", query)
	}
	if value != "29901011234567" {
		t.Errorf("value = %q, want the identifier value", value)
	}
	// identifier configured but absent from the row: nothing to match on,
	// the name fallback must not kick in
	query, _ = lookupQuery("national_id", map[string]string{"full_name": "Ahmed Ali"})
	if query != "" {
		t.Errorf("query = %q, want empty when the identifier value is missing", query)
	}
}

func TestLookupQueryNameFallback(t *testing.T) {
	query, value := lookupQuery("", map[string]string{"full_name": "Ahmed Ali"})
	if !strings.Contains(query, "LOWER(full_name) = LOWER($1)") {
		t.Errorf("query %q is not a case-insensitive name match", query)
	}
	if value != "Ahmed Ali" {
		t.Errorf("value = %q, want the incoming name", value)
	}
	if query, _ := lookupQuery("", map[string]string{"grade_level": "5"}); query != "" {
		t.Errorf("query = %q, want empty for a row with no name", query)
	}
}

func TestTouchesNetTotal(t *testing.T) {
	cases := []struct {
		record map[string]string
		want   bool
	}{
		{map[string]string{"discount": "200"}, true},
		{map[string]string{"fees": "1000"}, true},
		{map[string]string{"fees": "1000", "discount": "200"}, true},
		{map[string]string{"notes": "x", "grade_level": "5"}, false},
		{map[string]string{}, false},
	}
	for _, tc := range cases {
		if got := touchesNetTotal(tc.record); got != tc.want {
			t.Errorf("touchesNetTotal(%v) = %v, want %v", tc.record, got, tc.want)
		}
	}
}

func TestMissingRequiredFields(t *testing.T) {
	record := map[string]string{
		"full_name":       "Ahmed",
		"gender":          "male",
		"birth_date":      "2015-09-01",
		"grade_level":     "5",
		"enrollment_date": "2024-09-01",
	}
	if missing := MissingRequiredFields(record); len(missing) != 0 {
		t.Fatalf("missing = %v, want none", missing)
	}
	delete(record, "gender")
	delete(record, "birth_date")
	missing := MissingRequiredFields(record)
	if len(missing) != 2 || missing[0] != "gender" || missing[1] != "birth_date" {
		t.Fatalf("missing = %v, want [gender birth_date]", missing)
	}
}

func TestValidateMapping(t *testing.T) {
	mapping := []ColumnMapping{
		{ExcelColumn: "Student Name", DBColumn: "full_name"},
		{ExcelColumn: "Ignore Me", DBColumn: "  "},
		{ExcelColumn: "Parent Job", DBColumn: "parent_job"},
	}
	existing := map[string]bool{"full_name": true}
	valid, missing := ValidateMapping(mapping, existing)
	if len(valid) != 1 || valid[0].DBColumn != "full_name" {
		t.Fatalf("valid = %+v, want only full_name", valid)
	}
	if len(missing) != 1 || missing[0] != "parent_job" {
		t.Fatalf("missing = %v, want [parent_job]", missing)
	}
}

func TestValidateMappingUnknownSchema(t *testing.T) {
	mapping := []ColumnMapping{{ExcelColumn: "Student Name", DBColumn: "full_name"}}
	valid, missing := ValidateMapping(mapping, nil)
	if len(valid) != 1 || len(missing) != 0 {
		t.Fatalf("valid = %v missing = %v, want mapping accepted as-is", valid, missing)
	}
}
