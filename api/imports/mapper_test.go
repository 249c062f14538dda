package imports

import (
	"strings"
	"testing"
)

func TestGuessField(t *testing.T) {
	cases := []struct {
		header   string
		dbColumn string
		dataType string
		required bool
	}{
		{"Student Name", "full_name", TypeText, true},
		{"اسم الطالب", "full_name", TypeText, true},
		{"Date of Birth", "birth_date", TypeDate, true},
		{"تاريخ الميلاد", "birth_date", TypeDate, true},
		{"Enrollment Date", "enrollment_date", TypeDate, true},
		{"Gender", "gender", TypeText, true},
		{"النوع", "gender", TypeText, true},
		{"Grade Level", "grade_level", TypeText, true},
		{"الصف", "grade_level", TypeText, true},
		{"Classroom", "classroom", TypeText, false},
		{"Mobile Number", "phone", TypeText, false},
		{"رقم الهاتف", "phone", TypeText, false},
		{"School Fees", "fees", TypeNumeric, false},
		{"المصروفات", "fees", TypeNumeric, false},
		{"Discount", "discount", TypeNumeric, false},
		{"الخصم", "discount", TypeNumeric, false},
		{"Advance Payment", "advance_payment", TypeNumeric, false},
		{"المقدم", "advance_payment", TypeNumeric, false},
		{"Installment Count", "installment_count", TypeInteger, false},
		{"عدد الأقساط", "installment_count", TypeInteger, false},
		{"Payment Method", "payment_method", TypeText, false},
		{"Notes", "notes", TypeText, false},
		{"ملاحظات", "notes", TypeText, false},
	}
	for _, tc := range cases {
		dbColumn, dataType, required, ok := GuessField(tc.header)
		if !ok {
			t.Errorf("GuessField(%q): no match", tc.header)
			continue
		}
		if dbColumn != tc.dbColumn || dataType != tc.dataType || required != tc.required {
			t.Errorf("GuessField(%q) = (%s, %s, %v), want (%s, %s, %v)",
				tc.header, dbColumn, dataType, required, tc.dbColumn, tc.dataType, tc.required)
		}
	}
}

func TestGuessFieldOrdering(t *testing.T) {
	// "Installment Count" must hit the count rule, not drown in a broader one.
	dbColumn, _, _, ok := GuessField("Installment Count")
	if !ok || dbColumn != "installment_count" {
		t.Fatalf("got %q, want installment_count", dbColumn)
	}
	// A header containing both "name" and a more specific keyword resolves to
	// the specific rule because name is checked last.
	dbColumn, _, _, ok = GuessField("Guardian Phone Name")
	if !ok || dbColumn != "phone" {
		t.Fatalf("got %q, want phone", dbColumn)
	}
}

func TestGuessFieldNoMatch(t *testing.T) {
	for _, header := range []string{"", "   ", "Favorite Color", "xyz123"} {
		if _, _, _, ok := GuessField(header); ok {
			t.Errorf("GuessField(%q): unexpected match", header)
		}
	}
}

func TestGuessDataType(t *testing.T) {
	cases := []struct {
		sample string
		want   string
	}{
		{"", TypeText},
		{"hello", TypeText},
		{"true", TypeBoolean},
		{"No", TypeBoolean},
		{"نعم", TypeBoolean},
		{"42", TypeInteger},
		{"-7", TypeInteger},
		{"3.14", TypeNumeric},
		{"1500.50", TypeNumeric},
		{"2024-09-01", TypeDate},
		{"01/09/2024", TypeDate},
		{"2 Jan 2006", TypeDate},
		{"grade 5", TypeText},
	}
	for _, tc := range cases {
		if got := GuessDataType(tc.sample); got != tc.want {
			t.Errorf("GuessDataType(%q) = %s, want %s", tc.sample, got, tc.want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-09-01", "2024-09-01", true},
		{"01/09/2024", "2024-09-01", true},
		{"01-09-2024", "2024-09-01", true},
		{"2024/09/01", "2024-09-01", true},
		{" 2024-09-01 ", "2024-09-01", true},
		{"not a date", "not a date", false},
		{"31/31/2024", "31/31/2024", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeDate(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("NormalizeDate(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSanitizeColumnName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Parent Email", "parent_email"},
		{"  Guardian-Job!! ", "guardian_job"},
		{"already_clean", "already_clean"},
		{"A  B  C", "a_b_c"},
	}
	for _, tc := range cases {
		if got := SanitizeColumnName(tc.in); got != tc.want {
			t.Errorf("SanitizeColumnName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeColumnNamePlaceholder(t *testing.T) {
	for _, in := range []string{"", "   ", "!!!", "123abc", "عمود"} {
		got := SanitizeColumnName(in)
		if !strings.HasPrefix(got, "column_") || len(got) != len("column_")+8 {
			t.Errorf("SanitizeColumnName(%q) = %q, want column_ placeholder with 8-char suffix", in, got)
		}
	}
}
