package imports

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Data types the importer understands. Text is the default; the rest are
// promoted by inspecting a sample value.
const (
	TypeText    = "text"
	TypeInteger = "integer"
	TypeNumeric = "numeric"
	TypeBoolean = "boolean"
	TypeDate    = "date"
)

// Required student fields. Rows missing any of these are rejected at insert
// time.
var RequiredFields = []string{"full_name", "gender", "birth_date", "grade_level", "enrollment_date"}

// fieldRule maps header keywords (English and Arabic) to a students column.
// Rules are checked in order and the first match wins; there is no scoring.
type fieldRule struct {
	keywords []string
	dbColumn string
	dataType string
	required bool
}

// Multi-word and specific keywords come before generic ones so that e.g.
// "installment count" is not swallowed by a broader rule.
var fieldRules = []fieldRule{
	{[]string{"birth", "ميلاد"}, "birth_date", TypeDate, true},
	{[]string{"enroll", "التحاق"}, "enrollment_date", TypeDate, true},
	{[]string{"gender", "sex", "جنس", "النوع"}, "gender", TypeText, true},
	{[]string{"grade", "مرحلة", "الصف"}, "grade_level", TypeText, true},
	{[]string{"class", "فصل"}, "classroom", TypeText, false},
	{[]string{"national", "قومي"}, "national_id", TypeText, false},
	{[]string{"phone", "mobile", "هاتف", "جوال", "موبايل"}, "phone", TypeText, false},
	{[]string{"email", "بريد"}, "email", TypeText, false},
	{[]string{"address", "عنوان"}, "address", TypeText, false},
	{[]string{"installment count", "عدد الأقساط", "عدد الاقساط"}, "installment_count", TypeInteger, false},
	{[]string{"installment amount", "قيمة القسط"}, "installment_amount", TypeNumeric, false},
	{[]string{"advance", "مقدم"}, "advance_payment", TypeNumeric, false},
	{[]string{"discount", "خصم"}, "discount", TypeNumeric, false},
	{[]string{"fee", "مصروف", "رسوم"}, "fees", TypeNumeric, false},
	{[]string{"method", "طريقة"}, "payment_method", TypeText, false},
	{[]string{"note", "ملاحظ"}, "notes", TypeText, false},
	{[]string{"name", "اسم"}, "full_name", TypeText, true},
}

// GuessField maps a source header to a target column by ordered substring
// containment. ok is false when no keyword matches.
func GuessField(header string) (dbColumn, dataType string, required, ok bool) {
	h := strings.ToLower(strings.TrimSpace(header))
	if h == "" {
		return "", "", false, false
	}
	for _, rule := range fieldRules {
		for _, kw := range rule.keywords {
			if strings.Contains(h, kw) {
				return rule.dbColumn, rule.dataType, rule.required, true
			}
		}
	}
	return "", "", false, false
}

var dateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006", "01/02/2006", "2006/01/02", "2 Jan 2006"}

// GuessDataType inspects one sample value: text unless the value looks like a
// boolean, integer, number or date.
func GuessDataType(sample string) string {
	s := strings.TrimSpace(sample)
	if s == "" {
		return TypeText
	}
	switch strings.ToLower(s) {
	case "true", "false", "yes", "no", "نعم", "لا":
		return TypeBoolean
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return TypeInteger
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return TypeNumeric
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return TypeDate
		}
	}
	return TypeText
}

// NormalizeDate converts a value to YYYY-MM-DD, or returns ok=false when no
// known layout matches.
func NormalizeDate(value string) (string, bool) {
	s := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return s, false
}

// SanitizeColumnName turns a free-form header into a usable column name. A
// header with no usable characters degrades to a randomly suffixed
// placeholder, which is best-effort and not stable across re-imports.
func SanitizeColumnName(header string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(header)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return "column_" + uuid.New().String()[:8]
	}
	return name
}
