package finance

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"SchoolSuite/api"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// reportColumn fixes the exported column order and its title translations.
type reportColumn struct {
	key     string
	titleAr string
	titleEn string
}

var studentReportColumns = []reportColumn{
	{"full_name", "الاسم", "Name"},
	{"grade_level", "الصف", "Grade"},
	{"fees", "المصروفات", "Fees"},
	{"discount", "الخصم", "Discount"},
	{"total_after_discount", "الصافي", "Net Total"},
	{"advance_payment", "المقدم", "Advance"},
	{"total_paid", "المدفوع", "Paid"},
	{"installment_count", "عدد الأقساط", "Installments"},
	{"financial_status", "الحالة المالية", "Status"},
}

func fetchStudentReportRows(ctx context.Context, pool *pgxpool.Pool) ([][]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT s.full_name, COALESCE(s.grade_level, ''),
		       COALESCE(s.fees, 0)::text, COALESCE(s.discount, 0)::text,
		       COALESCE(s.total_after_discount, 0)::text, COALESCE(s.advance_payment, 0)::text,
		       COALESCE(p.total_paid, 0)::text,
		       COALESCE(s.installment_count, 0), COALESCE(s.financial_status, 'unpaid')
		FROM students s
		LEFT JOIN (
			SELECT student_id, SUM(amount) AS total_paid FROM payment_records GROUP BY student_id
		) p ON p.student_id = s.id
		ORDER BY s.full_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var name, grade, fees, discount, total, advance, paid, status string
		var count int
		if err := rows.Scan(&name, &grade, &fees, &discount, &total, &advance, &paid, &count, &status); err != nil {
			return nil, err
		}
		out = append(out, []string{name, grade, fees, discount, total, advance, paid, fmt.Sprint(count), status})
	}
	return out, rows.Err()
}

// Handler: ExportStudentsXLSX writes the financial summary workbook with
// Arabic column titles.
func ExportStudentsXLSX(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fetchStudentReportRows(r.Context(), pool)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to build report: "+err.Error())
			return
		}
		f := excelize.NewFile()
		sheet := f.GetSheetName(0)
		for i, col := range studentReportColumns {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, col.titleAr)
		}
		for rowIdx, row := range data {
			for colIdx, val := range row {
				cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
				f.SetCellValue(sheet, cell, val)
			}
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="students_%s.xlsx"`, time.Now().Format("2006-01-02")))
		if err := f.Write(w); err != nil {
			api.LogError("xlsx export write failed: %v", err)
		}
	}
}

// Handler: ExportStudentsPDF writes the same summary as a PDF table. Titles
// use the English translations since the built-in PDF fonts cannot shape
// Arabic script.
func ExportStudentsPDF(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fetchStudentReportRows(r.Context(), pool)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to build report: "+err.Error())
			return
		}
		pdf := gofpdf.New("L", "mm", "A4", "")
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 10, fmt.Sprintf("Student Financial Summary %s", time.Now().Format("2006-01-02")))
		pdf.Ln(12)

		colWidth := 277.0 / float64(len(studentReportColumns))
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, col := range studentReportColumns {
			pdf.CellFormat(colWidth, 8, col.titleEn, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", 8)
		for _, row := range data {
			for _, val := range row {
				pdf.CellFormat(colWidth, 7, val, "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="students_%s.pdf"`, time.Now().Format("2006-01-02")))
		if err := pdf.Output(w); err != nil {
			api.LogError("pdf export write failed: %v", err)
		}
	}
}
