package students

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"SchoolSuite/api"
	"SchoolSuite/api/finance"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Student struct {
	ID                 string  `json:"id"`
	FullName           string  `json:"full_name"`
	Gender             string  `json:"gender"`
	BirthDate          string  `json:"birth_date"`
	GradeLevel         string  `json:"grade_level"`
	Classroom          *string `json:"classroom,omitempty"`
	EnrollmentDate     string  `json:"enrollment_date"`
	NationalID         *string `json:"national_id,omitempty"`
	Phone              *string `json:"phone,omitempty"`
	Email              *string `json:"email,omitempty"`
	Address            *string `json:"address,omitempty"`
	Notes              *string `json:"notes,omitempty"`
	AcademicNotes      *string `json:"academic_notes,omitempty"`
	Fees               string  `json:"fees"`
	Discount           string  `json:"discount"`
	TotalAfterDiscount string  `json:"total_after_discount"`
	AdvancePayment     string  `json:"advance_payment"`
	PaymentMethod      *string `json:"payment_method,omitempty"`
	InstallmentCount   int     `json:"installment_count"`
	FinancialStatus    string  `json:"financial_status"`
	PhotoPath          *string `json:"photo_path,omitempty"`
}

const studentColumns = `
	id, full_name, gender, birth_date::text, grade_level, classroom,
	enrollment_date::text, national_id, phone, email, address, notes,
	academic_notes, COALESCE(fees, 0)::text, COALESCE(discount, 0)::text,
	COALESCE(total_after_discount, 0)::text, COALESCE(advance_payment, 0)::text,
	payment_method, COALESCE(installment_count, 0),
	COALESCE(financial_status, 'unpaid'), photo_path
`

func scanStudent(row pgx.Row) (*Student, error) {
	var s Student
	err := row.Scan(
		&s.ID, &s.FullName, &s.Gender, &s.BirthDate, &s.GradeLevel, &s.Classroom,
		&s.EnrollmentDate, &s.NationalID, &s.Phone, &s.Email, &s.Address, &s.Notes,
		&s.AcademicNotes, &s.Fees, &s.Discount, &s.TotalAfterDiscount,
		&s.AdvancePayment, &s.PaymentMethod, &s.InstallmentCount,
		&s.FinancialStatus, &s.PhotoPath,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// updatableColumns is the whitelist accepted by the update handler. The
// import pipeline may add columns beyond these; those stay import-only.
var updatableColumns = map[string]bool{
	"full_name": true, "gender": true, "birth_date": true, "grade_level": true,
	"classroom": true, "enrollment_date": true, "national_id": true,
	"phone": true, "email": true, "address": true, "notes": true,
	"academic_notes": true, "fees": true, "discount": true,
	"total_after_discount": true, "advance_payment": true,
	"payment_method": true, "installment_count": true,
	"installment_amount": true, "installment_start_date": true,
}

// financialColumns are the fields whose edit forces a status recompute.
var financialColumns = map[string]bool{
	"fees": true, "discount": true, "total_after_discount": true,
	"advance_payment": true, "payment_method": true,
	"installment_count": true, "installment_amount": true,
	"installment_start_date": true,
}

// Handler: ListStudents supports page/page_size pagination and optional
// grade_level and search (name substring) filters.
func ListStudents(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		if pageSize < 1 || pageSize > 200 {
			pageSize = 25
		}

		where := []string{"TRUE"}
		args := []interface{}{}
		if g := r.URL.Query().Get("grade_level"); g != "" {
			args = append(args, g)
			where = append(where, "grade_level = $"+strconv.Itoa(len(args)))
		}
		if q := r.URL.Query().Get("search"); q != "" {
			args = append(args, "%"+q+"%")
			where = append(where, "full_name ILIKE $"+strconv.Itoa(len(args)))
		}
		cond := strings.Join(where, " AND ")

		var total int
		if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM students WHERE "+cond, args...).Scan(&total); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to count students: "+err.Error())
			return
		}

		args = append(args, pageSize, (page-1)*pageSize)
		query := "SELECT " + studentColumns + " FROM students WHERE " + cond +
			" ORDER BY full_name LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))
		rows, err := pool.Query(ctx, query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to list students: "+err.Error())
			return
		}
		defer rows.Close()

		list := make([]*Student, 0, pageSize)
		for rows.Next() {
			s, err := scanStudent(rows)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, "Failed to scan student: "+err.Error())
				return
			}
			list = append(list, s)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":   true,
			"rows":      list,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		})
	}
}

// Handler: GetStudent returns one student by id
func GetStudent(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			api.RespondWithError(w, http.StatusBadRequest, "id is required")
			return
		}
		s, err := scanStudent(pool.QueryRow(r.Context(), "SELECT "+studentColumns+" FROM students WHERE id = $1", id))
		if err == pgx.ErrNoRows {
			api.RespondWithError(w, http.StatusNotFound, "student not found")
			return
		}
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch student: "+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", s)
	}
}

// Handler: CreateStudent inserts a student with the required identity fields
func CreateStudent(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			FullName       string `json:"full_name"`
			Gender         string `json:"gender"`
			BirthDate      string `json:"birth_date"`
			GradeLevel     string `json:"grade_level"`
			EnrollmentDate string `json:"enrollment_date"`
			Classroom      string `json:"classroom"`
			Fees           string `json:"fees"`
			Discount       string `json:"discount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		for field, v := range map[string]string{
			"full_name": req.FullName, "gender": req.Gender, "birth_date": req.BirthDate,
			"grade_level": req.GradeLevel, "enrollment_date": req.EnrollmentDate,
		} {
			if strings.TrimSpace(v) == "" {
				api.RespondWithError(w, http.StatusBadRequest, field+" is required")
				return
			}
		}
		fees := req.Fees
		if fees == "" {
			fees = "0"
		}
		discount := req.Discount
		if discount == "" {
			discount = "0"
		}
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO students
				(full_name, gender, birth_date, grade_level, enrollment_date, classroom,
				 fees, discount, total_after_discount, financial_status)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7::numeric, $8::numeric,
				$7::numeric - $8::numeric, 'unpaid')
			RETURNING id
		`, req.FullName, req.Gender, req.BirthDate, req.GradeLevel, req.EnrollmentDate,
			req.Classroom, fees, discount).Scan(&id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to create student: "+err.Error())
			return
		}
		api.LogInfo("Student created: %s", id)
		api.RespondWithPayload(w, true, "", map[string]string{"id": id})
	}
}

// Handler: UpdateStudent applies a partial update from a field map. Editing a
// financial field recomputes the stored financial status.
func UpdateStudent(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			ID     string            `json:"id"`
			Fields map[string]string `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" || len(req.Fields) == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "id and a non-empty fields map are required")
			return
		}
		sets := make([]string, 0, len(req.Fields))
		args := make([]interface{}, 0, len(req.Fields)+1)
		financialEdit := false
		for col, val := range req.Fields {
			if !updatableColumns[col] {
				api.RespondWithError(w, http.StatusBadRequest, "field not updatable: "+col)
				return
			}
			if financialColumns[col] {
				financialEdit = true
			}
			args = append(args, val)
			sets = append(sets, pgx.Identifier{col}.Sanitize()+" = $"+strconv.Itoa(len(args)))
		}
		args = append(args, req.ID)
		query := "UPDATE students SET " + strings.Join(sets, ", ") + " WHERE id = $" + strconv.Itoa(len(args))
		tag, err := pool.Exec(ctx, query, args...)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to update student: "+err.Error())
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, "student not found")
			return
		}
		if financialEdit {
			// Keep net total consistent when fees or discount moved
			_, feesChanged := req.Fields["fees"]
			_, discountChanged := req.Fields["discount"]
			if feesChanged || discountChanged {
				if _, err := pool.Exec(ctx, `
					UPDATE students SET total_after_discount = COALESCE(fees, 0) - COALESCE(discount, 0) WHERE id = $1
				`, req.ID); err != nil {
					api.RespondWithError(w, http.StatusInternalServerError, "Failed to recompute totals: "+err.Error())
					return
				}
			}
			if _, err := finance.RecomputeFinancialStatus(ctx, pool, req.ID); err != nil {
				api.LogError("financial status recompute for %s failed: %v", req.ID, err)
			}
		}
		api.RespondWithResult(w, true, "")
	}
}

// Handler: DeleteStudent removes the student and its financial children
func DeleteStudent(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
			api.RespondWithError(w, http.StatusBadRequest, "id is required")
			return
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to begin transaction: "+err.Error())
			return
		}
		defer tx.Rollback(ctx)
		for _, stmt := range []string{
			`DELETE FROM installments WHERE student_id = $1`,
			`DELETE FROM payment_records WHERE student_id = $1`,
			`DELETE FROM students WHERE id = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, req.ID); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, "Failed to delete student: "+err.Error())
				return
			}
		}
		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to commit delete: "+err.Error())
			return
		}
		api.LogInfo("Student deleted: %s", req.ID)
		api.RespondWithResult(w, true, "")
	}
}
