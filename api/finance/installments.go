package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"SchoolSuite/api"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Installment statuses. A student's aggregate financial_status uses the same
// values.
const (
	StatusPaid    = "paid"
	StatusPartial = "partial"
	StatusUnpaid  = "unpaid"
)

type ScheduledInstallment struct {
	Number    int             `json:"number"`
	DueDate   time.Time       `json:"due_date"`
	Amount    decimal.Decimal `json:"amount"`
	Remaining decimal.Decimal `json:"remaining"`
}

// GenerateSchedule splits total into count monthly installments starting at
// start. Every installment gets the ceiling of the even split and the final
// one absorbs the rounding remainder, so the amounts always sum to total
// exactly. Remaining is the balance still owed after each installment.
func GenerateSchedule(total decimal.Decimal, count int, start time.Time) ([]ScheduledInstallment, error) {
	if count <= 0 {
		return nil, errors.New("installment count must be positive")
	}
	if !total.IsPositive() {
		return nil, errors.New("total must be positive")
	}
	per := total.Div(decimal.NewFromInt(int64(count))).Ceil()
	// The ceiling overshoots when count is large relative to total, which
	// would drive the final installment negative. Reject instead of writing
	// a broken schedule.
	if count > 1 && !total.Sub(per.Mul(decimal.NewFromInt(int64(count-1)))).IsPositive() {
		return nil, fmt.Errorf("installment count %d too large for total %s", count, total)
	}
	schedule := make([]ScheduledInstallment, count)
	paid := decimal.Zero
	for i := 0; i < count; i++ {
		amount := per
		if i == count-1 {
			amount = total.Sub(paid)
		}
		paid = paid.Add(amount)
		schedule[i] = ScheduledInstallment{
			Number:    i + 1,
			DueDate:   start.AddDate(0, i, 0),
			Amount:    amount,
			Remaining: total.Sub(paid),
		}
	}
	return schedule, nil
}

// ComputeFinancialStatus derives the aggregate student status from installment
// counts: paid when every installment is paid, partial when at least one is
// paid or partial, unpaid otherwise.
func ComputeFinancialStatus(paidCount, partialCount, totalCount int) string {
	switch {
	case totalCount > 0 && paidCount == totalCount:
		return StatusPaid
	case paidCount > 0 || partialCount > 0:
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// RecomputeFinancialStatus re-derives and stores students.financial_status.
// Every write path that can affect the aggregate calls this; the nightly
// sweep calls it for all students to catch drift.
func RecomputeFinancialStatus(ctx context.Context, pool *pgxpool.Pool, studentID string) (string, error) {
	var paidCount, partialCount, totalCount int
	err := pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'paid'),
			COUNT(*) FILTER (WHERE status = 'partial'),
			COUNT(*)
		FROM installments WHERE student_id = $1
	`, studentID).Scan(&paidCount, &partialCount, &totalCount)
	if err != nil {
		return "", err
	}
	status := ComputeFinancialStatus(paidCount, partialCount, totalCount)
	_, err = pool.Exec(ctx, `UPDATE students SET financial_status = $1 WHERE id = $2`, status, studentID)
	return status, err
}

// RegenerateInstallments replaces a student's whole schedule: delete all rows,
// reinsert from the current total / count / start date. Called on import and
// whenever the financial record changes.
func RegenerateInstallments(ctx context.Context, pool *pgxpool.Pool, studentID string) ([]ScheduledInstallment, error) {
	var totalStr string
	var count int
	var start time.Time
	err := pool.QueryRow(ctx, `
		SELECT total_after_discount::text, COALESCE(installment_count, 0), COALESCE(installment_start_date, enrollment_date, now())
		FROM students WHERE id = $1
	`, studentID).Scan(&totalStr, &count, &start)
	if err != nil {
		return nil, err
	}
	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return nil, fmt.Errorf("bad total_after_discount for student %s: %w", studentID, err)
	}
	schedule, err := GenerateSchedule(total, count, start)
	if err != nil {
		return nil, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM installments WHERE student_id = $1`, studentID); err != nil {
		return nil, err
	}
	rows := make([][]interface{}, len(schedule))
	for i, inst := range schedule {
		rows[i] = []interface{}{studentID, inst.Number, inst.DueDate, inst.Amount.String(), inst.Remaining.String(), StatusUnpaid}
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"installments"},
		[]string{"student_id", "number", "due_date", "amount", "remaining", "status"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	if _, err := RecomputeFinancialStatus(ctx, pool, studentID); err != nil {
		return nil, err
	}
	return schedule, nil
}

type paymentDetails struct {
	Date   string  `json:"date"`
	Amount *string `json:"amount"`
	Method string  `json:"method"`
	Notes  string  `json:"notes"`
}

// Handler: GenerateInstallments replaces a student's schedule
func GenerateInstallments(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentID string `json:"student_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StudentID == "" {
			api.RespondWithError(w, http.StatusBadRequest, "student_id required")
			return
		}
		schedule, err := RegenerateInstallments(r.Context(), pool, req.StudentID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to generate schedule: "+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", schedule)
	}
}

// Handler: GetInstallments lists a student's schedule ordered by number
func GetInstallments(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := r.URL.Query().Get("student_id")
		if studentID == "" {
			api.RespondWithError(w, http.StatusBadRequest, "student_id required")
			return
		}
		rows, err := pool.Query(r.Context(), `
			SELECT number, due_date, amount::text, remaining::text, status,
			       payment_date, payment_amount::text, payment_method, payment_notes
			FROM installments WHERE student_id = $1 ORDER BY number
		`, studentID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		type item struct {
			Number        int        `json:"number"`
			DueDate       time.Time  `json:"due_date"`
			Amount        string     `json:"amount"`
			Remaining     string     `json:"remaining"`
			Status        string     `json:"status"`
			PaymentDate   *time.Time `json:"payment_date"`
			PaymentAmount *string    `json:"payment_amount"`
			PaymentMethod *string    `json:"payment_method"`
			PaymentNotes  *string    `json:"payment_notes"`
		}
		results := make([]item, 0)
		for rows.Next() {
			var it item
			if err := rows.Scan(&it.Number, &it.DueDate, &it.Amount, &it.Remaining, &it.Status,
				&it.PaymentDate, &it.PaymentAmount, &it.PaymentMethod, &it.PaymentNotes); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			results = append(results, it)
		}
		api.RespondWithPayload(w, true, "", results)
	}
}

// Handler: UpdateInstallmentStatus marks one installment paid/partial/unpaid.
// Marking paid also appends a PaymentRecord, then the student's aggregate
// financial_status is recomputed.
func UpdateInstallmentStatus(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			StudentID string          `json:"student_id"`
			Number    int             `json:"installment_number"`
			Status    string          `json:"status"`
			Payment   *paymentDetails `json:"payment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StudentID == "" || req.Number < 1 {
			api.RespondWithError(w, http.StatusBadRequest, "Invalid JSON or missing fields")
			return
		}
		status := strings.ToLower(req.Status)
		if status != StatusPaid && status != StatusPartial && status != StatusUnpaid {
			api.RespondWithError(w, http.StatusBadRequest, "status must be paid, partial or unpaid")
			return
		}

		var amountStr string
		err := pool.QueryRow(ctx, `SELECT amount::text FROM installments WHERE student_id = $1 AND number = $2`,
			req.StudentID, req.Number).Scan(&amountStr)
		if err != nil {
			if err == pgx.ErrNoRows {
				api.RespondWithError(w, http.StatusNotFound, "installment not found")
				return
			}
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		paymentDate := time.Now()
		paymentAmount := amountStr
		method, notes := "", ""
		if req.Payment != nil {
			if req.Payment.Date != "" {
				if t, perr := time.Parse("2006-01-02", req.Payment.Date); perr == nil {
					paymentDate = t
				}
			}
			if req.Payment.Amount != nil && *req.Payment.Amount != "" {
				paymentAmount = *req.Payment.Amount
			}
			method = req.Payment.Method
			notes = req.Payment.Notes
		}

		if status == StatusUnpaid {
			_, err = pool.Exec(ctx, `
				UPDATE installments SET status = $1, payment_date = NULL, payment_amount = NULL,
				       payment_method = NULL, payment_notes = NULL
				WHERE student_id = $2 AND number = $3
			`, status, req.StudentID, req.Number)
		} else {
			_, err = pool.Exec(ctx, `
				UPDATE installments SET status = $1, payment_date = $2, payment_amount = $3,
				       payment_method = NULLIF($4, ''), payment_notes = NULLIF($5, '')
				WHERE student_id = $6 AND number = $7
			`, status, paymentDate, paymentAmount, method, notes, req.StudentID, req.Number)
		}
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to update installment: "+err.Error())
			return
		}

		if status == StatusPaid {
			amount, perr := decimal.NewFromString(paymentAmount)
			if perr != nil {
				api.RespondWithError(w, http.StatusBadRequest, "bad payment amount: "+perr.Error())
				return
			}
			if err := AddPaymentRecord(ctx, pool, req.StudentID, amount, paymentDate, PaymentTypeInstallment, method,
				fmt.Sprintf("installment %d", req.Number)); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, "Failed to record payment: "+err.Error())
				return
			}
		}

		finStatus, err := RecomputeFinancialStatus(ctx, pool, req.StudentID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to recompute status: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":          true,
			"status":           status,
			"financial_status": finStatus,
		})
	}
}

// partialStatus decides the installment status for a recorded payment: an
// amount equal to the full installment amount is a full payment.
func partialStatus(amount, full decimal.Decimal) string {
	if amount.Equal(full) {
		return StatusPaid
	}
	return StatusPartial
}

// Handler: AddPartialInstallmentPayment records a payment smaller than the
// installment amount. An amount equal to the full installment amount is
// treated exactly like a full payment.
func AddPartialInstallmentPayment(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			StudentID string `json:"student_id"`
			Number    int    `json:"installment_number"`
			Amount    string `json:"amount"`
			Date      string `json:"date"`
			Method    string `json:"method"`
			Notes     string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StudentID == "" || req.Number < 1 {
			api.RespondWithError(w, http.StatusBadRequest, "Invalid JSON or missing fields")
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || !amount.IsPositive() {
			api.RespondWithError(w, http.StatusBadRequest, "amount must be a positive number")
			return
		}

		var fullStr string
		err = pool.QueryRow(ctx, `SELECT amount::text FROM installments WHERE student_id = $1 AND number = $2`,
			req.StudentID, req.Number).Scan(&fullStr)
		if err != nil {
			if err == pgx.ErrNoRows {
				api.RespondWithError(w, http.StatusNotFound, "installment not found")
				return
			}
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		full, err := decimal.NewFromString(fullStr)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "bad installment amount: "+err.Error())
			return
		}
		if amount.GreaterThan(full) {
			api.RespondWithError(w, http.StatusBadRequest, "amount exceeds installment amount")
			return
		}

		status := partialStatus(amount, full)
		paymentDate := time.Now()
		if req.Date != "" {
			if t, perr := time.Parse("2006-01-02", req.Date); perr == nil {
				paymentDate = t
			}
		}

		_, err = pool.Exec(ctx, `
			UPDATE installments SET status = $1, payment_date = $2, payment_amount = $3,
			       payment_method = NULLIF($4, ''), payment_notes = NULLIF($5, '')
			WHERE student_id = $6 AND number = $7
		`, status, paymentDate, amount.String(), req.Method, req.Notes, req.StudentID, req.Number)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to update installment: "+err.Error())
			return
		}
		if err := AddPaymentRecord(ctx, pool, req.StudentID, amount, paymentDate, PaymentTypeInstallment, req.Method,
			fmt.Sprintf("partial payment, installment %d", req.Number)); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to record payment: "+err.Error())
			return
		}

		finStatus, err := RecomputeFinancialStatus(ctx, pool, req.StudentID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to recompute status: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":          true,
			"status":           status,
			"financial_status": finStatus,
		})
	}
}
