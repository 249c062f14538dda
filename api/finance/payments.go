package finance

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"SchoolSuite/api"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Payment record types. Records are append-only: inserted once, never updated.
const (
	PaymentTypeAdvance     = "advance"
	PaymentTypeInstallment = "installment"
	PaymentTypeOther       = "other"
)

// AddPaymentRecord appends one money-received entry to a student's log.
func AddPaymentRecord(ctx context.Context, pool *pgxpool.Pool, studentID string, amount decimal.Decimal, date time.Time, paymentType, method, notes string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO payment_records (student_id, amount, payment_date, payment_type, method, notes)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
	`, studentID, amount.String(), date, paymentType, method, notes)
	return err
}

// TotalPaid sums a student's payment records.
func TotalPaid(ctx context.Context, pool *pgxpool.Pool, studentID string) (decimal.Decimal, error) {
	var sumStr string
	err := pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text FROM payment_records WHERE student_id = $1
	`, studentID).Scan(&sumStr)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(sumStr)
}

// Handler: CreatePaymentRecord appends a manual payment entry
func CreatePaymentRecord(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentID string `json:"student_id"`
			Amount    string `json:"amount"`
			Date      string `json:"date"`
			Type      string `json:"type"`
			Method    string `json:"method"`
			Notes     string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StudentID == "" {
			api.RespondWithError(w, http.StatusBadRequest, "Invalid JSON or missing fields")
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || !amount.IsPositive() {
			api.RespondWithError(w, http.StatusBadRequest, "amount must be a positive number")
			return
		}
		paymentType := req.Type
		switch paymentType {
		case PaymentTypeAdvance, PaymentTypeInstallment, PaymentTypeOther:
		case "":
			paymentType = PaymentTypeOther
		default:
			api.RespondWithError(w, http.StatusBadRequest, "type must be advance, installment or other")
			return
		}
		date := time.Now()
		if req.Date != "" {
			if t, perr := time.Parse("2006-01-02", req.Date); perr == nil {
				date = t
			}
		}
		if err := AddPaymentRecord(r.Context(), pool, req.StudentID, amount, date, paymentType, req.Method, req.Notes); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to record payment: "+err.Error())
			return
		}
		api.RespondWithResult(w, true, "")
	}
}

// Handler: GetPaymentRecords lists a student's payment log plus the total paid
func GetPaymentRecords(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		studentID := r.URL.Query().Get("student_id")
		if studentID == "" {
			api.RespondWithError(w, http.StatusBadRequest, "student_id required")
			return
		}
		rows, err := pool.Query(ctx, `
			SELECT id, amount::text, payment_date, payment_type, method, notes, created_at
			FROM payment_records WHERE student_id = $1 ORDER BY payment_date, created_at
		`, studentID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		type item struct {
			ID          string    `json:"id"`
			Amount      string    `json:"amount"`
			PaymentDate time.Time `json:"payment_date"`
			PaymentType string    `json:"payment_type"`
			Method      *string   `json:"method"`
			Notes       *string   `json:"notes"`
			CreatedAt   time.Time `json:"created_at"`
		}
		results := make([]item, 0)
		for rows.Next() {
			var it item
			if err := rows.Scan(&it.ID, &it.Amount, &it.PaymentDate, &it.PaymentType, &it.Method, &it.Notes, &it.CreatedAt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			results = append(results, it)
		}
		total, err := TotalPaid(ctx, pool, studentID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"rows":       results,
			"total_paid": total.String(),
		})
	}
}
