package finance

import (
	"encoding/json"
	"net/http"
	"time"

	"SchoolSuite/api"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Handler: CreateExpense
func CreateExpense(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Category    string `json:"category"`
			Amount      string `json:"amount"`
			Date        string `json:"date"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Category == "" {
			api.RespondWithError(w, http.StatusBadRequest, "Invalid JSON or missing fields")
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || !amount.IsPositive() {
			api.RespondWithError(w, http.StatusBadRequest, "amount must be a positive number")
			return
		}
		date := time.Now()
		if req.Date != "" {
			if t, perr := time.Parse("2006-01-02", req.Date); perr == nil {
				date = t
			}
		}
		var id string
		err = pool.QueryRow(r.Context(), `
			INSERT INTO expenses (category, amount, expense_date, description)
			VALUES ($1, $2, $3, NULLIF($4, '')) RETURNING id
		`, req.Category, amount.String(), date, req.Description).Scan(&id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to create expense: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "id": id})
	}
}

// Handler: GetExpenses with optional date range
func GetExpenses(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
		query := `
			SELECT id, category, amount::text, expense_date, description, created_at
			FROM expenses
			WHERE ($1 = '' OR expense_date >= $1::date)
			  AND ($2 = '' OR expense_date <= $2::date)
			ORDER BY expense_date DESC, created_at DESC
		`
		rows, err := pool.Query(r.Context(), query, from, to)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		type item struct {
			ID          string    `json:"id"`
			Category    string    `json:"category"`
			Amount      string    `json:"amount"`
			ExpenseDate time.Time `json:"expense_date"`
			Description *string   `json:"description"`
			CreatedAt   time.Time `json:"created_at"`
		}
		results := make([]item, 0)
		for rows.Next() {
			var it item
			if err := rows.Scan(&it.ID, &it.Category, &it.Amount, &it.ExpenseDate, &it.Description, &it.CreatedAt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			results = append(results, it)
		}
		api.RespondWithPayload(w, true, "", results)
	}
}

// Handler: DeleteExpense
func DeleteExpense(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
			api.RespondWithError(w, http.StatusBadRequest, "id required")
			return
		}
		tag, err := pool.Exec(r.Context(), `DELETE FROM expenses WHERE id = $1`, req.ID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, "expense not found")
			return
		}
		api.RespondWithResult(w, true, "")
	}
}
