package finance

import (
	"encoding/json"
	"net/http"
	"time"

	"SchoolSuite/api"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Receipts reference an arbitrary entity by type+id pair (student or expense).
// The reference is deliberately loose: no foreign key is enforced, matching
// how receipts are attached in practice.
const (
	ReceiptEntityStudent = "student"
	ReceiptEntityExpense = "expense"
)

// Handler: CreateReceipt
func CreateReceipt(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Type        string `json:"type"`
			Amount      string `json:"amount"`
			Date        string `json:"date"`
			Description string `json:"description"`
			EntityType  string `json:"entity_type"`
			EntityID    string `json:"entity_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
			api.RespondWithError(w, http.StatusBadRequest, "Invalid JSON or missing fields")
			return
		}
		if req.EntityType != "" && req.EntityType != ReceiptEntityStudent && req.EntityType != ReceiptEntityExpense {
			api.RespondWithError(w, http.StatusBadRequest, "entity_type must be student or expense")
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
			INSERT INTO receipts (receipt_type, amount, receipt_date, description, entity_type, entity_id)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, '')) RETURNING id
		`, req.Type, amount.String(), date, req.Description, req.EntityType, req.EntityID).Scan(&id)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to create receipt: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "id": id})
	}
}

// Handler: GetReceipts, optionally filtered by entity reference
func GetReceipts(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityType := r.URL.Query().Get("entity_type")
		entityID := r.URL.Query().Get("entity_id")
		rows, err := pool.Query(r.Context(), `
			SELECT id, receipt_type, amount::text, receipt_date, description, entity_type, entity_id, created_at
			FROM receipts
			WHERE ($1 = '' OR entity_type = $1)
			  AND ($2 = '' OR entity_id = $2)
			ORDER BY receipt_date DESC, created_at DESC
		`, entityType, entityID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()

		type item struct {
			ID          string    `json:"id"`
			ReceiptType string    `json:"receipt_type"`
			Amount      string    `json:"amount"`
			ReceiptDate time.Time `json:"receipt_date"`
			Description *string   `json:"description"`
			EntityType  *string   `json:"entity_type"`
			EntityID    *string   `json:"entity_id"`
			CreatedAt   time.Time `json:"created_at"`
		}
		results := make([]item, 0)
		for rows.Next() {
			var it item
			if err := rows.Scan(&it.ID, &it.ReceiptType, &it.Amount, &it.ReceiptDate, &it.Description,
				&it.EntityType, &it.EntityID, &it.CreatedAt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			results = append(results, it)
		}
		api.RespondWithPayload(w, true, "", results)
	}
}
