package imports

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"SchoolSuite/api"
	"SchoolSuite/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var columnTypeSQL = map[string]string{
	TypeText:    "TEXT",
	TypeInteger: "INTEGER",
	TypeNumeric: "NUMERIC(12,2)",
	TypeBoolean: "BOOLEAN",
	TypeDate:    "DATE",
}

// Handler: ApplySchema adds the requested columns to the students table.
// Importing a file never changes the schema; an operator confirms the new
// columns from the analysis result and applies them here first.
func ApplySchema(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			Columns []struct {
				Name     string `json:"name"`
				DataType string `json:"data_type"`
			} `json:"columns"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Columns) == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "columns must be a non-empty array")
			return
		}
		added := make([]string, 0, len(req.Columns))
		for _, col := range req.Columns {
			name := SanitizeColumnName(col.Name)
			sqlType, ok := columnTypeSQL[strings.ToLower(col.DataType)]
			if !ok {
				api.RespondWithError(w, http.StatusBadRequest, "unsupported data type: "+col.DataType)
				return
			}
			stmt := fmt.Sprintf(`ALTER TABLE students ADD COLUMN IF NOT EXISTS %s %s`,
				pgx.Identifier{name}.Sanitize(), sqlType)
			if _, err := pool.Exec(ctx, stmt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, "Failed to add column "+name+": "+err.Error())
				return
			}
			added = append(added, name)
		}
		logger.Audit("Schema migration applied: added columns %s", strings.Join(added, ", "))
		api.RespondWithPayload(w, true, "", added)
	}
}
