package imports

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"SchoolSuite/api"
	"SchoolSuite/api/finance"
	"SchoolSuite/internal/config"
	"SchoolSuite/internal/logger"
	"SchoolSuite/internal/retry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type ImportError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

type ImportResult struct {
	Added   int           `json:"added"`
	Updated int           `json:"updated"`
	Errors  []ImportError `json:"errors"`
}

// Importer runs one import session against the students table.
type Importer struct {
	pool       *pgxpool.Pool
	batchSize  int
	batchDelay time.Duration
	retry      retry.Policy
}

func NewImporter(pool *pgxpool.Pool, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = config.ImportBatchSize
	}
	return &Importer{
		pool:       pool,
		batchSize:  batchSize,
		batchDelay: config.ImportBatchDelay,
		retry:      retry.Policy{MaxAttempts: config.MaxRetries, Delay: retry.Linear(config.RetryDelay)},
	}
}

// ValidateMapping drops entries with an empty db_column and rejects columns
// the live schema does not have: adding columns is an explicit migration step
// (POST /imports/schema/apply), never a side effect of an import run.
func ValidateMapping(mapping []ColumnMapping, existingCols map[string]bool) ([]ColumnMapping, []string) {
	valid := make([]ColumnMapping, 0, len(mapping))
	var missing []string
	for _, m := range mapping {
		if strings.TrimSpace(m.DBColumn) == "" {
			continue
		}
		if existingCols != nil && !existingCols[m.DBColumn] {
			missing = append(missing, m.DBColumn)
			continue
		}
		valid = append(valid, m)
	}
	sort.Strings(missing)
	return valid, missing
}

// BuildRecord converts one data row into target column values. Typed columns
// are validated here; a failed conversion is returned as a field error.
func BuildRecord(headers []string, row []string, mapping []ColumnMapping) (map[string]string, []ImportError) {
	byHeader := make(map[string]ColumnMapping, len(mapping))
	for _, m := range mapping {
		byHeader[m.ExcelColumn] = m
	}
	record := make(map[string]string)
	var errs []ImportError
	for i, header := range headers {
		m, ok := byHeader[header]
		if !ok {
			continue
		}
		value := ""
		if i < len(row) {
			value = strings.TrimSpace(row[i])
		}
		if value == "" {
			value = m.Default
		}
		if value == "" {
			continue
		}
		switch m.DataType {
		case TypeDate:
			normalized, ok := NormalizeDate(value)
			if !ok {
				errs = append(errs, ImportError{Field: m.DBColumn, Value: value, Message: "malformed date"})
				continue
			}
			value = normalized
		case TypeInteger:
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				errs = append(errs, ImportError{Field: m.DBColumn, Value: value, Message: "malformed integer"})
				continue
			}
		case TypeNumeric:
			if _, err := decimal.NewFromString(value); err != nil {
				errs = append(errs, ImportError{Field: m.DBColumn, Value: value, Message: "malformed number"})
				continue
			}
		}
		record[m.DBColumn] = value
	}

	// Derived financial field: net total after discount
	if fees, ok := record["fees"]; ok {
		f, err := decimal.NewFromString(fees)
		if err == nil {
			d := decimal.Zero
			if discount, ok := record["discount"]; ok {
				d, _ = decimal.NewFromString(discount)
			}
			record["total_after_discount"] = f.Sub(d).String()
		}
	}
	return record, errs
}

// touchesNetTotal reports whether applying record changes an input of
// total_after_discount. BuildRecord can only derive the net total when fees
// is present, so a discount-only update must recompute it from the stored row
func touchesNetTotal(record map[string]string) bool {
	_, hasFees := record["fees"]
	_, hasDiscount := record["discount"]
	return hasFees || hasDiscount
}

// MissingRequiredFields returns the required fields absent from a record.
// Checked at insert time only; updates leave absent fields untouched.
func MissingRequiredFields(record map[string]string) []string {
	var missing []string
	for _, field := range RequiredFields {
		if record[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// Run processes data rows in fixed-size sequential batches with a short delay
// between batches to go easy on the backend connection.
func (imp *Importer) Run(ctx context.Context, headers []string, dataRows [][]string, mapping []ColumnMapping, identifierColumn string) (*ImportResult, error) {
	result := &ImportResult{Errors: make([]ImportError, 0)}

	for start := 0; start < len(dataRows); start += imp.batchSize {
		end := start + imp.batchSize
		if end > len(dataRows) {
			end = len(dataRows)
		}
		for i, row := range dataRows[start:end] {
			rowNum := start + i + 2 // 1-based, counting the header row
			imp.importRow(ctx, rowNum, headers, row, mapping, identifierColumn, result)
		}
		if end < len(dataRows) {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(imp.batchDelay):
			}
		}
	}
	logger.Audit("Import finished: %d added, %d updated, %d errors", result.Added, result.Updated, len(result.Errors))
	return result, nil
}

func (imp *Importer) importRow(ctx context.Context, rowNum int, headers []string, row []string, mapping []ColumnMapping, identifierColumn string, result *ImportResult) {
	record, errs := BuildRecord(headers, row, mapping)
	if len(errs) > 0 {
		for _, e := range errs {
			e.Row = rowNum
			result.Errors = append(result.Errors, e)
		}
		return
	}
	if len(record) == 0 {
		result.Errors = append(result.Errors, ImportError{Row: rowNum, Message: "empty row"})
		return
	}

	existingID, existingName, err := imp.findExisting(ctx, record, identifierColumn)
	if err != nil {
		result.Errors = append(result.Errors, ImportError{Row: rowNum, Message: "lookup failed: " + err.Error()})
		return
	}

	if existingID != "" {
		if err := imp.retry.Do(ctx, func() error {
			return imp.updateStudent(ctx, existingID, record)
		}); err != nil {
			result.Errors = append(result.Errors, ImportError{Row: rowNum, Message: "update failed: " + err.Error()})
			return
		}
		if touchesNetTotal(record) {
			if _, err := imp.pool.Exec(ctx, `
				UPDATE students SET total_after_discount = COALESCE(fees, 0) - COALESCE(discount, 0) WHERE id = $1
			`, existingID); err != nil {
				result.Errors = append(result.Errors, ImportError{Row: rowNum, Message: "net total recompute failed: " + err.Error()})
				return
			}
		}
		// A name that disagrees with the stored record is a soft mismatch:
		// note it on the student rather than failing the row.
		if incoming := record["full_name"]; incoming != "" && !strings.EqualFold(incoming, existingName) {
			warning := fmt.Sprintf("import %s: name mismatch, file had %q", time.Now().Format("2006-01-02"), incoming)
			if _, werr := imp.pool.Exec(ctx, `
				UPDATE students SET academic_notes = CONCAT_WS(E'\n', NULLIF(academic_notes, ''), $1::text) WHERE id = $2
			`, warning, existingID); werr != nil {
				api.LogError("failed to append name mismatch note for %s: %v", existingID, werr)
			}
		}
		result.Updated++
		imp.applySideEffects(ctx, existingID, record, result, rowNum)
		return
	}

	if missing := MissingRequiredFields(record); len(missing) > 0 {
		for _, field := range missing {
			result.Errors = append(result.Errors, ImportError{Row: rowNum, Field: field, Message: "missing required field"})
		}
		return
	}
	var newID string
	if err := imp.retry.Do(ctx, func() error {
		var ierr error
		newID, ierr = imp.insertStudent(ctx, record)
		return ierr
	}); err != nil {
		result.Errors = append(result.Errors, ImportError{Row: rowNum, Message: "insert failed: " + err.Error()})
		return
	}
	result.Added++
	imp.applySideEffects(ctx, newID, record, result, rowNum)
}

// lookupQuery picks how an incoming row is matched against existing students:
// by the configured identifier column when one is set, otherwise by a
// case-insensitive full-name comparison so a repeated import converges on the
// same row. An empty query means the row has nothing to match on.
func lookupQuery(identifierColumn string, record map[string]string) (query, value string) {
	if identifierColumn != "" {
		value = record[identifierColumn]
		if value == "" {
			return "", ""
		}
		return fmt.Sprintf(`SELECT id, full_name FROM students WHERE %s = $1 LIMIT 1`,
			pgx.Identifier{identifierColumn}.Sanitize()), value
	}
	value = record["full_name"]
	if value == "" {
		return "", ""
	}
	return `SELECT id, full_name FROM students WHERE LOWER(full_name) = LOWER($1) LIMIT 1`, value
}

func (imp *Importer) findExisting(ctx context.Context, record map[string]string, identifierColumn string) (id, name string, err error) {
	query, value := lookupQuery(identifierColumn, record)
	if query == "" {
		return "", "", nil
	}
	err = imp.pool.QueryRow(ctx, query, value).Scan(&id, &name)
	if err == pgx.ErrNoRows {
		return "", "", nil
	}
	return id, name, err
}

func (imp *Importer) insertStudent(ctx context.Context, record map[string]string) (string, error) {
	cols := make([]string, 0, len(record))
	for col := range record {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		quoted[i] = pgx.Identifier{col}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = record[col]
	}
	query := fmt.Sprintf(`INSERT INTO students (%s) VALUES (%s) RETURNING id`,
		strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	var id string
	err := imp.pool.QueryRow(ctx, query, args...).Scan(&id)
	return id, err
}

func (imp *Importer) updateStudent(ctx context.Context, id string, record map[string]string) error {
	cols := make([]string, 0, len(record))
	for col := range record {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{col}.Sanitize(), i+1)
		args = append(args, record[col])
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE students SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(cols)+1)
	_, err := imp.pool.Exec(ctx, query, args...)
	return err
}

// applySideEffects handles the financial consequences of an imported row: a
// non-zero advance payment is appended to the payment log, and students on
// the installments payment method get their schedule rebuilt from the
// just-written totals.
func (imp *Importer) applySideEffects(ctx context.Context, studentID string, record map[string]string, result *ImportResult, rowNum int) {
	if adv, ok := record["advance_payment"]; ok {
		amount, err := decimal.NewFromString(adv)
		if err == nil && amount.IsPositive() {
			if err := finance.AddPaymentRecord(ctx, imp.pool, studentID, amount, time.Now(), finance.PaymentTypeAdvance, "", "imported advance payment"); err != nil {
				result.Errors = append(result.Errors, ImportError{Row: rowNum, Message: "advance payment record failed: " + err.Error()})
			}
		}
	}
	if strings.EqualFold(record["payment_method"], "installments") {
		if _, err := finance.RegenerateInstallments(ctx, imp.pool, studentID); err != nil {
			result.Errors = append(result.Errors, ImportError{Row: rowNum, Message: "installment schedule failed: " + err.Error()})
		}
	}
}

// Handler: RunImport executes a full import: file + validated mapping +
// optional identifier column, processed in batches with bounded retry.
func RunImport(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "Failed to parse multipart form")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to read uploaded file")
			return
		}
		rows, err := ParseRows(data, getFileExt(header.Filename))
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "Invalid file: "+err.Error())
			return
		}
		if len(rows) < 2 {
			api.RespondWithError(w, http.StatusBadRequest, ErrNoUsableData.Error())
			return
		}

		var mapping []ColumnMapping
		if err := json.Unmarshal([]byte(r.FormValue("mapping")), &mapping); err != nil || len(mapping) == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "mapping form field must be a non-empty JSON array")
			return
		}
		existingCols, err := lookupTableColumns(ctx, pool, "students")
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to read target schema: "+err.Error())
			return
		}
		mapping, missingCols := ValidateMapping(mapping, existingCols)
		if len(missingCols) > 0 {
			api.RespondWithError(w, http.StatusBadRequest,
				"schema is missing columns "+strings.Join(missingCols, ", ")+"; apply the schema migration first")
			return
		}
		if len(mapping) == 0 {
			api.RespondWithError(w, http.StatusBadRequest, "mapping has no usable columns")
			return
		}

		batchSize := 0
		if v := r.FormValue("batch_size"); v != "" {
			batchSize, _ = strconv.Atoi(v)
		}
		importer := NewImporter(pool, batchSize)
		result, err := importer.Run(ctx, rows[0], rows[1:], mapping, r.FormValue("identifier_column"))
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Import aborted: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"result":  result,
		})
	}
}
