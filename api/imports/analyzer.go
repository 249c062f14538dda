package imports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"SchoolSuite/api"
	"SchoolSuite/internal/config"

	"github.com/extrame/xls"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xuri/excelize/v2"
)

// ErrNoUsableData signals a file with no header or no data rows.
var ErrNoUsableData = errors.New("file contains no usable data: need a header row and at least one data row")

// ColumnMapping describes one source column for a single import session. It
// is never persisted.
type ColumnMapping struct {
	ExcelColumn string `json:"excel_column"`
	DBColumn    string `json:"db_column"`
	DataType    string `json:"data_type"`
	IsRequired  bool   `json:"is_required"`
	Default     string `json:"default,omitempty"`
}

type AnalysisResult struct {
	Headers         []string        `json:"headers"`
	SampleRows      [][]string      `json:"sample_rows"`
	TotalRows       int             `json:"total_rows"`
	Mapping         []ColumnMapping `json:"mapping"`
	MissingRequired []string        `json:"missing_required"`
	NewColumns      []string        `json:"new_columns"`
}

// Helper: get file extension
func getFileExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// ParseRows reads the first sheet of an .xlsx/.xls file, or a whole .csv,
// into rows of strings.
func ParseRows(data []byte, ext string) ([][]string, error) {
	switch ext {
	case ".csv":
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		return r.ReadAll()
	case ".xlsx":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return f.GetRows(f.GetSheetName(0))
	case ".xls":
		wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		sheet := wb.GetSheet(0)
		if sheet == nil {
			return nil, errors.New("xls file has no sheets")
		}
		rows := make([][]string, 0, int(sheet.MaxRow)+1)
		for i := 0; i <= int(sheet.MaxRow); i++ {
			row := sheet.Row(i)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for j := row.FirstCol(); j < row.LastCol(); j++ {
				cells = append(cells, row.Col(j))
			}
			rows = append(rows, cells)
		}
		return rows, nil
	}
	return nil, errors.New("unsupported file type: " + ext)
}

// Analyze builds the best-guess mapping for a parsed file. existingCols is
// the live column set of the target table; nil means the schema is unknown,
// which makes every guessed column look new.
func Analyze(rows [][]string, existingCols map[string]bool) (*AnalysisResult, error) {
	if len(rows) < 2 {
		return nil, ErrNoUsableData
	}
	headers := rows[0]
	dataRows := rows[1:]

	sampleCount := config.SampleRows
	if len(dataRows) < sampleCount {
		sampleCount = len(dataRows)
	}

	result := &AnalysisResult{
		Headers:    headers,
		SampleRows: dataRows[:sampleCount],
		TotalRows:  len(dataRows),
	}

	covered := make(map[string]bool)
	for i, header := range headers {
		sample := ""
		if i < len(dataRows[0]) {
			sample = dataRows[0][i]
		}
		m := ColumnMapping{ExcelColumn: header}
		if dbColumn, dataType, required, ok := GuessField(header); ok {
			m.DBColumn = dbColumn
			m.DataType = dataType
			m.IsRequired = required
			if m.DataType == TypeText {
				m.DataType = GuessDataType(sample)
			}
		} else {
			m.DBColumn = SanitizeColumnName(header)
			m.DataType = GuessDataType(sample)
		}
		covered[m.DBColumn] = true
		result.Mapping = append(result.Mapping, m)
	}

	for _, field := range RequiredFields {
		if !covered[field] {
			result.MissingRequired = append(result.MissingRequired, field)
		}
	}
	// Two headers can guess the same target column; report each new column once
	reported := make(map[string]bool)
	for _, m := range result.Mapping {
		if existingCols == nil || !existingCols[m.DBColumn] {
			if !reported[m.DBColumn] {
				reported[m.DBColumn] = true
				result.NewColumns = append(result.NewColumns, m.DBColumn)
			}
		}
	}
	return result, nil
}

// lookupTableColumns reads the live column set from information_schema.
func lookupTableColumns(ctx context.Context, pool *pgxpool.Pool, table string) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	if len(cols) == 0 {
		return nil, errors.New("table not found: " + table)
	}
	return cols, rows.Err()
}

// Handler: AnalyzeUpload parses the uploaded file and returns headers, a row
// sample, the guessed mapping and which guessed columns the live schema lacks
func AnalyzeUpload(pool *pgxpool.Pool) http.HandlerFunc {
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

		table := r.FormValue("table")
		if table == "" {
			table = "students"
		}
		// A schema lookup failure is swallowed: the analysis proceeds with an
		// unknown schema and every guessed column is reported as new.
		existingCols, err := lookupTableColumns(ctx, pool, table)
		if err != nil {
			api.LogError("schema lookup for %s failed, treating all columns as new: %v", table, err)
			existingCols = nil
		}

		result, err := Analyze(rows, existingCols)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "analysis": result})
	}
}
