package students

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"SchoolSuite/api"
	"SchoolSuite/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler: UploadPhoto stores a profile photo in the storage bucket and
// records its object path on the student row.
func UploadPhoto(pool *pgxpool.Pool, store *storage.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			api.RespondWithError(w, http.StatusServiceUnavailable, "storage is not configured")
			return
		}
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "Failed to parse multipart form")
			return
		}
		studentID := r.FormValue("student_id")
		if studentID == "" {
			api.RespondWithError(w, http.StatusBadRequest, "student_id is required")
			return
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "photo is required")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to read photo")
			return
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		objectPath := fmt.Sprintf("students/%s/photo%s", studentID, ext)
		if err := store.Upload(ctx, objectPath, contentType, data); err != nil {
			api.RespondWithError(w, http.StatusBadGateway, "Photo upload failed: "+err.Error())
			return
		}
		if _, err := pool.Exec(ctx, `UPDATE students SET photo_path = $1 WHERE id = $2`, objectPath, studentID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to record photo path: "+err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", map[string]string{"photo_path": objectPath})
	}
}

// Handler: GetPhoto streams the stored profile photo back to the caller
func GetPhoto(pool *pgxpool.Pool, store *storage.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			api.RespondWithError(w, http.StatusServiceUnavailable, "storage is not configured")
			return
		}
		studentID := r.URL.Query().Get("student_id")
		if studentID == "" {
			api.RespondWithError(w, http.StatusBadRequest, "student_id is required")
			return
		}
		var objectPath *string
		if err := pool.QueryRow(ctx, `SELECT photo_path FROM students WHERE id = $1`, studentID).Scan(&objectPath); err != nil {
			api.RespondWithError(w, http.StatusNotFound, "student not found")
			return
		}
		if objectPath == nil || *objectPath == "" {
			api.RespondWithError(w, http.StatusNotFound, "student has no photo")
			return
		}
		data, err := store.Download(ctx, *objectPath)
		if err != nil {
			api.RespondWithError(w, http.StatusBadGateway, "Photo download failed: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", contentTypeForExt(filepath.Ext(*objectPath)))
		w.Write(data)
	}
}

// Handler: DeletePhoto removes the object and clears the stored path
func DeletePhoto(pool *pgxpool.Pool, store *storage.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			api.RespondWithError(w, http.StatusServiceUnavailable, "storage is not configured")
			return
		}
		studentID := r.URL.Query().Get("student_id")
		if studentID == "" {
			api.RespondWithError(w, http.StatusBadRequest, "student_id is required")
			return
		}
		var objectPath *string
		if err := pool.QueryRow(ctx, `SELECT photo_path FROM students WHERE id = $1`, studentID).Scan(&objectPath); err != nil {
			api.RespondWithError(w, http.StatusNotFound, "student not found")
			return
		}
		if objectPath != nil && *objectPath != "" {
			if err := store.Delete(ctx, *objectPath); err != nil {
				api.LogError("photo delete for %s failed: %v", studentID, err)
			}
		}
		if _, err := pool.Exec(ctx, `UPDATE students SET photo_path = NULL WHERE id = $1`, studentID); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to clear photo path: "+err.Error())
			return
		}
		api.RespondWithResult(w, true, "")
	}
}

func contentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}
