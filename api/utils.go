package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondWithError sends the standard failure envelope
func RespondWithError(w http.ResponseWriter, status int, errMsg string) {
	log.Println("[ERROR]", errMsg)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errMsg,
	})
}

// RespondWithResult sends a bare success/failure envelope
func RespondWithResult(w http.ResponseWriter, success bool, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	if success {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
		return
	}
	log.Println("[ERROR]", errMsg)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": errMsg})
}

// RespondWithPayload sends a success/failure envelope plus a `rows` payload
func RespondWithPayload(w http.ResponseWriter, success bool, errMsg string, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{"success": success}
	if !success && errMsg != "" {
		resp["error"] = errMsg
		log.Println("[ERROR]", errMsg)
	}
	if payload != nil {
		resp["rows"] = payload
	}
	json.NewEncoder(w).Encode(resp)
}

// LogInfo logs an informational message with a consistent tag
func LogInfo(msg string, args ...interface{}) {
	if len(args) > 0 {
		log.Printf("[INFO] "+msg, args...)
	} else {
		log.Println("[INFO]", msg)
	}
}

// LogError logs an error message with a consistent tag
func LogError(msg string, args ...interface{}) {
	if len(args) > 0 {
		log.Printf("[ERROR] "+msg, args...)
	} else {
		log.Println("[ERROR]", msg)
	}
}
