package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"thumbcache/internal/logging"
	"thumbcache/internal/thumbcache"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// respondJSON writes v with a 200 status.
func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, v)
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// decodeDescriptor reads and checks a media descriptor.
func decodeDescriptor(w http.ResponseWriter, r *http.Request, d *thumbcache.MediaDescriptor) bool {
	if err := decodeJSON(w, r, d); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if _, ok := thumbcache.ParseKind(d.Kind); !ok {
		writeJSONError(w, fmt.Sprintf("unknown media kind %q", d.Kind), http.StatusBadRequest)
		return false
	}
	if d.PrimaryURL == "" && d.AlternateURL == "" && d.ServerThumbnail == "" {
		writeJSONError(w, "descriptor has no URL", http.StatusBadRequest)
		return false
	}
	return true
}
