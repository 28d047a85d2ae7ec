package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	httperrors "github.com/numaken/genpost-sub001/internal/transport/http/errors"
)

const maxJSONBody = 16 << 10

// decodeJSON reads a single bounded JSON object and rejects unknown fields
// and trailing data.
func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("unexpected data after JSON body")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	httperrors.Write(w, status, httperrors.APIError{Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusBadRequest, code, message)
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusUnauthorized, code, message)
}

func writeForbidden(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusForbidden, code, message)
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusNotFound, code, message)
}

func writeInternal(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusInternalServerError, code, message)
}
