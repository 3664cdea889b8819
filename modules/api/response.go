package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"nanobanana-studio/modules/assets"
	"nanobanana-studio/modules/client"
	"nanobanana-studio/modules/generation"
	"nanobanana-studio/modules/session"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidBody  = &client.ValidationError{Field: "body", Message: "Invalid request body"}
	errInvalidCount = &client.ValidationError{Field: "images", Message: "images must be a non-negative integer"}
)

// writeJSON - JSON 응답 작성
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, body map[string]any) {
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

// writeError maps a gateway or flow error onto a status code and the
// {success:false, error} body. Messages are passed through, stacks never are.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := map[string]any{"success": false, "error": err.Error()}

	var (
		validationErr *client.ValidationError
		fetchErr      *generation.FetchError
		genErr        *generation.GenerationError
	)
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.Is(err, assets.ErrMissingClient),
		errors.Is(err, assets.ErrInvalidFolderType),
		errors.Is(err, assets.ErrInvalidDate):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &fetchErr):
		status = http.StatusBadRequest
		body["error"] = "Failed to fetch source image: " + err.Error()
	case errors.As(err, &genErr):
		body["rate_limited"] = genErr.RateLimited
	}

	event := h.log.Warn()
	if status >= http.StatusInternalServerError {
		event = h.log.Error()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("❌ Request failed")

	writeJSON(w, status, body)
}

// decodeJSON reads a JSON body into v. Empty or malformed bodies are a
// validation error.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}

func missingField(name string) error {
	return &client.ValidationError{Field: name, Message: "Missing required field: " + name}
}
