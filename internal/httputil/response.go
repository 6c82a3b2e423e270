// Package httputil holds the JSON request/response helpers shared by the
// HTTP handlers and middleware.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
)

// DefaultBodyLimit caps JSON request bodies.
const DefaultBodyLimit int64 = 1 << 20

// ErrorBody is the envelope written for every failed request.
type ErrorBody struct {
	Error *apperrors.ServiceError `json:"error"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError converts err to a ServiceError envelope. Errors without a
// service error in their chain become 500s with a generic message.
func WriteError(w http.ResponseWriter, err error) {
	se := apperrors.GetServiceError(err)
	if se == nil {
		se = apperrors.Internal("internal server error", err)
	}
	WriteJSON(w, se.HTTPStatus, ErrorBody{Error: se})
}

// DecodeJSON reads a single JSON object from r into v. Unknown fields are
// rejected and bodies larger than limit fail with 413.
func DecodeJSON(r *http.Request, v interface{}, limit int64) error {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return apperrors.InvalidFormat("body", "content type must be application/json")
	}

	body, err := ReadAllStrict(r.Body, limit)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			return apperrors.PayloadTooLarge(limit)
		}
		return apperrors.Validation("could not read request body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return apperrors.Validation("request body is required")
	}

	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.InvalidFormat("body", jsonProblem(err))
	}
	if dec.More() {
		return apperrors.InvalidFormat("body", "unexpected data after JSON object")
	}
	return nil
}

// ErrBodyTooLarge is returned by ReadAllStrict when the body exceeds its limit.
var ErrBodyTooLarge = errors.New("body exceeds limit")

// ReadAllStrict reads at most limit bytes and fails if more remain.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

func jsonProblem(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %q must be %s", typeErr.Field, typeErr.Type)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return strings.TrimPrefix(err.Error(), "json: ")
	default:
		return "malformed JSON"
	}
}
