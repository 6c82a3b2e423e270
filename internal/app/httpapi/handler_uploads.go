package httpapi

import (
	"errors"
	"net/http"

	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/internal/middleware"
)

// multipartSlack covers form boundaries and headers around the file part.
const multipartSlack = 64 << 10

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	limit := h.app.Uploads.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, apperrors.InvalidFormat("body", "expected multipart/form-data"))
		return
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, apperrors.PayloadTooLarge(limit))
				return
			}
			writeError(w, apperrors.Validation("file field is required"))
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		file, err := h.app.Uploads.Save(r.Context(), middleware.GetUserID(r.Context()), part.FileName(), part)
		_ = part.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				err = apperrors.PayloadTooLarge(limit)
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, file)
		return
	}
}
