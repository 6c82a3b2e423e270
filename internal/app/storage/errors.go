package storage

import (
	"errors"

	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
)

// Translate converts store sentinels into service errors for resource/id.
// Errors that already carry a service error pass through untouched.
func Translate(resource, id string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.GetServiceError(err) != nil {
		return err
	}

	var se *apperrors.ServiceError
	switch {
	case errors.Is(err, ErrNotFound):
		se = apperrors.NotFound(resource, id)
	case errors.Is(err, ErrConflict):
		se = apperrors.Conflict(resource + " conflicts with existing data")
	case errors.Is(err, ErrInsufficientStock):
		se = apperrors.InsufficientStock("insufficient stock")
	case errors.Is(err, ErrNotOnSale):
		se = apperrors.Validation(resource + " is not on sale")
	case errors.Is(err, ErrAlreadyOpened):
		se = apperrors.Conflict(resource + " already opened")
	default:
		return apperrors.Internal("storage failure", err)
	}
	se.Err = err
	return se
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err wraps ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
