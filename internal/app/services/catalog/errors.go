package catalog

import (
	"errors"
	"fmt"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
	"github.com/hbnb-network/catalog_layer/internal/app/storage"
)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a malformed body or missing required field. The
// message is safe to return to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var errNotJSON = &ValidationError{Message: "Not a JSON"}

func notFound(kind rental.Kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, storage.ErrNotFound)
}
