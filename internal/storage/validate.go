package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conorfennell/studyhash/internal/domain"
	"github.com/go-playground/validator/v10"
)

// validationError flattens validator failures into a single domain error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &domain.ValidationError{Field: "settings", Message: err.Error()}
	}

	fields := make([]string, 0, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field())
		msgs = append(msgs, fmt.Sprintf("Field: %s, Tag: %s, Param: %s", e.Field(), e.Tag(), e.Param()))
	}
	return &domain.ValidationError{
		Field:   strings.Join(fields, ","),
		Message: "validation failed: " + strings.Join(msgs, "; "),
	}
}
