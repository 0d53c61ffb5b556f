package trend

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is returned for events missing a required field.
var ErrInvalid = errors.New("invalid notification data")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so errors match the wire format.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError describes a single failed field check.
type FieldError struct {
	Field string
	Code  string
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Code)
	}
	return fmt.Sprintf("%s: %s", ErrInvalid.Error(), strings.Join(parts, ", "))
}

// Unwrap lets errors.Is match ErrInvalid.
func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

// Validate checks an untyped event payload and applies defaults.
// A field counts as present only when it holds a non-empty string or a number.
func Validate(raw map[string]any) (*Event, error) {
	event := &Event{
		ContentType: stringField(raw, "contentType"),
		ContentID:   stringField(raw, "contentId"),
		Title:       stringField(raw, "title"),
		Message:     stringField(raw, "message"),
		Team:        stringField(raw, "team"),
	}

	if err := validate.Struct(event); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			verr := &ValidationError{Fields: make([]FieldError, 0, len(fieldErrs))}
			for _, fe := range fieldErrs {
				verr.Fields = append(verr.Fields, FieldError{Field: fe.Field(), Code: fe.Tag()})
			}
			return nil, verr
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if event.Title == "" {
		event.Title = DefaultTitle
	}
	if event.Message == "" {
		event.Message = DefaultMessage
	}

	return event, nil
}

func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
