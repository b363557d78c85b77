package validators

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSONBody parses and validates a JSON request body into dst.
// Unknown fields are rejected so typos surface as 400s instead of silently
// dropping data.
func DecodeJSONBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed request body")
	}
	if err := validate.Struct(dst); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
	details := make(map[string]string, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		details[fieldErr.Field()] = validationMessage(fieldErr)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "request body failed validation").WithDetails(details)
}

func validationMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fieldErr.Param()
	case "max":
		return "must be at most " + fieldErr.Param()
	case "oneof":
		return "must be one of: " + fieldErr.Param()
	case "uuid":
		return "must be a valid uuid"
	default:
		return "failed rule " + fieldErr.Tag()
	}
}
