package easyappointments

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/araddon/dateparse"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report wire names so Fields lines up with server validation errors
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("ea_datetime", func(fl validator.FieldLevel) bool {
			_, err := dateparse.ParseStrict(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("ea_clock", func(fl validator.FieldLevel) bool {
			return clockPattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("ea_status", func(fl validator.FieldLevel) bool {
			_, err := ParseStatus(fl.Field().String())
			return err == nil
		})
		validate.RegisterStructValidation(appointmentStructLevel, Appointment{})
	})
	return validate
}

// validateModel checks v against its struct tags and returns a validation
// *Error with per-field messages keyed by wire name.
func validateModel(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError(err.Error(), nil)
	}

	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		key := fieldPath(fe.Namespace())
		fields[key] = append(fields[key], describeFieldError(fe))
	}
	return validationError(formatFields(fields), fields)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "ea_datetime":
		return fmt.Sprintf("must be a date-time such as %s", DateTimeLayout)
	case "ea_clock":
		return "must be a time in HH:MM format"
	case "ea_status":
		return "must be Booked or Cancelled"
	case "ea_after_start":
		return "must be after start"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// decodeModel unmarshals a server object into v and validates it. Decode
// failures and missing required fields are both validation errors.
func decodeModel(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{
			Kind:    KindValidation,
			Message: fmt.Sprintf("failed to decode response: %v", err),
			Body:    data,
			Err:     err,
		}
	}
	if n, ok := v.(interface{ normalize() }); ok {
		n.normalize()
	}
	if err := validateModel(v); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			apiErr.Body = data
		}
		return err
	}
	return nil
}
