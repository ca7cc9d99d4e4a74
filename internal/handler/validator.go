package handler

import (
    "fmt"
    "strings"

    "github.com/go-playground/validator/v10"

    "github.com/iliyamo/service-scheduling/internal/service"
)

// RequestValidator adapts validator/v10 to echo.Validator.  Register it with
// e.Validator = handler.NewRequestValidator().
type RequestValidator struct {
    v *validator.Validate
}

// NewRequestValidator registers the slotdate (YYYY-MM-DD) and slottime
// (HH:MM) tags next to the built-in ones.
func NewRequestValidator() *RequestValidator {
    v := validator.New()
    _ = v.RegisterValidation("slotdate", func(fl validator.FieldLevel) bool {
        _, err := service.ParseSlot(fl.Field().String(), "00:00")
        return err == nil
    })
    _ = v.RegisterValidation("slottime", func(fl validator.FieldLevel) bool {
        _, err := service.ParseSlot("2000-01-01", fl.Field().String())
        return err == nil
    })
    return &RequestValidator{v: v}
}

// Validate returns a single error describing every failed field.
func (rv *RequestValidator) Validate(i interface{}) error {
    err := rv.v.Struct(i)
    if err == nil {
        return nil
    }
    errs, ok := err.(validator.ValidationErrors)
    if !ok {
        return err
    }
    msgs := make([]string, 0, len(errs))
    for _, fe := range errs {
        msgs = append(msgs, describeField(fe))
    }
    return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func describeField(fe validator.FieldError) string {
    field := strings.ToLower(fe.Field())
    switch fe.Tag() {
    case "required":
        return fmt.Sprintf("%s is required", field)
    case "min":
        return fmt.Sprintf("%s must be at least %s", field, fe.Param())
    case "max":
        return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
    case "oneof":
        return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
    case "slotdate":
        return fmt.Sprintf("%s must be formatted YYYY-MM-DD", field)
    case "slottime":
        return fmt.Sprintf("%s must be formatted HH:MM", field)
    default:
        return fmt.Sprintf("%s failed the %s check", field, fe.Tag())
    }
}
