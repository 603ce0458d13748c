package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/Flexitaim/api-flexitaim/internal/scheduling"
)

// registerSchedulingValidations adds the ymd and hms tags used by scheduling payloads.
func registerSchedulingValidations(validate *validator.Validate) *validator.Validate {
	if validate == nil {
		validate = validator.New()
	}
	_ = validate.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		if len(raw) != 10 {
			return false
		}
		_, err := scheduling.ParseDate(raw)
		return err == nil
	})
	_ = validate.RegisterValidation("hms", func(fl validator.FieldLevel) bool {
		_, err := scheduling.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	return validate
}
