package appointment

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/agenda/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("recurrence", func(fl validator.FieldLevel) bool {
		return model.Recurrence(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return model.Status(fl.Field().String()).Valid()
	})
	return v
}

// Check verifies the invariants every stored appointment satisfies.
func Check(a model.Appointment) error {
	if err := validate.Struct(a); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			return &ValidationError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("%s failed %s check", fe.Field(), fe.Tag()),
				Err:     err,
			}
		}
		return fmt.Errorf("validate appointment: %w", err)
	}
	if a.EndDate != nil && a.EndDate.Before(a.Date) {
		return invalid("endDate", ErrEndBeforeStart)
	}
	return nil
}
