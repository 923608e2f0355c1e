package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/timerange"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	log.Info("Reservation validator initialized successfully")

	return &ReservationValidator{
		validate: v,
		logger:   log,
	}
}

// ValidateCreate checks a create request and returns the parsed duration in
// hours.
func (v *ReservationValidator) ValidateCreate(req *model.ReservationCreate) (float64, error) {
	if err := v.structErrors(req); err != nil {
		return 0, err
	}

	hours, err := timerange.ParseHours(req.DurationInHours.String())
	if err != nil {
		return 0, ValidationErrors{{Field: "duration_in_hours", Message: err.Error()}}
	}

	if !req.IsRecurring {
		return hours, nil
	}

	var errs ValidationErrors
	if req.Frequency == "" {
		errs = append(errs, ValidationError{Field: "frequency", Message: "frequency is required for recurring reservations"})
	}
	if req.EndDate == nil {
		errs = append(errs, ValidationError{Field: "end_date", Message: "end_date is required for recurring reservations"})
	} else if req.EndDate.Before(*req.StartTime) {
		errs = append(errs, ValidationError{Field: "end_date", Message: "end_date must not be before start_time"})
	}
	if len(errs) > 0 {
		return 0, errs
	}
	return hours, nil
}

// ValidateUpdate checks an edit request. The returned hours are zero when the
// request keeps the current duration.
func (v *ReservationValidator) ValidateUpdate(upd *model.ReservationUpdate) (float64, error) {
	if err := v.structErrors(upd); err != nil {
		return 0, err
	}
	if upd.DurationInHours == nil {
		return 0, nil
	}
	hours, err := timerange.ParseHours(upd.DurationInHours.String())
	if err != nil {
		return 0, ValidationErrors{{Field: "duration_in_hours", Message: err.Error()}}
	}
	return hours, nil
}

func (v *ReservationValidator) ValidateCancelMany(req *model.CancelMultipleRequest) error {
	if err := v.structErrors(req); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(req.ReservationIDs))
	for _, id := range req.ReservationIDs {
		if strings.TrimSpace(id) == "" {
			return ValidationErrors{{Field: "reservation_ids", Message: "reservation_ids cannot contain blank ids"}}
		}
		if _, dup := seen[id]; dup {
			return ValidationErrors{{Field: "reservation_ids", Message: fmt.Sprintf("duplicate id %s", id)}}
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (v *ReservationValidator) structErrors(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must contain at least %s item(s)", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must contain at most %s item(s)", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return field.Name
	}
	return name
}
