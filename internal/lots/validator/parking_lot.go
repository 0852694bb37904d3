package validator

import (
	"errors"
	"fmt"
	"strings"

	"parkwatch/pkg/geo"
	"parkwatch/pkg/logger"
	"parkwatch/pkg/model"

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

type ParkingLotValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewParkingLotValidator(log *logger.Logger) *ParkingLotValidator {
	v := validator.New()

	log.Info("Parking lot validator initialized successfully")

	return &ParkingLotValidator{
		validate: v,
		logger:   log,
	}
}

func (v *ParkingLotValidator) Validate(lot *model.ParkingLot) error {
	if err := v.validate.Struct(lot); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if err := validateLocation(&lot.Location); err != nil {
		return err
	}

	if lot.AvailableSpots > lot.TotalSpots {
		return ValidationErrors{
			ValidationError{
				Field:   "AvailableSpots",
				Message: fmt.Sprintf("available spots (%d) cannot exceed total spots (%d)", lot.AvailableSpots, lot.TotalSpots),
			},
		}
	}

	return nil
}

func (v *ParkingLotValidator) ValidateUpdate(update *model.ParkingLotUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if update.Location != nil {
		if err := validateLocation(update.Location); err != nil {
			return err
		}
	}

	return nil
}

// ValidateAvailability checks an availability payload against the lot's
// current capacity. Out-of-range spot counts are rejected, never clamped.
func (v *ParkingLotValidator) ValidateAvailability(update *model.AvailabilityUpdate, totalSpots int) error {
	if update.AvailableSpots == nil && update.IsOpen == nil {
		return ValidationErrors{
			ValidationError{
				Field:   "AvailableSpots",
				Message: "at least one of available_spots or is_open must be provided",
			},
		}
	}

	if update.AvailableSpots != nil {
		spots := *update.AvailableSpots
		if spots < 0 {
			return ValidationErrors{
				ValidationError{
					Field:   "AvailableSpots",
					Message: "available spots cannot be negative",
				},
			}
		}
		if spots > totalSpots {
			return ValidationErrors{
				ValidationError{
					Field:   "AvailableSpots",
					Message: fmt.Sprintf("available spots (%d) cannot exceed total spots (%d)", spots, totalSpots),
				},
			}
		}
	}

	return nil
}

func validateLocation(location *model.GeoPoint) error {
	point := geo.Point{Lat: location.Lat(), Lon: location.Lon()}
	if err := point.Validate(); err != nil {
		return ValidationErrors{
			ValidationError{
				Field:   "Location",
				Message: err.Error(),
			},
		}
	}
	return nil
}

func (v *ParkingLotValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "len":
			message = fmt.Sprintf("%s must have length %s", err.Field(), err.Param())
		case "eq":
			message = fmt.Sprintf("%s must equal %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
