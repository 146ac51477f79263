// Package validator registers the scheduling tags (clock, weekday, isodate,
// appointment_status) on a go-playground validator and turns its errors into
// readable messages.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/appointment-api/internal/model"
)

var customValidators = map[string]validator.Func{
	"clock": func(fl validator.FieldLevel) bool {
		_, err := model.ParseClock(fl.Field().String())
		return err == nil
	},
	"weekday": func(fl validator.FieldLevel) bool {
		_, err := model.ParseWeekday(fl.Field().String())
		return err == nil
	},
	"isodate": func(fl validator.FieldLevel) bool {
		_, err := model.ParseDate(fl.Field().String())
		return err == nil
	},
	"appointment_status": func(fl validator.FieldLevel) bool {
		return model.AppointmentStatus(fl.Field().String()).Valid()
	},
}

var messages = map[string]string{
	"required":           "is required",
	"email":              "must be a valid email",
	"uuid":               "must be a UUID",
	"oneof":              "must be one of: %s",
	"min":                "must be at least %s characters",
	"max":                "must be at most %s characters",
	"clock":              "must be a time in HH:MM form",
	"weekday":            "must be a weekday name",
	"isodate":            "must be a date in YYYY-MM-DD form",
	"appointment_status": "must be a known appointment status",
}

// New returns a validator reading the same "binding" struct tags gin does,
// with the custom tags registered and JSON field names in error messages.
func New() (*validator.Validate, error) {
	v := validator.New()
	v.SetTagName("binding")
	if err := Register(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Register adds the custom tags to v.
func Register(v *validator.Validate) error {
	for tag, fn := range customValidators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return nil
}

var ginOnce sync.Once

// RegisterGin installs the custom tags on gin's binding engine. Safe to call
// more than once.
func RegisterGin() error {
	var err error
	ginOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin binding engine is not go-playground/validator")
			return
		}
		err = Register(v)
	})
	return err
}

// Message flattens a binding error into one line naming each failing field.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldMessage(fe))
	}
	return strings.Join(parts, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	msg, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
	if strings.Contains(msg, "%s") {
		msg = fmt.Sprintf(msg, fe.Param())
	}
	return fe.Field() + " " + msg
}
