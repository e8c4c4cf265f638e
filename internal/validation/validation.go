package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the only accepted request date format.
const DateLayout = "01/02/2006"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("mdydate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(DateLayout, fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// SubmitRequest is the body of a job submission.
type SubmitRequest struct {
	StartDate string `json:"start_date" validate:"required,mdydate"`
	EndDate   string `json:"end_date" validate:"required,mdydate"`
}

// ValidateSubmit checks field presence and date format. Range ordering is
// checked when the job is created.
func ValidateSubmit(req SubmitRequest) ValidationErrors {
	return collect(validate.Struct(req))
}

// Page holds pagination query parameters.
type Page struct {
	Offset int `json:"offset" validate:"gte=0"`
	Limit  int `json:"limit" validate:"gte=0"`
}

// ParsePage reads offset and limit query values. Empty values default to
// zero; anything else must be a non-negative integer.
func ParsePage(offsetRaw, limitRaw string) (Page, ValidationErrors) {
	var (
		p    Page
		errs ValidationErrors
	)
	for _, q := range []struct {
		name string
		raw  string
		dst  *int
	}{
		{"offset", offsetRaw, &p.Offset},
		{"limit", limitRaw, &p.Limit},
	} {
		if q.raw == "" {
			continue
		}
		n, err := strconv.Atoi(q.raw)
		if err != nil {
			errs = append(errs, ValidationError{Field: q.name, Message: "must be an integer"})
			continue
		}
		*q.dst = n
	}
	if len(errs) > 0 {
		return Page{}, errs
	}
	if errs := collect(validate.Struct(p)); len(errs) > 0 {
		return Page{}, errs
	}
	return p, nil
}

func collect(err error) ValidationErrors {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationErrors{{Field: "request", Message: err.Error()}}
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "mdydate":
		return fmt.Sprintf("%q must match MM/DD/YYYY", fe.Value())
	case "gte":
		return "must be a non-negative integer"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
