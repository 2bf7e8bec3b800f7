package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// mergeForm holds the text fields of a merge upload.
type mergeForm struct {
	StartDate string `form:"start_date" validate:"required"`
	EndDate   string `form:"end_date" validate:"required"`
	N         string `form:"n" validate:"required"`
	Format    string `form:"format" validate:"omitempty,oneof=csv xlsx CSV XLSX"`
	HasHeader string `form:"has_header" validate:"omitempty,boolean"`
}

var formValidator = newFormValidator() //nolint:gochecknoglobals // validator caches struct metadata

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string { return f.Tag.Get("form") })
	return v
}

// bindMergeForm reads the form fields of r. ParseMultipartForm must have run.
func bindMergeForm(r *http.Request) mergeForm {
	return mergeForm{
		StartDate: strings.TrimSpace(r.FormValue("start_date")),
		EndDate:   strings.TrimSpace(r.FormValue("end_date")),
		N:         strings.TrimSpace(r.FormValue("n")),
		Format:    strings.TrimSpace(r.FormValue("format")),
		HasHeader: strings.TrimSpace(r.FormValue("has_header")),
	}
}

// validate reports every failing field in one ErrBadRequest.
func (f mergeForm) validate() error {
	err := formValidator.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrBadRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "boolean":
		return fe.Field() + " must be true or false"
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func (f mergeForm) hasHeader() bool {
	ok, _ := strconv.ParseBool(f.HasHeader)
	return ok
}
