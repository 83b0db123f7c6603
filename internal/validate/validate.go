// Package validate checks user-supplied structs before they are sent to a
// remote API. Failures come back as FieldErrors keyed by JSON field name
// with English messages.
package validate

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ErrInvalid matches every FieldErrors via errors.Is.
var ErrInvalid = errors.New("invalid input")

const notBlankTag = "notblank"

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	english := en.New()
	uni := ut.New(english, english)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON names, which is what users see in config and input files.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlank)
	_ = validate.RegisterTranslation(notBlankTag, translator,
		func(ut.Translator) error { return nil },
		func(_ ut.Translator, _ validator.FieldError) string { return "this field cannot be blank" },
	)
}

func notBlank(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(s) != ""
	}

	return false
}

// FieldErrors maps a field name to what is wrong with it.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}

	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}

	return "invalid input: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrInvalid) hold.
func (fe FieldErrors) Is(target error) bool {
	return target == ErrInvalid
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	return convert(validate.Struct(s), "")
}

// Email checks that addr is a single well-formed address.
func Email(addr string) error {
	return convert(validate.Var(addr, "required,email"), "email")
}

func convert(err error, field string) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fe := make(FieldErrors, len(verrs))
	for _, v := range verrs {
		name := v.Field()
		if name == "" {
			name = field
		}

		fe[name] = v.Translate(translator)
	}

	return fe
}
