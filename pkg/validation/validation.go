// Package validation wraps validator/v10 with English messages and the custom
// tags used by timetable configuration forms.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

const (
	clockTag       = "clock"
	clockText      = "{0} must be a time formatted as HH:MM"
	clockAfterTag  = "clockafter"
	clockAfterText = "{0} must be later than {1}"
	requiredText   = "{0} is required"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Validator validates structs and renders readable messages.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New builds a Validator with English translations and custom tags registered.
func New() *Validator {
	locale := en.New()
	uni := ut.New(locale, locale)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = validate.RegisterValidation(clockTag, clockValidation)
	_ = validate.RegisterValidation(clockAfterTag, clockAfterValidation)

	registerTranslation(validate, translator, clockTag, clockText, false)
	registerTranslation(validate, translator, clockAfterTag, clockAfterText, false)
	registerTranslation(validate, translator, "required", requiredText, true)

	return &Validator{validate: validate, translator: translator}
}

// Struct validates s and returns a VALIDATION_ERROR carrying the readable messages.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	messages := v.Messages(err)
	if len(messages) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	keys := make([]string, 0, len(messages))
	for key := range messages {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, messages[key])
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, strings.Join(parts, "; "))
}

// Messages maps each failing field to its translated message.
func (v *Validator) Messages(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	result := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		result[fe.Field()] = fe.Translate(v.translator)
	}
	return result
}

// ParseClock parses an HH:MM value.
func ParseClock(value string) (time.Time, bool) {
	if !clockPattern.MatchString(value) {
		return time.Time{}, false
	}
	t, err := time.Parse("15:04", value)
	return t, err == nil
}

func clockValidation(fl validator.FieldLevel) bool {
	_, ok := ParseClock(fl.Field().String())
	return ok
}

// clockAfterValidation requires the field to be strictly later than the sibling field named by the param.
func clockAfterValidation(fl validator.FieldLevel) bool {
	other := fl.Parent().FieldByName(fl.Param())
	if !other.IsValid() || other.Kind() != reflect.String {
		return false
	}
	end, ok := ParseClock(fl.Field().String())
	if !ok {
		return false
	}
	start, ok := ParseClock(other.String())
	if !ok {
		return false
	}
	return end.After(start)
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field(), fe.Param())
			return s
		},
	)
}
