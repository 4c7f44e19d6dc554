package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/huddlehq/huddle/internal/player"
	"github.com/huddlehq/huddle/internal/playtag"
	"github.com/huddlehq/huddle/internal/practice"
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	notBlankTag = "notblank"
	positionTag = "position"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(validate, translator)

	// Report JSON names rather than Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		if s, ok := fl.Field().Interface().(string); ok {
			return strings.TrimSpace(s) != ""
		}
		return true
	})
	_ = validate.RegisterValidation(positionTag, func(fl validator.FieldLevel) bool {
		return player.IsPosition(fl.Field().String())
	})

	// The default translations are already registered, so the register func is a no-op.
	noop := func(ut.Translator) error { return nil }
	_ = validate.RegisterTranslation(notBlankTag, translator, noop,
		func(_ ut.Translator, fe validator.FieldError) string {
			return fe.Field() + " cannot be blank"
		})
	_ = validate.RegisterTranslation(positionTag, translator, noop,
		func(_ ut.Translator, fe validator.FieldError) string {
			return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.Join(player.Positions, " "))
		})
}

// Struct validates v against its `validate` tags.
// Returns a slice of field errors; empty slice means valid.
func Struct(v any) []FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fieldPath(fe), Message: fe.Translate(translator)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// fieldPath drops the root struct name from the namespace so nested
// fields read as "periods[0].minutes".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// PlayInstance converts the play tagging rules into field errors.
func PlayInstance(p *playtag.PlayInstance) []FieldError {
	var errs []FieldError
	for _, v := range playtag.Validate(p) {
		errs = append(errs, FieldError{Field: v.Field, Message: v.Field + " " + v.Message})
	}
	return errs
}

// PracticePlan checks that the periods fit within the practice length.
func PracticePlan(p *practice.Plan) []FieldError {
	if err := practice.Check(p); err != nil {
		return []FieldError{{Field: "periods", Message: "total period minutes exceed durationMin"}}
	}
	return nil
}
