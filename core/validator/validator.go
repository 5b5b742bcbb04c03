// Package validator wraps go-playground/validator with English messages.
package validator

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validator validates struct values against their `validate` tags.
type Validator interface {
	Struct(s any) error
	StructCtx(ctx context.Context, s any) error
	Engine() *validator.Validate
}

// Validate is the shared instance used by config loading.
var Validate = New()

type validatorImpl struct {
	engine *validator.Validate
	trans  ut.Translator
}

// New creates a Validator whose errors carry translated English messages.
func New() Validator {
	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator("en")

	engine := validator.New(validator.WithRequiredStructEnabled())
	_ = en_translations.RegisterDefaultTranslations(engine, trans)

	return &validatorImpl{engine: engine, trans: trans}
}

func (v *validatorImpl) Struct(s any) error {
	return v.StructCtx(context.Background(), s)
}

func (v *validatorImpl) StructCtx(ctx context.Context, s any) error {
	if s == nil {
		return errors.New("validation target cannot be nil")
	}
	return v.translate(v.engine.StructCtx(ctx, s))
}

func (v *validatorImpl) Engine() *validator.Validate {
	return v.engine
}

func (v *validatorImpl) translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationErrors{fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.fields = append(out.fields, FieldError{
			Field:   fe.Namespace(),
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Message: fe.Translate(v.trans),
		})
	}
	return out
}

// FieldError describes one failed constraint.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// ValidationErrors is returned when one or more constraints fail.
type ValidationErrors struct {
	fields []FieldError
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.fields))
	for i, f := range e.fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the failed constraints in declaration order.
func (e *ValidationErrors) Fields() []FieldError {
	return e.fields
}

// HasField reports whether field (namespace suffix match) failed.
func (e *ValidationErrors) HasField(field string) bool {
	for _, f := range e.fields {
		if f.Field == field || strings.HasSuffix(f.Field, "."+field) {
			return true
		}
	}
	return false
}
