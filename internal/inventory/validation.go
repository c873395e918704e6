package inventory

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var pricePattern = regexp.MustCompile(`^LKR \d+(\.\d{0,9})?$`)

var fieldMessages = map[string]map[string]string{
	"name": {
		"required": "Please input the name of the item!",
	},
	"price": {
		"required": "Please input the price of the item!",
		"lkrprice": "Price must be in the format 'LKR 300.00'",
	},
	"description": {
		"required": "Please input the item description!",
	},
}

// Validator checks item fields with go-playground/validator.
type Validator struct {
	validate *validator.Validate
}

// NewValidator registers the lkrprice tag and JSON field naming.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("lkrprice", func(fl validator.FieldLevel) bool {
		return ValidPrice(fl.Field().String())
	})
	return &Validator{validate: v}
}

// ValidPrice reports whether price reads like "LKR 300.00".
func ValidPrice(price string) bool {
	return pricePattern.MatchString(price)
}

// Check returns nil when the fields are acceptable.
func (v *Validator) Check(fields ItemFields) FieldErrors {
	err := v.validate.Struct(fields)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"general": err.Error()}
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		msg := fieldMessages[field][fe.Tag()]
		if msg == "" {
			msg = fe.Error()
		}
		out[field] = msg
	}
	return out
}
