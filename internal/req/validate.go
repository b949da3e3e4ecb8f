package req

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

var inputValidate *validator.Validate

func init() {
	inputValidate = validator.New()

	_ = inputValidate.RegisterValidation("classification", func(fl validator.FieldLevel) bool {
		c := Classification(fl.Field().String())
		return c == "" || c.Valid()
	})
	_ = inputValidate.RegisterValidation("scripttype", func(fl validator.FieldLevel) bool {
		return ScriptType(fl.Field().String()).Valid()
	})
	_ = inputValidate.RegisterValidation("hookpoint", func(fl validator.FieldLevel) bool {
		h := HookPoint(fl.Field().String())
		return h == HookNone || h.Valid()
	})
}

// validateStruct runs tag validation and converts the first failure into a
// *ValidationError naming the offending field.
func validateStruct(v any) error {
	err := inputValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return validationf(field, "is required")
		case "max":
			return validationf(field, "must be at most %s characters", fe.Param())
		case "classification":
			return validationf(field, "must be one of normative, informative, heading")
		case "scripttype":
			return validationf(field, "must be one of trigger, layout, action")
		case "hookpoint":
			return validationf(field, "must be one of pre_save, post_save, pre_delete, post_delete, validate")
		default:
			return validationf(field, "failed %s validation", fe.Tag())
		}
	}
	return &ValidationError{Message: err.Error()}
}

// SchemaValidator is the seam to the attribute schema collaborator.
// It is consulted before pre-save triggers on every create and update.
type SchemaValidator interface {
	ValidateObject(ctx context.Context, module *Module, obj *Object) error
}

// RequiredAttributesValidator enforces Module.RequiredAttributes.
type RequiredAttributesValidator struct{}

func (RequiredAttributesValidator) ValidateObject(_ context.Context, module *Module, obj *Object) error {
	for _, name := range module.RequiredAttributes {
		if v, ok := obj.Attributes[name]; !ok || v == nil {
			return validationf("attributes", "required attribute %q is missing", name)
		}
	}
	return nil
}

// normalizeAttributes round-trips attributes through JSON so that values
// compare and hash the same before and after storage.
func normalizeAttributes(attrs Attributes) (Attributes, error) {
	if attrs == nil {
		return Attributes{}, nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, validationf("attributes", "must be a JSON object: %v", err)
	}
	var out Attributes
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, validationf("attributes", "must be a JSON object: %v", err)
	}
	if out == nil {
		out = Attributes{}
	}
	return out, nil
}

// normalizeValue round-trips a single value through JSON.
func normalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func validPosition(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return validationf("position", "must be a finite number")
	}
	return nil
}
