package httpserver

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"shopcore/internal/domain"
)

// registerValidators adds the domain enums to gin's validator and makes
// field errors use JSON names.
func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	rules := map[string]validator.Func{
		"provider": func(fl validator.FieldLevel) bool {
			return domain.PaymentProvider(fl.Field().String()).Valid()
		},
		"orderstatus": func(fl validator.FieldLevel) bool {
			return domain.OrderStatus(fl.Field().String()).Valid()
		},
		"paymentstatus": func(fl validator.FieldLevel) bool {
			return domain.PaymentStatus(fl.Field().String()).Valid()
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s validator: %w", tag, err)
		}
	}
	return nil
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "provider":
		return "must be one of stripe, paypal, yookassa"
	case "orderstatus":
		return "is not an order status"
	case "paymentstatus":
		return "is not a payment status"
	default:
		return "is invalid"
	}
}
