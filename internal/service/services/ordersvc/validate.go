package ordersvc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/order"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return v
}

func (s *OrderService) validateCreate(model *order.CreateOrderModel) error {
	model.CustomerName = strings.TrimSpace(model.CustomerName)
	model.CustomerEmail = strings.TrimSpace(model.CustomerEmail)
	model.CustomerPhone = strings.TrimSpace(model.CustomerPhone)
	model.ProductName = strings.TrimSpace(model.ProductName)
	model.ProductID = strings.TrimSpace(model.ProductID)
	model.ShippingAddress = strings.TrimSpace(model.ShippingAddress)
	model.PaymentMethod = strings.TrimSpace(model.PaymentMethod)
	model.PaymentReference = strings.TrimSpace(model.PaymentReference)
	model.Notes = strings.TrimSpace(model.Notes)

	if err := s.validate.Struct(model); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errs.Validation(describe(verrs[0]))
		}
		return errs.Wrap(errs.KindValidation, err, "invalid order")
	}
	if model.TotalPrice.IsNegative() {
		return errs.Validation("total_price must not be negative")
	}

	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
