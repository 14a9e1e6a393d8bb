// Package checkout holds the pure parts of checkout: shipping form
// validation, amount derivation and coupon math.
package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	mobilePattern  = regexp.MustCompile(`^[6-9]\d{9}$`)
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
)

// ShippingForm is the checkout address form.
type ShippingForm struct {
	Name         string `json:"name" validate:"required" label:"Full name"`
	Phone        string `json:"phone" validate:"required,in_mobile" label:"Phone"`
	Email        string `json:"email" validate:"required,email_loose" label:"Email"`
	AddressLine1 string `json:"address_line1" validate:"required" label:"Address line 1"`
	AddressLine2 string `json:"address_line2" validate:"required" label:"Address line 2"`
	City         string `json:"city" validate:"required" label:"City"`
	State        string `json:"state" validate:"required" label:"State"`
	Pincode      string `json:"pincode" validate:"required,pincode" label:"Pincode"`
	BillingSame  bool   `json:"billing_same"`
}

// Normalize trims whitespace from every field.
func (f *ShippingForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.AddressLine1 = strings.TrimSpace(f.AddressLine1)
	f.AddressLine2 = strings.TrimSpace(f.AddressLine2)
	f.City = strings.TrimSpace(f.City)
	f.State = strings.TrimSpace(f.State)
	f.Pincode = strings.TrimSpace(f.Pincode)
}

// FieldError is a single field-level validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists field errors in form order.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return e.Fields[0].Message
}

// First returns the first failing field, the one the form scrolls to.
func (e *ValidationError) First() FieldError {
	if len(e.Fields) == 0 {
		return FieldError{}
	}
	return e.Fields[0]
}

// Has reports whether a field failed.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "in_mobile", mobilePattern)
	mustRegister(v, "email_loose", emailPattern)
	mustRegister(v, "pincode", pincodePattern)
	return v
}

func mustRegister(v *validator.Validate, tag string, re *regexp.Regexp) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
}

// Validate checks the shipping form and returns a *ValidationError on failure.
func (f ShippingForm) Validate() error {
	err := formValidator.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	labels := fieldLabels()
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: messageFor(fe.Tag(), labels[fe.Field()]),
		})
	}
	return out
}

func fieldLabels() map[string]string {
	labels := make(map[string]string)
	t := reflect.TypeOf(ShippingForm{})
	for i := 0; i < t.NumField(); i++ {
		fld := t.Field(i)
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		labels[name] = fld.Tag.Get("label")
	}
	return labels
}

func messageFor(tag, label string) string {
	switch tag {
	case "required":
		return label + " is required"
	case "in_mobile":
		return "Enter a valid 10-digit mobile number"
	case "email_loose":
		return "Enter a valid email address"
	case "pincode":
		return "Pincode must be exactly 6 digits"
	default:
		return label + " is invalid"
	}
}
