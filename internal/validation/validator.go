package validation

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validator wraps a validator.Validate with lazy initialization
type Validator struct {
	once     sync.Once
	validate *validator.Validate
}

var defaultValidator = &Validator{}

// Struct validates obj against its `validate` tags using the shared validator.
func Struct(obj interface{}) error {
	return defaultValidator.ValidateStruct(obj)
}

// ValidateStruct validates whether the fields of a struct satisfy validation constraints
// specified via struct tags. Non-struct values are ignored.
func (v *Validator) ValidateStruct(obj interface{}) error {
	if kindOfData(obj) != reflect.Struct {
		return nil
	}
	v.lazyinit()
	return v.validate.Struct(obj)
}

// Engine returns the underlying validator engine
func (v *Validator) Engine() *validator.Validate {
	v.lazyinit()
	return v.validate
}

func (v *Validator) lazyinit() {
	v.once.Do(func() {
		v.validate = validator.New(validator.WithRequiredStructEnabled())
		// Field errors are keyed by the form name, falling back to the json name.
		v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"form", "json"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
	})
}

// kindOfData returns the reflection Kind of the passed data
// If the data is a pointer, it returns the Kind of the referenced value
func kindOfData(data interface{}) reflect.Kind {
	value := reflect.ValueOf(data)
	valueType := value.Kind()

	if valueType == reflect.Ptr {
		valueType = value.Elem().Kind()
	}
	return valueType
}
