// Package validator wraps go-playground/validator so failures are reported by their
// configuration key rather than the Go field path.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError is one failed rule. Field is the dotted mapstructure key, e.g.
// "storage.ftp.port".
type ValidationError struct {
	Field string
	Tag   string
	Param string
}

func (e ValidationError) String() string {
	if e.Param == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Tag)
	}
	return fmt.Sprintf("%s: %s=%s", e.Field, e.Tag, e.Param)
}

// ValidationErrors is every failed rule of one ValidateStruct call.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.String()
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

// Fields lists the offending keys in report order.
func (v ValidationErrors) Fields() []string {
	fields := make([]string, len(v))
	for i, e := range v {
		fields[i] = e.Field
	}
	return fields
}

var engine = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(keyName)
	return v
})

// keyName names a field after its mapstructure tag so errors match config keys.
func keyName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

// ValidateStruct checks s against its validate tags. Rule failures come back as
// ValidationErrors; anything else (a non-struct, say) is returned unchanged.
func ValidateStruct(s any) error {
	err := engine().Struct(s)
	var failed validator.ValidationErrors
	if !errors.As(err, &failed) {
		return err
	}

	out := make(ValidationErrors, len(failed))
	for i, fe := range failed {
		// Namespace starts with the root type name.
		_, key, found := strings.Cut(fe.Namespace(), ".")
		if !found {
			key = fe.Namespace()
		}
		out[i] = ValidationError{Field: key, Tag: fe.Tag(), Param: fe.Param()}
	}
	return out
}
