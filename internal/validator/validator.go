package validator

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// trans translates gin binding errors; schemaTrans translates Struct errors.
	trans       ut.Translator
	schemaTrans ut.Translator

	// schema validates decoded API responses and outgoing payloads (tag "validate").
	schema     *govalidator.Validate
	schemaOnce sync.Once
)

// Setup registers the validator with English translations on Gin's binding engine.
// Call once during application startup.
func Setup() {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		trans = configure(v)
	}
}

// configure gives v its own English translator; translators cannot be shared
// between validator instances.
func configure(v *govalidator.Validate) ut.Translator {
	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(jsonTagName)

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	t, _ := uni.GetTranslator("en")
	en_translations.RegisterDefaultTranslations(v, t)
	return t
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func engine() *govalidator.Validate {
	schemaOnce.Do(func() {
		schema = govalidator.New(govalidator.WithRequiredStructEnabled())
		schemaTrans = configure(schema)
	})
	return schema
}

// SchemaError reports a payload that does not match its declared schema.
type SchemaError struct {
	Fields map[string]string
}

func (e *SchemaError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "schema violation: " + strings.Join(parts, "; ")
}

// Struct validates v against its `validate` tags.
func Struct(v interface{}) error {
	if err := engine().Struct(v); err != nil {
		return &SchemaError{Fields: translateWith(err, schemaTrans)}
	}
	return nil
}

// Slice validates every element of a slice of structs.
func Slice[T any](items []T) error {
	for i := range items {
		if err := engine().Struct(&items[i]); err != nil {
			fields := make(map[string]string)
			for k, v := range translateWith(err, schemaTrans) {
				fields[fmt.Sprintf("[%d].%s", i, k)] = v
			}
			return &SchemaError{Fields: fields}
		}
	}
	return nil
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name to human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	return translateWith(err, trans)
}

func translateWith(err error, t ut.Translator) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			key := fe.Namespace()
			if i := strings.Index(key, "."); i >= 0 {
				key = key[i+1:]
			}
			if t != nil {
				fields[key] = fe.Translate(t)
			} else {
				fields[key] = fe.Error()
			}
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// BindQuery binds and validates query parameters into dst.
func BindQuery(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindQuery(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// BindSchema binds the request body into dst and validates it against its
// `validate` tags, the same rules outgoing API payloads are checked with.
func BindSchema(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	if err := Struct(dst); err != nil {
		var se *SchemaError
		if errors.As(err, &se) {
			return se.Fields
		}
		return map[string]string{"detail": err.Error()}
	}
	return nil
}
