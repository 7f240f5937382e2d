package wizard

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	checkerIDPattern = regexp.MustCompile(`^CHECKER_\d{3}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("email_basic", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.String && emailPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("checker_id", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.String && checkerIDPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.Float32, reflect.Float64:
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		}
		return true
	})
	return v
}

// Errors maps a field path to a human-readable message. Any entry blocks advancing or submitting.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// splitRules separates "required" from the rules handed to the validator,
// so zero numbers count as present and only nil or blank values count as missing.
func splitRules(rules string) (required bool, rest string) {
	var kept []string
	for _, r := range strings.Split(rules, ",") {
		r = strings.TrimSpace(r)
		switch r {
		case "":
		case "required":
			required = true
		default:
			kept = append(kept, r)
		}
	}
	return required, strings.Join(kept, ",")
}

// checkRules catches unknown tags at load time; validator panics on them otherwise.
func checkRules(rules string) (err error) {
	_, rest := splitRules(rules)
	if rest == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid rules %q: %v", rules, r)
		}
	}()
	validate.Var("", rest)
	return nil
}

func missing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// checkValue returns "" when value passes, or a message.
func checkValue(f Field, value any, present bool) string {
	required, rest := splitRules(f.Rules)

	if !present || missing(value) {
		if required {
			return messageFor(f, "required", "", reflect.Invalid)
		}
		return ""
	}
	if rest == "" {
		return ""
	}

	err := validate.Var(value, rest)
	if err == nil {
		return ""
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return messageFor(f, fe.Tag(), fe.Param(), fe.Kind())
	}
	return messageFor(f, "", "", reflect.Invalid)
}

func messageFor(f Field, tag, param string, kind reflect.Kind) string {
	if f.Message != "" {
		return f.Message
	}

	label := f.Label
	if label == "" {
		label = humanize(f.Path)
	}

	switch tag {
	case "required":
		return label + " is required"
	case "email", "email_basic":
		return "Enter a valid email address"
	case "checker_id":
		return label + " must look like CHECKER_001"
	case "finite":
		return label + " must be a number"
	case "min":
		switch kind {
		case reflect.String:
			return fmt.Sprintf("%s must be at least %s characters", label, param)
		case reflect.Slice, reflect.Map, reflect.Array:
			return fmt.Sprintf("Add at least %s to %s", param, strings.ToLower(label))
		}
		return fmt.Sprintf("%s must be at least %s", label, param)
	case "max":
		if kind == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", label, param)
		}
		return fmt.Sprintf("%s must be at most %s", label, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", label, param)
	case "gte":
		return fmt.Sprintf("%s must be %s or more", label, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", label, param)
	case "lte":
		return fmt.Sprintf("%s must be %s or less", label, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(param, " ", ", "))
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", label, param)
	case "numeric":
		return label + " must contain only digits"
	default:
		return label + " is invalid"
	}
}

// humanize turns "shipping_address.zip" into "Zip".
func humanize(p string) string {
	if i := strings.LastIndexAny(p, ".]"); i >= 0 && i+1 < len(p) {
		p = p[i+1:]
	}
	p = strings.TrimLeft(p, ".")
	p = strings.ReplaceAll(p, "_", " ")
	if p == "" {
		return "Field"
	}
	return strings.ToUpper(p[:1]) + p[1:]
}
