// Package inputval validates request payloads with waffle/pantry/validate.
//
// Define an input struct with `validate` and `label` tags, fill it from the
// request, and call Validate:
//
//	type RegisterInput struct {
//	    Username string `json:"username" validate:"required,username" label:"Username"`
//	    Email    string `json:"email" validate:"required,mailbox,max=254" label:"Email"`
//	}
//
//	if res := inputval.Validate(in); res.HasErrors() {
//	    jsonutil.ValidationError(w, res.Map())
//	    return
//	}
package inputval

import (
	"net/mail"
	"reflect"
	"strings"
	"sync"

	"github.com/dalemusser/stratablog/internal/app/system/authutil"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/validate"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldError is the failure for one field.
type FieldError struct {
	Field   string // json name, or Go name when untagged
	Label   string
	Message string
}

// Result collects the failures from one Validate call.
type Result struct {
	Errors []FieldError
}

// HasErrors reports whether any field failed.
func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first message, or "".
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// Map returns the first message per field, the shape jsonutil.ValidationError
// and blog.ValidationError expect.
func (r *Result) Map() map[string]string {
	m := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if _, ok := m[e.Field]; !ok {
			m[e.Field] = e.Message
		}
	}
	return m
}

// customRule is a string rule registered on top of pantry/validate's built-ins.
type customRule struct {
	check   func(string) bool
	message func(label string) string
}

var customRules = map[string]customRule{
	"mailbox": {
		check:   IsValidEmail,
		message: func(string) string { return "A valid email address is required." },
	},
	"objectid": {
		check:   IsValidObjectID,
		message: func(label string) string { return label + " is not a valid ID." },
	},
	"poststatus": {
		check: IsValidPostStatus,
		message: func(label string) string {
			return label + " must be one of: " + strings.Join(models.AllPostStatuses(), ", ") + "."
		},
	},
	"username": {
		check:   func(s string) bool { return authutil.ValidateUsername(s) == nil },
		message: func(label string) string { return label + " cannot contain spaces and must be at most 80 characters." },
	},
}

var (
	validator     *validate.Validator
	validatorOnce sync.Once
)

func getValidator() *validate.Validator {
	validatorOnce.Do(func() {
		validator = validate.New(validate.WithStopOnFirstError())
		for name, rule := range customRules {
			check := rule.check
			validator.RegisterRuleFunc(name, func(v any) bool {
				s, ok := v.(string)
				return ok && check(s)
			}, name)
		}
	})
	return validator
}

// Validate checks s against its `validate` tags. Besides pantry/validate's
// built-ins (required, email, oneof, min, max) it understands mailbox,
// objectid, poststatus and username. poststatus lets "" through; pair it with
// required when a status must be given.
func Validate(s any) *Result {
	res := &Result{}
	errs, ok := getValidator().Struct(s).(validate.Errors)
	if !ok {
		return res
	}

	labels := fieldLabels(s)
	for _, e := range errs {
		label := labels[e.Field]
		if label == "" {
			label = e.Field
		}
		res.Errors = append(res.Errors, FieldError{
			Field:   e.Field,
			Label:   label,
			Message: message(label, e.Rule, e.Param),
		})
	}
	return res
}

// fieldLabels maps each field's json name (or Go name) to its label tag.
func fieldLabels(s any) map[string]string {
	t := reflect.TypeOf(s)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	labels := map[string]string{}
	if t == nil || t.Kind() != reflect.Struct {
		return labels
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		label := f.Tag.Get("label")
		if label == "" {
			continue
		}
		name := f.Name
		if j, _, _ := strings.Cut(f.Tag.Get("json"), ","); j != "" && j != "-" {
			name = j
		}
		labels[name] = label
	}
	return labels
}

func message(label, rule, param string) string {
	if r, ok := customRules[rule]; ok {
		return r.message(label)
	}
	switch rule {
	case "required":
		return label + " is required."
	case "email":
		return "A valid email address is required."
	case "oneof", "enum":
		return label + " must be one of: " + strings.ReplaceAll(param, " ", ", ") + "."
	case "min":
		return label + " must be at least " + param + " characters."
	case "max":
		return label + " must be at most " + param + " characters."
	}
	return label + " is invalid."
}

// IsValidEmail reports whether email is a bare address. Display-name forms
// such as "Ann <ann@example.com>" are rejected.
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// IsValidPostStatus reports whether s names a post status. "" passes and
// means the default.
func IsValidPostStatus(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || models.IsValidPostStatus(strings.ToLower(s))
}

// IsValidObjectID reports whether s is an ObjectID hex string.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	return err == nil
}
