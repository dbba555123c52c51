package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EmailDomain is the only address suffix accepted at registration.
const EmailDomain = "@gmail.com"

// phoneRegex matches local mobile numbers: 09 followed by 9 digits.
var phoneRegex = regexp.MustCompile(`^09\d{9}$`)

var Validate *validator.Validate

func init() {
	Validate = validator.New()

	_ = Validate.RegisterValidation("gmail", func(fl validator.FieldLevel) bool {
		return strings.HasSuffix(fl.Field().String(), EmailDomain)
	})

	_ = Validate.RegisterValidation("phoneph", func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
}
