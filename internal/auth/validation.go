package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"bookvocab/internal/apperr"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	lowerPattern    = regexp.MustCompile(`[a-z]`)
	upperPattern    = regexp.MustCompile(`[A-Z]`)
	digitPattern    = regexp.MustCompile(`[0-9]`)
	specialPattern  = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

type RegisterInput struct {
	Username string `json:"username" binding:"required,min=3,max=20,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=32,password"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterValidators adds the username and password tags to v. The HTTP
// layer calls it on gin's validator so both share the rules.
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		pw := fl.Field().String()
		return lowerPattern.MatchString(pw) &&
			upperPattern.MatchString(pw) &&
			digitPattern.MatchString(pw) &&
			specialPattern.MatchString(pw)
	})
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	if err := RegisterValidators(v); err != nil {
		panic(err)
	}
	return v
}

// ValidationMessages turns validator errors into one message per field.
func ValidationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"Invalid request body"}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case "username":
		return "Username can only contain letters, numbers, and underscores"
	case "password":
		return "Password must contain a lowercase letter, an uppercase letter, a number and a special character"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func validationError(err error) error {
	msgs := ValidationMessages(err)
	return apperr.Validation(strings.Join(msgs, "; "), err)
}
