package domain

import (
	"chat-presence/errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// "required" accepts whitespace-only strings, names must carry a visible character
	_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

type loginRules struct {
	User string `validate:"nonblank"`
}

type channelRules struct {
	Channel string `validate:"nonblank"`
}

type messageRules struct {
	Dst string `validate:"nonblank"`
}

// Validate checks the preconditions a request must meet before routing.
// Services without required fields always pass.
func Validate(req Request) error {
	switch req.Service {
	case ServiceLogin:
		if validate.Struct(loginRules{User: req.User}) != nil {
			return errors.ErrMissingUser
		}
	case ServiceChannel:
		if validate.Struct(channelRules{Channel: req.Channel}) != nil {
			return errors.ErrMissingChannel
		}
	case ServiceMessage:
		if validate.Struct(messageRules{Dst: req.Dst}) != nil {
			return errors.ErrMissingDestination
		}
	case ServiceUnknown:
		return errors.ErrUnknownService
	}
	return nil
}
