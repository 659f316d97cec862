package shared

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestValidateWrapsFieldErrors(t *testing.T) {
	type command struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=6"`
	}
	err := Validate(validator.New(), command{Email: "nope", Password: "123"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidInput))
	require.Contains(t, err.Error(), "email failed email")
	require.Contains(t, err.Error(), "password failed min")

	require.NoError(t, Validate(nil, command{Email: "a@b.co", Password: "secret"}))
}
