package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := fmt.Errorf(
		"failed validating shipping with error=%w",
		ValidationError{Fields: []string{"name", "email"}},
	)

	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "name,email")

	var vErr ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, []string{"name", "email"}, vErr.Fields)
}

func TestTaggedErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("%w: %w", ErrOrderCreationFailed, cause)

	assert.ErrorIs(t, err, ErrOrderCreationFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrOutcomeUnknown)
}
