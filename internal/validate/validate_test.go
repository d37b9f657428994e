package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inErrors "github.com/Alturino/storefront/internal/errors"
)

type address struct {
	Street  string `validate:"required"       json:"street"`
	Email   string `validate:"required,email" json:"email,omitempty"`
	Comment string `                          json:"comment"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name     string
		input    address
		expected []string
	}{
		{
			name:  "given every required field should pass",
			input: address{Street: "Main 1", Email: "a@b.co"},
		},
		{
			name:     "given missing fields should report json names",
			input:    address{},
			expected: []string{"street", "email"},
		},
		{
			name:     "given malformed email should report email",
			input:    address{Street: "Main 1", Email: "not-an-email"},
			expected: []string{"email"},
		},
	}

	validate := New()
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := Struct(validate, test.input)
			if test.expected == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, inErrors.ErrValidation)
			var validationErr inErrors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, test.expected, validationErr.Fields)
		})
	}
}
