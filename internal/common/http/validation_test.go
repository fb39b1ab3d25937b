package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginInput struct {
	Username string `validate:"required,min=2,max=10"`
	Secret   string `validate:"required,min=8"`
}

func TestValidateStruct(t *testing.T) {
	fields, err := ValidateStruct(loginInput{Username: "alice", Secret: "pass12345"})
	require.NoError(t, err)
	assert.Empty(t, fields)

	fields, err = ValidateStruct(loginInput{Username: "a", Secret: ""})
	require.NoError(t, err)
	assert.Equal(t, "min=2", fields["username"])
	assert.Equal(t, "required", fields["secret"])
}
