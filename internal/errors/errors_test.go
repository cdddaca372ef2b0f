package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := Network("fetch page 2", stderrors.New("connection refused"))
	assert.Equal(t, "NETWORK: fetch page 2: connection refused", err.Error())

	err = Parse("missing title", nil)
	assert.Equal(t, "PARSE: missing title", err.Error())
}

func TestDomainError_UnwrapAndStack(t *testing.T) {
	cause := stderrors.New("boom")
	err := Internal("insert posting", cause)

	assert.ErrorIs(t, err, cause)
	assert.NotEmpty(t, err.StackTrace())

	noCause := Config("database path is required", nil)
	assert.NotEmpty(t, noCause.StackTrace())
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("source merojob: %w", Network("all pages failed", nil))

	assert.Equal(t, ErrTypeNetwork, TypeOf(wrapped))
	assert.True(t, IsType(wrapped, ErrTypeNetwork))
	assert.False(t, IsType(wrapped, ErrTypeParse))
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
}
