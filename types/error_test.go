package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := NewError(ErrRateLimited, "too many requests").
		WithRetryable(true).
		WithProvider("openai")

	assert.Equal(t, "[RATE_LIMITED] too many requests", err.Error())
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrRateLimited, GetErrorCode(err))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(ErrUpstreamError, "upstream failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestIsRetryable_PlainError(t *testing.T) {
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(fmt.Errorf("plain")))
}
