package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Message(t *testing.T) {
	err := newRuntimeError(ErrCodeAccountExists, "child0", "account already exists")
	assert.Equal(t, "ACCOUNT_EXISTS: account already exists (account=child0)", err.Error())

	err = newRuntimeError(ErrCodeInvalidTransaction, "", "operation is required")
	assert.Equal(t, "INVALID_TRANSACTION: operation is required", err.Error())
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", newRuntimeError(ErrCodeUnknownAccount, "zed", "no such account"))

	assert.Equal(t, ErrCodeUnknownAccount, CodeOf(wrapped))
	assert.True(t, IsUnknownAccount(wrapped))
	assert.False(t, IsAccountExists(wrapped))
	assert.Equal(t, RuntimeErrorCode(""), CodeOf(fmt.Errorf("plain")))
}
