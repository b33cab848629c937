package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeError_Error(t *testing.T) {
	err := &MergeError{
		Code:        ErrCodeStoreFailure,
		Message:     "update merged recipient",
		ServiceID:   sidX,
		PhoneNumber: phoneP,
		Err:         errors.New("disk full"),
	}

	msg := err.Error()
	assert.Contains(t, msg, "STORE_FAILURE: update merged recipient")
	assert.Contains(t, msg, sidX.String())
	assert.Contains(t, msg, "disk full")
	assert.NotContains(t, msg, phoneP.String(), "phone number is redacted")
}

func TestMergeError_ServiceIDOnly(t *testing.T) {
	err := &MergeError{Code: ErrCodeStoreFailure, Message: "fetch", ServiceID: sidX}
	assert.Equal(t, fmt.Sprintf("STORE_FAILURE: fetch (service_id=%s)", sidX), err.Error())
}

func TestIsObserverError(t *testing.T) {
	err := newObserverError("did learn association", &recordingObserver{name: "x"}, sidX, phoneP, errObserver)
	wrapped := fmt.Errorf("write transaction: %w", err)

	assert.True(t, IsObserverError(wrapped))
	assert.False(t, IsStoreError(wrapped))
	assert.ErrorIs(t, wrapped, errObserver)
	assert.Contains(t, err.Error(), "x: did learn association")
}

func TestIsStoreError(t *testing.T) {
	err := newStoreError("fetch", sidX, phoneP, errors.New("boom"))

	assert.True(t, IsStoreError(err))
	assert.False(t, IsObserverError(err))
	assert.False(t, IsStoreError(errors.New("plain")))
}
