package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyMode(t *testing.T) {
	t.Parallel()

	var zero VerifyMode
	assert.True(t, zero.Full(), "zero value checks the token version")
	assert.Nil(t, zero.Device())

	assert.False(t, QuickVerify().Full())

	device := &DeviceInfo{DeviceID: "phone-1"}
	full := FullVerify(device)
	assert.True(t, full.Full())
	assert.Same(t, device, full.Device())
}
