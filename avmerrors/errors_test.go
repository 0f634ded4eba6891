package avmerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorParts(t *testing.T) {
	assert.Equal(t, "V1", GetErrorCode(ErrMalformedProgramImage))
	assert.Equal(t, "MalformedProgramImage", GetErrorName(ErrMalformedProgramImage))
	assert.Equal(t, "V4_ProgramCounterOverflow", GetErrorCodeWithName(ErrProgramCounterOverflow))
	assert.Equal(t, "Program image must be exactly 1024 bytes.", GetErrorDesc(ErrMalformedProgramImage))
	assert.Equal(t, "No Error", GetErrorName(nil))
	assert.Equal(t, "", GetErrorCode(errors.New("plain")))
}

func TestSentinel(t *testing.T) {
	wrapped := fmt.Errorf("load sample.bin: %w", ErrMalformedProgramImage)
	assert.Equal(t, ErrMalformedProgramImage, Sentinel(wrapped))
	assert.Nil(t, Sentinel(errors.New("plain")))
}
