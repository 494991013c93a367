package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintNormalizesWhitespace(t *testing.T) {
	a := Fingerprint("wtb  usdt\n\tasap ")
	b := Fingerprint(" wtb usdt asap")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, Fingerprint("WTB usdt asap"))
}

func TestFingerprintEmpty(t *testing.T) {
	// sha256 of the empty string
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Fingerprint("   "))
}
