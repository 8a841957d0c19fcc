package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := newInviteCode()
		assert.Len(t, code, 6)
		assert.Regexp(t, `^[0-9A-F]{6}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1, "codes must not be constant")
}
