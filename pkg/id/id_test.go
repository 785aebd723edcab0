package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_IsValidAndOrdered(t *testing.T) {
	prev := New()
	assert.True(t, Valid(prev))
	assert.Len(t, prev, 26)

	for i := 0; i < 100; i++ {
		next := New()
		assert.True(t, next > prev, "%s should sort after %s", next, prev)
		prev = next
	}
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-a-ulid"))
	assert.False(t, Valid("507f1f77bcf86cd799439011"))
}
