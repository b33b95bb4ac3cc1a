package xid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New("audit")
		assert.True(t, HasPrefix(id, "audit"), id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.False(t, HasPrefix("audit-not-a-uuid", "audit"))
	assert.Len(t, New(""), 36)
}
