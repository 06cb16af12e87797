package attrs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	list := []any{"decision", "verified", "score", 95.0, "window", 24 * time.Hour, "reason"}

	assert.Equal(t, "verified", String(list, "decision"))
	assert.Equal(t, "24h0m0s", String(list, "window"))
	assert.Empty(t, String(list, "score"), "non-string values are not formatted")
	assert.Empty(t, String(list, "reason"), "dangling key has no value")
	assert.Empty(t, String(nil, "decision"))
}

func TestLookupFirstWins(t *testing.T) {
	v, ok := Lookup([]any{"k", 1, "k", 2}, "k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}
