package uid

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewAt_TimestampPrefix(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	id := NewAt(at)
	head, suffix, ok := strings.Cut(id, "-")
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(at.UnixMilli(), 10), head)
	assert.Len(t, suffix, 12)
}
