package uid

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New generates a new identifier: a millisecond timestamp plus a random suffix.
// Ids sort roughly by creation time.
func New() string {
	return NewAt(time.Now())
}

// NewAt generates an identifier stamped with t.
func NewAt(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return strconv.FormatInt(t.UnixMilli(), 10) + "-" + suffix
}
