package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier such as "audit-3f0c...".
// Time-ordered UUIDv7 is used so ids sort by creation.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "-" + id.String()
}

// HasPrefix reports whether id was produced by New with the given prefix.
func HasPrefix(id, prefix string) bool {
	if !strings.HasPrefix(id, prefix+"-") {
		return false
	}
	_, err := uuid.Parse(strings.TrimPrefix(id, prefix+"-"))
	return err == nil
}
