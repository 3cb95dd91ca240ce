package helper

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

const applicationIDPrefix = "APP"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewApplicationID returns a sortable, human-visible application id such as
// "APP01HZX3K7W4Q8M2N5R6T9V0B1C2".
func NewApplicationID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return applicationIDPrefix + ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
