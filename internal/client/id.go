package client

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	ulidEntropyMu sync.Mutex
)

func newULID() string {
	ulidEntropyMu.Lock()
	defer ulidEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// newAnonymousName builds a readable pseudo-identity label.
func newAnonymousName() string {
	id := newULID()
	return "anon-" + strings.ToLower(id[len(id)-8:])
}

// newAnonymousID returns a negative id so a locally generated identity
// can never collide with a server-assigned user id.
func newAnonymousID() int64 {
	return -(rand.Int63n(1<<31) + 1)
}
