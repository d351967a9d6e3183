package socket

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync/atomic"
)

var idCounter uint64

// generateID returns a random hex id with a process-unique counter suffix.
// The counter alone is used if the random source fails.
func generateID() string {
	counter := strconv.FormatUint(atomic.AddUint64(&idCounter, 1), 16)

	id := make([]byte, 8)
	if _, err := rand.Read(id); err != nil {
		return counter
	}
	return hex.EncodeToString(id) + "-" + counter
}
