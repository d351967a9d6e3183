package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := generateID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
