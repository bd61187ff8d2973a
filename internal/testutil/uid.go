package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// UIDGenerator hands out name-based (version 5) UUIDs derived from a seed
// and a counter, so the same seed always yields the same uid sequence.
//
// Pass its Generate method to blocktypes.WithUIDGenerator.
type UIDGenerator struct {
	mu   sync.Mutex
	seed string
	n    int
}

// NewUIDGenerator returns a generator for seed. An empty seed is "default".
func NewUIDGenerator(seed string) *UIDGenerator {
	if seed == "" {
		seed = "default"
	}
	return &UIDGenerator{seed: seed}
}

// Generate returns the next uid: the SHA-1 UUID of "<seed>/<n>" in the OID
// namespace, with n starting at 1.
func (g *UIDGenerator) Generate() string {
	g.mu.Lock()
	g.n++
	n := g.n
	g.mu.Unlock()
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", g.seed, n))).String()
}
