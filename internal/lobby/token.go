// Package lobby mints the opaque resume tokens handed to clients on join so
// a reconnecting player can reclaim their previous portal cell.
package lobby

import (
	"sync"

	"github.com/google/uuid"
)

// TokenMinter issues resume tokens and tracks which player id each token
// currently belongs to, so a disconnect can be told whether to keep the
// token→cell binding (it always does — only the placement table's
// token→cell map is authoritative; this registry just lets the session
// layer look up "is this resume token already in use").
type TokenMinter struct {
	mu      sync.Mutex
	inUse   map[string]uint32
	byOwner map[uint32]string
}

// NewTokenMinter builds an empty token registry.
func NewTokenMinter() *TokenMinter {
	return &TokenMinter{
		inUse:   make(map[string]uint32),
		byOwner: make(map[uint32]string),
	}
}

// Mint issues a fresh UUIDv4 resume token for playerID.
func (m *TokenMinter) Mint(playerID uint32) string {
	token := uuid.NewString()
	m.mu.Lock()
	m.inUse[token] = playerID
	m.byOwner[playerID] = token
	m.mu.Unlock()
	return token
}

// Release forgets the token minted for playerID, called on disconnect.
// The sphere placement table's own token→cell map is what actually allows
// resume; this only stops the registry from growing without bound.
func (m *TokenMinter) Release(playerID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token, ok := m.byOwner[playerID]; ok {
		delete(m.inUse, token)
		delete(m.byOwner, playerID)
	}
}

// OwnerOf reports which player id currently holds token, if any.
func (m *TokenMinter) OwnerOf(token string) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.inUse[token]
	return id, ok
}
