// Package memory defines the conversational-memory collaborator contract.
// The engine treats memory handles as opaque context for the reasoning call;
// a missing reference yields an empty handle, never an error.
package memory

import (
	"context"
	"time"
)

// Turn is a single message in a conversation history.
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Handle is the loaded memory for one reference.
type Handle struct {
	Ref   string
	Turns []Turn
}

// Provider loads conversational memory by reference.
type Provider interface {
	Load(ctx context.Context, ref string) (*Handle, error)
	Append(ctx context.Context, ref, role, content string) error
}

// TurnStore is the persistence capability a store-backed provider needs.
type TurnStore interface {
	AppendTurn(ctx context.Context, ref, role, content string) error
	History(ctx context.Context, ref string) ([]Turn, error)
}

// StoreProvider adapts a TurnStore into a Provider.
type StoreProvider struct {
	store TurnStore
}

// NewStoreProvider creates a provider backed by the given store.
func NewStoreProvider(store TurnStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// Load returns the history for ref. An unknown ref yields an empty handle.
func (p *StoreProvider) Load(ctx context.Context, ref string) (*Handle, error) {
	turns, err := p.store.History(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Handle{Ref: ref, Turns: turns}, nil
}

// Append records a turn under ref.
func (p *StoreProvider) Append(ctx context.Context, ref, role, content string) error {
	return p.store.AppendTurn(ctx, ref, role, content)
}
