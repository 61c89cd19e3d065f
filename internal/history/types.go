package history

import (
	"context"
	"errors"
	"fmt"
)

// Sender tags. The values are part of the storage format and of the wire
// format consumed by existing front-ends, so they stay human-readable.
const (
	SenderUser = "You"
	SenderAI   = "AI"
)

// Turn is one conversational message.
type Turn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ErrInvalidTurn reports a bulk import record that is not turn-shaped.
var ErrInvalidTurn = errors.New("invalid history turn")

// Store persists per-client conversation history.
//
// An unseen client id is not an error: Get returns an empty history.
// Implementations must be safe for concurrent use and must never let a
// reader observe a half-applied mutation of one client's history.
type Store interface {
	Get(ctx context.Context, clientID string) ([]Turn, error)
	Append(ctx context.Context, clientID string, turn Turn) error
	Replace(ctx context.Context, clientID string, turns []Turn) error
	Clear(ctx context.Context, clientID string) error
	Snapshot(ctx context.Context) (map[string][]Turn, error)
	Mode() string
	Close() error
}

// Validate checks that every record in a bulk import is turn-shaped.
func Validate(turns []Turn) error {
	for i, turn := range turns {
		if turn.Sender != SenderUser && turn.Sender != SenderAI {
			return fmt.Errorf("%w: record %d has sender %q", ErrInvalidTurn, i, turn.Sender)
		}
	}
	return nil
}
