package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/rtsh13/relay/internal/types"
)

// Snapshot is the persisted form of a Store.
type Snapshot struct {
	Messages                 []types.Message `json:"messages"`
	MaxLength                int             `json:"max_length"`
	PruningStrategy          string          `json:"pruning_strategy"`
	PrioritizeSystemMessages bool            `json:"prioritize_system_messages"`
}

// snapshotWire distinguishes absent fields from zero values on decode.
type snapshotWire struct {
	Messages                 []types.Message `json:"messages"`
	MaxLength                *int            `json:"max_length"`
	PruningStrategy          *string         `json:"pruning_strategy"`
	PrioritizeSystemMessages *bool           `json:"prioritize_system_messages"`
}

// Snapshot returns a copy of the store's state.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Messages:                 s.Messages(Query{}),
		MaxLength:                s.cfg.MaxLength,
		PruningStrategy:          s.cfg.PruningStrategy,
		PrioritizeSystemMessages: s.cfg.PrioritizeSystemMessages,
	}
}

// Serialize encodes the store as a JSON snapshot.
func (s *Store) Serialize() ([]byte, error) {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Deserialize replaces the store's contents with the snapshot in data.
// Missing messages mean an empty history; missing configuration values keep
// the store's current values.
func (s *Store) Deserialize(data []byte) error {
	var wire snapshotWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	for i, msg := range wire.Messages {
		if err := validateMessage(msg); err != nil {
			return fmt.Errorf("%w: message %d: %v", ErrInvalidSnapshot, i, err)
		}
	}

	cfg := s.cfg
	if wire.MaxLength != nil {
		cfg.MaxLength = *wire.MaxLength
	}
	if wire.PruningStrategy != nil {
		cfg.PruningStrategy = *wire.PruningStrategy
	}
	if wire.PrioritizeSystemMessages != nil {
		cfg.PrioritizeSystemMessages = *wire.PrioritizeSystemMessages
	}

	messages := make([]types.Message, len(wire.Messages))
	copy(messages, wire.Messages)
	slices.SortStableFunc(messages, func(a, b types.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	s.cfg = cfg.normalized()
	s.messages = messages
	if n := len(messages); n > 0 && messages[n-1].CreatedAt.After(s.last) {
		s.last = messages[n-1].CreatedAt
	}
	return nil
}

// SaveFile writes the snapshot to path atomically.
func (s *Store) SaveFile(path string) error {
	data, err := s.Serialize()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// LoadFile restores the store from the snapshot at path. A missing file
// leaves the store untouched.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}
	return s.Deserialize(data)
}
