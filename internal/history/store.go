// Package history holds the bounded, chronologically ordered conversation
// history shared by the orchestrator and the tool pipeline.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/rtsh13/relay/internal/types"
)

const (
	// DefaultMaxLength bounds the history when no limit is configured.
	DefaultMaxLength = 100

	// StrategyRecent prunes automatically, keeping the newest messages.
	StrategyRecent = "recent"
	// StrategyNone disables automatic pruning; Prune still works when called.
	StrategyNone = "none"

	// EmptyPlaceholder replaces empty content in the model view. Some
	// providers reject empty messages outright.
	EmptyPlaceholder = "(empty message)"
)

var (
	// ErrInvalidMessage is returned when a message breaks the role invariants.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrInvalidSnapshot is returned when a snapshot cannot be restored.
	ErrInvalidSnapshot = errors.New("invalid history snapshot")
)

// Config holds the pruning configuration of a Store.
type Config struct {
	MaxLength                int
	PruningStrategy          string
	PrioritizeSystemMessages bool
}

// DefaultConfig returns the default pruning configuration.
func DefaultConfig() Config {
	return Config{
		MaxLength:                DefaultMaxLength,
		PruningStrategy:          StrategyRecent,
		PrioritizeSystemMessages: true,
	}
}

func (c Config) normalized() Config {
	if c.MaxLength <= 0 {
		c.MaxLength = DefaultMaxLength
	}
	if c.PruningStrategy == "" {
		c.PruningStrategy = StrategyRecent
	}
	return c
}

// Store is the conversation history. It has a single writer and is not safe
// for concurrent use.
type Store struct {
	messages []types.Message
	cfg      Config
	now      func() time.Time
	last     time.Time
}

// NewStore creates an empty store.
func NewStore(cfg Config) *Store {
	return &Store{
		messages: make([]types.Message, 0, 16),
		cfg:      cfg.normalized(),
		now:      time.Now,
	}
}

// Config returns the store's pruning configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	return len(s.messages)
}

// Append stamps msg with a monotonically increasing timestamp and stores it.
// The store is pruned when it grows past its bound.
func (s *Store) Append(msg types.Message) (types.Message, error) {
	if err := validateMessage(msg); err != nil {
		return types.Message{}, err
	}

	ts := s.now().UTC()
	if !ts.After(s.last) {
		ts = s.last.Add(time.Nanosecond)
	}
	s.last = ts
	msg.CreatedAt = ts

	s.messages = append(s.messages, msg)

	if s.cfg.PruningStrategy != StrategyNone && len(s.messages) > s.cfg.MaxLength {
		s.Prune(s.cfg.PrioritizeSystemMessages)
	}
	return msg, nil
}

func validateMessage(msg types.Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, msg.Role)
	}
	isTool := msg.Role == types.RoleToolResult
	hasToolFields := msg.ToolName != "" || msg.ToolCallID != ""
	switch {
	case isTool && (msg.ToolName == "" || msg.ToolCallID == ""):
		return fmt.Errorf("%w: tool_result requires tool_name and tool_call_id", ErrInvalidMessage)
	case !isTool && hasToolFields:
		return fmt.Errorf("%w: %s message must not carry tool fields", ErrInvalidMessage, msg.Role)
	}
	return nil
}

// Query filters messages by role. An empty Include matches every role;
// Exclude always wins.
type Query struct {
	Include []types.Role
	Exclude []types.Role
}

func (q Query) match(r types.Role) bool {
	for _, ex := range q.Exclude {
		if ex == r {
			return false
		}
	}
	if len(q.Include) == 0 {
		return true
	}
	for _, in := range q.Include {
		if in == r {
			return true
		}
	}
	return false
}

// Messages returns a copy of the stored messages matching q.
func (s *Store) Messages(q Query) []types.Message {
	out := make([]types.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if q.match(msg.Role) {
			out = append(out, msg)
		}
	}
	return out
}

// ModelView returns the messages matching q in the provider-neutral shape.
// tool_result messages become role "tool" carrying their name and call id.
func (s *Store) ModelView(q Query) []types.ModelMessage {
	out := make([]types.ModelMessage, 0, len(s.messages))
	for _, msg := range s.messages {
		if !q.match(msg.Role) {
			continue
		}
		content := msg.Content
		if content == "" {
			content = EmptyPlaceholder
		}
		if msg.Role == types.RoleToolResult {
			out = append(out, types.ModelMessage{
				Role:       types.RoleTool,
				Content:    content,
				Name:       msg.ToolName,
				ToolCallID: msg.ToolCallID,
			})
			continue
		}
		out = append(out, types.ModelMessage{Role: msg.Role, Content: content})
	}
	return out
}

// Prune trims the store to its bound and returns how many messages were
// dropped. With preserveSystem every system message survives, even when the
// system messages alone exceed the bound.
func (s *Store) Prune(preserveSystem bool) int {
	before := len(s.messages)
	limit := s.cfg.MaxLength
	if before <= limit {
		return 0
	}

	if !preserveSystem {
		kept := make([]types.Message, limit)
		copy(kept, s.messages[before-limit:])
		s.messages = kept
		return before - limit
	}

	system := make([]types.Message, 0, before)
	rest := make([]types.Message, 0, before)
	for _, msg := range s.messages {
		if msg.Role == types.RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	keep := limit - len(system)
	if keep < 0 {
		keep = 0
	}
	if keep < len(rest) {
		rest = rest[len(rest)-keep:]
	}

	s.messages = mergeByTime(system, rest)
	return before - len(s.messages)
}

// mergeByTime merges two chronologically ordered slices. Ties go to a.
func mergeByTime(a, b []types.Message) []types.Message {
	out := make([]types.Message, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if b[j].CreatedAt.Before(a[i].CreatedAt) {
			out = append(out, b[j])
			j++
		} else {
			out = append(out, a[i])
			i++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// Clear empties the store, or keeps only system messages when
// preserveSystem is set.
func (s *Store) Clear(preserveSystem bool) {
	if !preserveSystem {
		s.messages = make([]types.Message, 0, 16)
		return
	}
	kept := make([]types.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if msg.Role == types.RoleSystem {
			kept = append(kept, msg)
		}
	}
	s.messages = kept
}
