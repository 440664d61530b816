// Package config provides configuration and context management for chatsync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Context is the CLI's current conversation, used by commands that take an
// optional conversation argument.
type Context struct {
	// ConversationID is the currently selected conversation.
	ConversationID string `yaml:"conversation,omitempty"`
	// ConversationName is the display name (for display).
	ConversationName string `yaml:"conversation_name,omitempty"`
	// HostAddr is the host the conversation was selected on.
	HostAddr string `yaml:"host_addr,omitempty"`
	// UpdatedAt is when the context was last modified.
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// IsEmpty returns true if no context is set.
func (c *Context) IsEmpty() bool {
	return c.ConversationID == ""
}

// Clear removes all context.
func (c *Context) Clear() {
	c.ConversationID = ""
	c.ConversationName = ""
	c.HostAddr = ""
	c.UpdatedAt = time.Now()
}

// SetConversation sets the conversation context.
func (c *Context) SetConversation(id, name, hostAddr string) {
	c.ConversationID = id
	c.ConversationName = name
	c.HostAddr = hostAddr
	c.UpdatedAt = time.Now()
}

// ConversationFor returns the context conversation if it was selected on
// hostAddr.
func (c *Context) ConversationFor(hostAddr string) (string, bool) {
	if c.IsEmpty() || (c.HostAddr != "" && c.HostAddr != hostAddr) {
		return "", false
	}
	return c.ConversationID, true
}

// String returns a human-readable representation of the context.
func (c *Context) String() string {
	if c.IsEmpty() {
		return "(no context set)"
	}
	name := c.ConversationName
	if name == "" {
		name = shortID(c.ConversationID)
	}
	return fmt.Sprintf("conversation:%s", name)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// ContextStore manages loading and saving context.
type ContextStore struct {
	path string
	mu   sync.RWMutex
}

// NewContextStore creates a new context store.
// If path is empty, uses the default path (~/.config/chatsync/context.yaml).
func NewContextStore(path string) *ContextStore {
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, ".config", "chatsync", "context.yaml")
	}
	return &ContextStore{path: path}
}

// Path returns the context file path.
func (s *ContextStore) Path() string {
	return s.path
}

// Load reads the context from disk.
// Returns an empty context if the file doesn't exist.
func (s *ContextStore) Load() (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := &Context{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctx, nil
		}
		return nil, fmt.Errorf("failed to read context file: %w", err)
	}

	if err := yaml.Unmarshal(data, ctx); err != nil {
		return nil, fmt.Errorf("failed to parse context file: %w", err)
	}

	return ctx, nil
}

// Save writes the context to disk.
func (s *ContextStore) Save(ctx *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}

	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to serialize context: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write context file: %w", err)
	}

	return nil
}

// Clear removes the context file.
func (s *ContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove context file: %w", err)
	}
	return nil
}
