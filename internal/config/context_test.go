// Package config provides context persistence tests.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestContext_IsEmpty(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want bool
	}{
		{
			name: "empty context",
			ctx:  Context{},
			want: true,
		},
		{
			name: "name without id",
			ctx:  Context{ConversationName: "Alice"},
			want: true,
		},
		{
			name: "with conversation",
			ctx:  Context{ConversationID: "4915112345678@c.us"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContext_String(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want string
	}{
		{
			name: "empty",
			ctx:  Context{},
			want: "(no context set)",
		},
		{
			name: "named",
			ctx:  Context{ConversationID: "c1", ConversationName: "Alice"},
			want: "conversation:Alice",
		},
		{
			name: "id only is shortened",
			ctx:  Context{ConversationID: "4915112345678@c.us"},
			want: "conversation:491511234567",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContext_SetConversation(t *testing.T) {
	ctx := &Context{}
	ctx.SetConversation("c1", "Alice", "/tmp/host.sock")

	if ctx.ConversationID != "c1" {
		t.Errorf("ConversationID = %v, want c1", ctx.ConversationID)
	}
	if ctx.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}

	if id, ok := ctx.ConversationFor("/tmp/host.sock"); !ok || id != "c1" {
		t.Errorf("ConversationFor(same host) = %q, %v", id, ok)
	}
	if _, ok := ctx.ConversationFor("127.0.0.1:7070"); ok {
		t.Error("ConversationFor(other host) should not match")
	}

	ctx.Clear()
	if !ctx.IsEmpty() {
		t.Error("Clear() should empty the context")
	}
}

func TestContextStore_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewContextStore(filepath.Join(tmpDir, "context.yaml"))

	ctx := &Context{
		ConversationID:   "c1",
		ConversationName: "Alice",
		HostAddr:         "/tmp/host.sock",
	}

	if err := store.Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.ConversationID != ctx.ConversationID {
		t.Errorf("ConversationID = %v, want %v", loaded.ConversationID, ctx.ConversationID)
	}
	if loaded.ConversationName != ctx.ConversationName {
		t.Errorf("ConversationName = %v, want %v", loaded.ConversationName, ctx.ConversationName)
	}
	if loaded.HostAddr != ctx.HostAddr {
		t.Errorf("HostAddr = %v, want %v", loaded.HostAddr, ctx.HostAddr)
	}
}

func TestContextStore_LoadEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewContextStore(filepath.Join(tmpDir, "context.yaml"))

	// Load non-existent file should return empty context
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !loaded.IsEmpty() {
		t.Error("Load() should return empty context for non-existent file")
	}
}

func TestContextStore_Clear(t *testing.T) {
	tmpDir := t.TempDir()
	contextPath := filepath.Join(tmpDir, "context.yaml")
	store := NewContextStore(contextPath)

	if err := store.Save(&Context{ConversationID: "c1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(contextPath); os.IsNotExist(err) {
		t.Fatal("context file should exist after save")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if _, err := os.Stat(contextPath); !os.IsNotExist(err) {
		t.Error("context file should be removed after clear")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after Clear() error = %v", err)
	}
	if !loaded.IsEmpty() {
		t.Error("Load() after Clear() should return empty context")
	}
}
