package server

import (
	"context"
	"sync/atomic"

	"github.com/woxQAQ/completion-bridge/internal/completion"
)

// Editor is the completion.Editor backed by the host connection. Menu
// visibility is whatever the host last reported via completion/menuVisible.
type Editor struct {
	visible atomic.Bool
	conn    atomic.Pointer[Conn]
}

var _ completion.Editor = (*Editor)(nil)

// NewEditor creates an editor with no host attached.
func NewEditor() *Editor {
	return &Editor{}
}

// PumVisible reports the last known menu visibility.
func (e *Editor) PumVisible(ctx context.Context) (bool, error) {
	if e.conn.Load() == nil {
		return false, ErrNotConnected
	}
	return e.visible.Load(), nil
}

// EchoMessage shows message in the host's message area.
func (e *Editor) EchoMessage(ctx context.Context, message string) error {
	c := e.conn.Load()
	if c == nil {
		return ErrNotConnected
	}
	return c.Notify(MethodEcho, &EchoParams{Message: message})
}

// ShowPreview shows documentation in the host's preview window.
func (e *Editor) ShowPreview(ctx context.Context, preview completion.Preview) error {
	c := e.conn.Load()
	if c == nil {
		return ErrNotConnected
	}
	return c.Notify(MethodPreview, &preview)
}

// SetMenuVisible records the host's menu state.
func (e *Editor) SetMenuVisible(visible bool) {
	e.visible.Store(visible)
}

func (e *Editor) attach(c *Conn) {
	e.visible.Store(false)
	e.conn.Store(c)
}

func (e *Editor) detach(c *Conn) {
	e.conn.CompareAndSwap(c, nil)
	e.visible.Store(false)
}
