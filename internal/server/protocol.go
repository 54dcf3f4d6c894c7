package server

import (
	"encoding/json"

	"github.com/woxQAQ/completion-bridge/internal/completion"
	"github.com/woxQAQ/completion-bridge/pkg/protocol"
)

// Host to bridge methods.
const (
	MethodShouldTrigger = "completion/shouldTrigger"
	MethodDoComplete    = "completion/doComplete"
	MethodResolve       = "completion/resolve"
	MethodDone          = "completion/done"
	MethodMenuVisible   = "completion/menuVisible"
	MethodDidOpen       = "document/open"
	MethodDidChange     = "document/change"
	MethodDidClose      = "document/close"
	MethodCancelRequest = "$/cancelRequest"
	MethodShutdown      = "shutdown"
	MethodExit          = "exit"
)

// Bridge to host notifications.
const (
	MethodEcho    = "editor/echo"
	MethodPreview = "editor/preview"
)

// ShouldTriggerParams asks whether a typed character opens the menu.
type ShouldTriggerParams struct {
	Character  string `json:"character"`
	LanguageID string `json:"languageId"`
}

// DoCompleteParams is a completion request for the buffer of a language.
type DoCompleteParams struct {
	LanguageID string `json:"languageId"`
	completion.Request
}

// ItemParams carries the menu entry the host selected or completed.
type ItemParams struct {
	Item completion.VimItem `json:"item"`
}

// MenuVisibleParams reports whether the host completion menu is open.
type MenuVisibleParams struct {
	Visible bool `json:"visible"`
}

// DidOpenParams hands the full text of a newly opened buffer to the bridge.
type DidOpenParams struct {
	Bufnr        int                       `json:"bufnr"`
	TextDocument protocol.TextDocumentItem `json:"textDocument"`
}

// DidChangeParams replaces the text of an open buffer.
type DidChangeParams struct {
	Bufnr   int    `json:"bufnr"`
	Version int    `json:"version"`
	Text    string `json:"text"`
}

// DidCloseParams drops a buffer the host closed.
type DidCloseParams struct {
	Bufnr int `json:"bufnr"`
}

// CancelParams names the pending request to abandon.
type CancelParams struct {
	ID json.RawMessage `json:"id"`
}

// EchoParams is a one line message for the host command line.
type EchoParams struct {
	Message string `json:"message"`
}
