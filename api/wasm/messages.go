// Package wasm defines the JSON messages exchanged with completion
// provider modules. Both the bridge and guests written in Go share them.
package wasm

import "github.com/woxQAQ/completion-bridge/pkg/protocol"

// CompleteRequest is the payload passed to a guest's complete export.
type CompleteRequest struct {
	TextDocument protocol.TextDocumentItem  `json:"textDocument"`
	Position     protocol.Position          `json:"position"`
	Context      protocol.CompletionContext `json:"context"`
}

// ResolveRequest is the payload passed to a guest's resolve export.
type ResolveRequest = protocol.CompletionItem

// Log levels understood by host.log_message.
const (
	LogLevelDebug uint32 = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)
