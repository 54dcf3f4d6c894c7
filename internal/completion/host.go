package completion

import (
	"context"

	"github.com/woxQAQ/completion-bridge/pkg/protocol"
)

// Provider produces completion items for a document position.
type Provider interface {
	ProvideCompletionItems(ctx context.Context, doc protocol.TextDocumentItem, pos protocol.Position, cc protocol.CompletionContext) (*protocol.CompletionList, error)
}

// Resolver is the optional capability of lazily filling in an item's
// detail and documentation. A Provider that also implements Resolver
// is asked to resolve the item the user selects.
type Resolver interface {
	ResolveCompletionItem(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, doc protocol.TextDocumentItem, pos protocol.Position, cc protocol.CompletionContext) (*protocol.CompletionList, error)

// ProvideCompletionItems calls f.
func (f ProviderFunc) ProvideCompletionItems(ctx context.Context, doc protocol.TextDocumentItem, pos protocol.Position, cc protocol.CompletionContext) (*protocol.CompletionList, error) {
	return f(ctx, doc, pos, cc)
}

// Document is a buffer snapshot handed out by the DocumentStore.
type Document struct {
	Bufnr        int
	TextDocument protocol.TextDocumentItem
}

// DocumentStore resolves host buffer numbers to text snapshots.
type DocumentStore interface {
	GetDocument(ctx context.Context, bufnr int) (*Document, error)
}

// Preview is documentation shown out-of-band next to the menu.
type Preview struct {
	Text     string `json:"text"`
	Filetype string `json:"filetype"`
}

// Editor is the part of the host editor the bridge talks back to.
// The host menu cannot be updated in place, so resolved details are
// surfaced through these side channels instead.
type Editor interface {
	PumVisible(ctx context.Context) (bool, error)
	EchoMessage(ctx context.Context, message string) error
	ShowPreview(ctx context.Context, preview Preview) error
}

// Host bundles the collaborators every Source needs.
type Host struct {
	Documents DocumentStore
	Editor    Editor
	Metrics   *Metrics
}
