// Package workspace keeps the text of the buffers the host has open.
package workspace

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/completion-bridge/internal/completion"
	"github.com/woxQAQ/completion-bridge/pkg/protocol"
)

// StaleVersionError occurs when a change carries an older version than
// the stored snapshot.
type StaleVersionError struct {
	Bufnr   int
	Current int
	Version int
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("buffer %d: version %d is older than current version %d", e.Bufnr, e.Version, e.Current)
}

// Store is an in-memory DocumentStore keyed by host buffer number.
type Store struct {
	mu     sync.RWMutex
	docs   map[int]protocol.TextDocumentItem
	logger *zap.Logger
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		docs:   make(map[int]protocol.TextDocumentItem),
		logger: logger.With(zap.String("component", "workspace")),
	}
}

// Open stores doc as the snapshot of bufnr, replacing any previous one.
func (s *Store) Open(bufnr int, doc protocol.TextDocumentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[bufnr] = doc

	s.logger.Debug("Document opened",
		zap.Int("bufnr", bufnr),
		zap.String("uri", string(doc.URI)),
		zap.String("language_id", doc.LanguageID),
		zap.Int("version", doc.Version),
	)
}

// Change replaces the text of an open buffer.
func (s *Store) Change(bufnr, version int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[bufnr]
	if !ok {
		return fmt.Errorf("buffer %d: %w", bufnr, completion.ErrNoDocument)
	}
	if version < doc.Version {
		return &StaleVersionError{Bufnr: bufnr, Current: doc.Version, Version: version}
	}

	doc.Version = version
	doc.Text = text
	s.docs[bufnr] = doc
	return nil
}

// Close forgets bufnr. Unknown buffers are ignored.
func (s *Store) Close(bufnr int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, bufnr)
	s.logger.Debug("Document closed", zap.Int("bufnr", bufnr))
}

// GetDocument returns the current snapshot of bufnr.
func (s *Store) GetDocument(ctx context.Context, bufnr int) (*completion.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[bufnr]
	if !ok {
		return nil, completion.ErrNoDocument
	}
	return &completion.Document{Bufnr: bufnr, TextDocument: doc}, nil
}

// Len returns the number of open buffers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.docs)
}
