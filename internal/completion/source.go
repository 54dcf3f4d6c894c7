// Package completion adapts protocol-style completion providers to the
// host editor's string based completion menu.
package completion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/woxQAQ/completion-bridge/pkg/protocol"
)

var tracer = otel.Tracer("github.com/woxQAQ/completion-bridge/internal/completion")

// Request is one completion request from the host.
type Request struct {
	// Bufnr is the host buffer the request originates from.
	Bufnr int `json:"bufnr"`
	// Line is the text of the current line.
	Line string `json:"line"`
	// Linenr is the 1-based line number.
	Linenr int `json:"linenr"`
	// Colnr is the 1-based byte column of the cursor.
	Colnr int `json:"colnr"`
	// Input is the text already typed for the word being completed.
	Input string `json:"input"`
	// TriggerCharacter is set when a trigger character started the request.
	TriggerCharacter string `json:"triggerCharacter,omitempty"`
}

// SourceConfig describes one registered provider.
type SourceConfig struct {
	Name              string
	Shortcut          string
	LanguageIDs       []string
	TriggerCharacters []string
	Provider          Provider
}

// Source is the completion source the host talks to for one provider.
type Source struct {
	name         string
	shortcut     string
	languages    map[string]struct{}
	languageIDs  []string
	triggerChars []string

	provider Provider
	// resolver is nil when the provider has no resolve capability.
	resolver Resolver

	docs    DocumentStore
	editor  Editor
	metrics *Metrics
	logger  *zap.Logger

	mu        sync.Mutex
	batch     *batch
	requestID uint64
	pending   context.CancelFunc
	requested resolveKey
}

// NewSource builds the completion source for a provider.
func NewSource(cfg SourceConfig, host Host, logger *zap.Logger) (*Source, error) {
	if cfg.Name == "" {
		return nil, &InvalidSourceError{Field: "name", Message: "name is required"}
	}
	if cfg.Provider == nil {
		return nil, &InvalidSourceError{Field: "provider", Message: "provider is required"}
	}
	if len(cfg.LanguageIDs) == 0 {
		return nil, &InvalidSourceError{Field: "languageIds", Message: "at least one language id is required"}
	}
	if host.Documents == nil {
		return nil, &InvalidSourceError{Field: "documents", Message: "document store is required"}
	}

	s := &Source{
		name:         cfg.Name,
		shortcut:     cfg.Shortcut,
		languages:    make(map[string]struct{}, len(cfg.LanguageIDs)),
		triggerChars: append([]string(nil), cfg.TriggerCharacters...),
		provider:     cfg.Provider,
		docs:         host.Documents,
		editor:       host.Editor,
		metrics:      host.Metrics,
		logger:       logger.With(zap.String("component", "completion-source"), zap.String("source", cfg.Name)),
	}
	for _, id := range cfg.LanguageIDs {
		if _, dup := s.languages[id]; dup {
			continue
		}
		s.languages[id] = struct{}{}
		s.languageIDs = append(s.languageIDs, id)
	}
	if r, ok := cfg.Provider.(Resolver); ok {
		s.resolver = r
	}

	return s, nil
}

// Name returns the registered source name.
func (s *Source) Name() string {
	return s.name
}

// Shortcut returns the label appended to menu entries.
func (s *Source) Shortcut() string {
	return s.shortcut
}

// LanguageIDs returns the languages this source serves, in registration order.
func (s *Source) LanguageIDs() []string {
	return append([]string(nil), s.languageIDs...)
}

// TriggerCharacters returns the extra characters that start a request.
func (s *Source) TriggerCharacters() []string {
	return append([]string(nil), s.triggerChars...)
}

// HasLanguage reports whether languageID is served by this source.
func (s *Source) HasLanguage(languageID string) bool {
	_, ok := s.languages[languageID]
	return ok
}

// CanResolve reports whether the provider supports lazy resolve.
func (s *Source) CanResolve() bool {
	return s.resolver != nil
}

// ShouldTrigger reports whether typing character in a languageID buffer
// starts or continues a completion request.
func (s *Source) ShouldTrigger(character, languageID string) bool {
	if !s.HasLanguage(languageID) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(character)
	if r == utf8.RuneError {
		return false
	}
	if isWordChar(r) {
		return true
	}
	for _, c := range s.triggerChars {
		if c == character {
			return true
		}
	}
	return false
}

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// DoComplete asks the provider for completions at the request position.
// A newer DoComplete cancels this one; cancellation and provider failures
// are returned as errors and the host shows no items for the request.
func (s *Source) DoComplete(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "completion.DoComplete", trace.WithAttributes(
		attribute.String("source", s.name),
		attribute.Int("bufnr", req.Bufnr),
	))
	defer span.End()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.pending != nil {
		s.pending()
	}
	if s.batch != nil {
		s.batch.discard()
		s.batch = nil
	}
	s.requestID++
	id := s.requestID
	s.pending = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.requestID == id {
			s.pending = nil
		}
		s.mu.Unlock()
	}()

	doc, err := s.docs.GetDocument(reqCtx, req.Bufnr)
	if err != nil {
		err = &DocumentError{Bufnr: req.Bufnr, Err: err}
		return nil, s.fail(span, err)
	}

	pos := ToPosition(req.Line, req.Linenr, req.Colnr)
	cc := protocol.CompletionContext{TriggerKind: protocol.CompletionTriggerKindInvoked}
	if req.TriggerCharacter != "" {
		cc.TriggerKind = protocol.CompletionTriggerKindTriggerCharacter
		cc.TriggerCharacter = req.TriggerCharacter
	}

	s.logger.Debug("Requesting completions",
		zap.String("uri", string(doc.TextDocument.URI)),
		zap.Int("line", pos.Line),
		zap.Int("character", pos.Character),
		zap.String("trigger", req.TriggerCharacter),
	)

	list, err := s.provider.ProvideCompletionItems(reqCtx, doc.TextDocument, pos, cc)
	if reqCtx.Err() != nil {
		return nil, s.fail(span, ErrCancelled)
	}
	if err != nil {
		return nil, s.fail(span, &ProviderError{Source: s.name, Op: "complete", Err: err})
	}
	if list == nil {
		list = &protocol.CompletionList{}
	}

	items := filterByFirstChar(list.Items, req.Input)
	b := newBatch(items)

	s.mu.Lock()
	if s.requestID != id {
		s.mu.Unlock()
		b.discard()
		return nil, s.fail(span, ErrCancelled)
	}
	s.batch = b
	s.mu.Unlock()

	result := &Result{
		IsIncomplete: list.IsIncomplete,
		Items:        make([]VimItem, len(items)),
	}
	for i, item := range items {
		v := Convert(item, s.shortcut)
		v.UserData = encodeItemRef(s.name, i)
		result.Items[i] = v
	}

	s.metrics.request(s.name, resultOK)
	s.metrics.itemCount(s.name, len(result.Items))
	span.SetAttributes(attribute.Int("items", len(result.Items)))

	return result, nil
}

func (s *Source) fail(span trace.Span, err error) error {
	result := resultFailed
	if errors.Is(err, ErrCancelled) {
		result = resultCancelled
		s.logger.Debug("Completion request cancelled")
	} else {
		s.logger.Warn("Completion request failed", zap.Error(err))
	}
	s.metrics.request(s.name, result)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// filterByFirstChar keeps items whose label starts with the first character
// of input. Full fuzzy filtering is left to the host.
func filterByFirstChar(items []protocol.CompletionItem, input string) []protocol.CompletionItem {
	if input == "" {
		return items
	}
	// An invalid leading byte decodes with size 1 and is matched as is.
	_, size := utf8.DecodeRuneInString(input)
	first := input[:size]

	filtered := make([]protocol.CompletionItem, 0, len(items))
	for _, item := range items {
		if strings.HasPrefix(item.Label, first) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// OnCompleteResolve lazily resolves the selected item and shows its detail
// and documentation while the menu is still open on it. Items from other
// sources, unknown items and items already being resolved are ignored.
func (s *Source) OnCompleteResolve(ctx context.Context, selected VimItem) {
	if run := s.SelectForResolve(selected); run != nil {
		run(ctx)
	}
}

// SelectForResolve records selected as the item the menu is on and returns
// the remaining work of OnCompleteResolve, or nil when there is none. The
// selection is recorded before SelectForResolve returns, so a caller may
// run the returned function in the background and a later selection still
// takes precedence over it.
func (s *Source) SelectForResolve(selected VimItem) func(ctx context.Context) {
	if s.resolver == nil {
		return nil
	}
	ref, ok := parseItemRef(selected.UserData)
	if !ok || ref.Source != s.name {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.batch
	if b == nil || len(b.items) == 0 {
		return nil
	}
	idx, ok := b.find(ref, selected.Abbr)
	if !ok {
		return nil
	}

	key := resolveKey{batch: b, index: idx}
	switch b.states[idx] {
	case stateResolving:
		// The call in flight presents its result once it lands.
		s.requested = key
		return nil
	case stateResolved:
		s.requested = key
		item := b.items[idx]
		return func(ctx context.Context) {
			s.metrics.resolve(s.name, resultCached)
			s.present(ctx, key, item)
		}
	}

	b.states[idx] = stateResolving
	s.requested = key
	item := b.items[idx]
	return func(ctx context.Context) {
		s.resolve(ctx, key, item)
	}
}

// resolve calls the provider for the item at key, which SelectForResolve
// has marked as resolving.
func (s *Source) resolve(ctx context.Context, key resolveKey, item protocol.CompletionItem) {
	b, idx := key.batch, key.index
	sess := b.session

	resolveCtx, span := tracer.Start(sess.ctx, "completion.Resolve", trace.WithAttributes(
		attribute.String("source", s.name),
		attribute.String("label", item.Label),
	))
	resolved, err := s.resolver.ResolveCompletionItem(resolveCtx, item)
	span.End()

	s.mu.Lock()
	stale := sess.done() || s.batch != b
	if stale || err != nil || resolved == nil {
		if !stale {
			b.states[idx] = stateUnresolved
		}
		s.mu.Unlock()

		if stale {
			s.metrics.resolve(s.name, resultStale)
		} else {
			s.metrics.resolve(s.name, resultFailed)
			s.logger.Debug("Resolve failed", zap.String("label", item.Label), zap.Error(err))
		}
		return
	}
	b.items[idx] = *resolved
	b.states[idx] = stateResolved
	s.mu.Unlock()

	s.metrics.resolve(s.name, resultResolved)
	s.present(ctx, key, *resolved)
}

// isCurrent reports whether key is still the latest resolve request of
// a live session.
func (s *Source) isCurrent(key resolveKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested == key && s.batch == key.batch && !key.batch.session.done()
}

func (s *Source) present(ctx context.Context, key resolveKey, item protocol.CompletionItem) {
	if s.editor == nil || !s.isCurrent(key) {
		return
	}

	visible, err := s.editor.PumVisible(ctx)
	if err != nil || !visible {
		return
	}
	if !s.isCurrent(key) {
		return
	}

	if detail := strings.TrimSpace(item.Detail); detail != "" {
		if err := s.editor.EchoMessage(ctx, lineBreaks.ReplaceAllString(detail, " ")); err != nil {
			s.logger.Debug("Failed to echo detail", zap.Error(err))
		}
	}
	if doc := item.Documentation; doc != nil && doc.Value != "" {
		preview := Preview{Text: doc.Value, Filetype: "txt"}
		if doc.Kind == protocol.MarkupKindMarkdown {
			preview.Filetype = "markdown"
		}
		if err := s.editor.ShowPreview(ctx, preview); err != nil {
			s.logger.Debug("Failed to show preview", zap.Error(err))
		}
	}
}

// OnCompleteDone ends the completion session: every resolve still in
// flight becomes stale and the cached batch is dropped.
func (s *Source) OnCompleteDone(ctx context.Context, selected VimItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.batch != nil {
		s.batch.discard()
		s.batch = nil
	}
	s.requested = resolveKey{}
}

// Close cancels any pending request and drops the session.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.pending()
		s.pending = nil
	}
	if s.batch != nil {
		s.batch.discard()
		s.batch = nil
	}
}
