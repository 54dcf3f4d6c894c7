package completion

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/completion-bridge/pkg/protocol"
)

type fakeDocs struct {
	docs map[int]protocol.TextDocumentItem
}

func (f *fakeDocs) GetDocument(ctx context.Context, bufnr int) (*Document, error) {
	doc, ok := f.docs[bufnr]
	if !ok {
		return nil, ErrNoDocument
	}
	return &Document{Bufnr: bufnr, TextDocument: doc}, nil
}

type fakeEditor struct {
	mu       sync.Mutex
	visible  bool
	echoes   []string
	previews []Preview
}

func (e *fakeEditor) PumVisible(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible, nil
}

func (e *fakeEditor) EchoMessage(ctx context.Context, message string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.echoes = append(e.echoes, message)
	return nil
}

func (e *fakeEditor) ShowPreview(ctx context.Context, preview Preview) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.previews = append(e.previews, preview)
	return nil
}

func (e *fakeEditor) snapshot() ([]string, []Preview) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.echoes...), append([]Preview(nil), e.previews...)
}

// listProvider answers every request with a fixed list.
type listProvider struct {
	mu    sync.Mutex
	list  *protocol.CompletionList
	err   error
	pos   protocol.Position
	cc    protocol.CompletionContext
	doc   protocol.TextDocumentItem
	calls int
}

func (p *listProvider) ProvideCompletionItems(ctx context.Context, doc protocol.TextDocumentItem, pos protocol.Position, cc protocol.CompletionContext) (*protocol.CompletionList, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.doc, p.pos, p.cc = doc, pos, cc
	return p.list, p.err
}

// resolvingProvider adds the resolve capability to listProvider.
type resolvingProvider struct {
	*listProvider

	resolve func(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error)

	mu       sync.Mutex
	resolved []protocol.CompletionItem
}

func (p *resolvingProvider) ResolveCompletionItem(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error) {
	p.mu.Lock()
	p.resolved = append(p.resolved, item)
	p.mu.Unlock()
	return p.resolve(ctx, item)
}

func (p *resolvingProvider) resolveCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resolved)
}

func withDetail(item protocol.CompletionItem) (*protocol.CompletionItem, error) {
	item.Detail = "detail of " + item.Label
	item.Documentation = &protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: "docs of " + item.Label}
	return &item, nil
}

func items(labels ...string) *protocol.CompletionList {
	list := &protocol.CompletionList{}
	for _, l := range labels {
		list.Items = append(list.Items, protocol.CompletionItem{Label: l})
	}
	return list
}

type fixture struct {
	source *Source
	editor *fakeEditor
}

func newFixture(t *testing.T, provider Provider, metrics *Metrics) fixture {
	t.Helper()

	editor := &fakeEditor{visible: true}
	docs := &fakeDocs{docs: map[int]protocol.TextDocumentItem{
		1: {URI: "file:///tmp/main.go", LanguageID: "go", Version: 1, Text: "package main\n"},
	}}

	source, err := NewSource(SourceConfig{
		Name:              "gopls",
		Shortcut:          "LS",
		LanguageIDs:       []string{"go", "gomod"},
		TriggerCharacters: []string{"."},
		Provider:          provider,
	}, Host{Documents: docs, Editor: editor, Metrics: metrics}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewSource() failed: %v", err)
	}
	t.Cleanup(source.Close)

	return fixture{source: source, editor: editor}
}

func complete(t *testing.T, s *Source, input string) *Result {
	t.Helper()

	result, err := s.DoComplete(context.Background(), Request{
		Bufnr:  1,
		Line:   "fmt.",
		Linenr: 3,
		Colnr:  5,
		Input:  input,
	})
	if err != nil {
		t.Fatalf("DoComplete() failed: %v", err)
	}
	return result
}

func labels(result *Result) []string {
	out := make([]string, len(result.Items))
	for i, item := range result.Items {
		out[i] = item.Abbr
	}
	return out
}

func TestNewSource_Validation(t *testing.T) {
	docs := &fakeDocs{}
	provider := &listProvider{}

	tests := []struct {
		name  string
		cfg   SourceConfig
		host  Host
		field string
	}{
		{"missing name", SourceConfig{Provider: provider, LanguageIDs: []string{"go"}}, Host{Documents: docs}, "name"},
		{"missing provider", SourceConfig{Name: "x", LanguageIDs: []string{"go"}}, Host{Documents: docs}, "provider"},
		{"missing languages", SourceConfig{Name: "x", Provider: provider}, Host{Documents: docs}, "languageIds"},
		{"missing documents", SourceConfig{Name: "x", Provider: provider, LanguageIDs: []string{"go"}}, Host{}, "documents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSource(tt.cfg, tt.host, zap.NewNop())
			var invalid *InvalidSourceError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidSourceError, got %v", err)
			}
			if invalid.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, invalid.Field)
			}
		})
	}
}

func TestSource_Capabilities(t *testing.T) {
	plain := newFixture(t, &listProvider{}, nil)
	if plain.source.CanResolve() {
		t.Error("provider without resolve should not report the capability")
	}

	resolving := newFixture(t, &resolvingProvider{listProvider: &listProvider{}, resolve: func(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error) {
		return withDetail(item)
	}}, nil)
	if !resolving.source.CanResolve() {
		t.Error("provider with resolve should report the capability")
	}

	if got := plain.source.LanguageIDs(); len(got) != 2 || got[0] != "go" || got[1] != "gomod" {
		t.Errorf("unexpected language ids: %v", got)
	}
}

func TestSource_ShouldTrigger(t *testing.T) {
	f := newFixture(t, &listProvider{}, nil)

	tests := []struct {
		char     string
		language string
		want     bool
	}{
		{"a", "go", true},
		{"Z", "gomod", true},
		{"_", "go", true},
		{"7", "go", true},
		{"é", "go", true},
		{".", "go", true},
		{"(", "go", false},
		{" ", "go", false},
		{"", "go", false},
		{"a", "python", false},
		{".", "python", false},
	}

	for _, tt := range tests {
		if got := f.source.ShouldTrigger(tt.char, tt.language); got != tt.want {
			t.Errorf("ShouldTrigger(%q, %q) = %v, want %v", tt.char, tt.language, got, tt.want)
		}
	}
}

func TestSource_DoComplete_PrefixFilter(t *testing.T) {
	f := newFixture(t, &listProvider{list: items("foo", "bar")}, nil)

	result := complete(t, f.source, "f")
	got := labels(result)
	if len(got) != 1 || got[0] != "foo" {
		t.Errorf("expected [foo], got %v", got)
	}

	result = complete(t, f.source, "")
	if len(result.Items) != 2 {
		t.Errorf("empty input should keep all items, got %v", labels(result))
	}
}

func TestSource_DoComplete_PrefixFilterBytes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"multibyte rune", "é", []string{"éclair"}},
		{"invalid leading byte", "\xffa", []string{"\xffoo"}},
		{"no match", "\xfe", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &listProvider{list: items("éclair", "\xffoo", "foo")}, nil)
			got := labels(complete(t, f.source, tt.input))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("items mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSource_DoComplete_Context(t *testing.T) {
	provider := &listProvider{list: items("Println")}
	f := newFixture(t, provider, nil)

	complete(t, f.source, "")
	if provider.cc.TriggerKind != protocol.CompletionTriggerKindInvoked {
		t.Errorf("expected invoked trigger kind, got %d", provider.cc.TriggerKind)
	}
	if provider.pos != (protocol.Position{Line: 2, Character: 5}) {
		t.Errorf("unexpected position: %+v", provider.pos)
	}
	if provider.doc.URI != "file:///tmp/main.go" {
		t.Errorf("unexpected document: %+v", provider.doc)
	}

	_, err := f.source.DoComplete(context.Background(), Request{
		Bufnr: 1, Line: "héllo", Linenr: 1, Colnr: 4, TriggerCharacter: ".",
	})
	if err != nil {
		t.Fatalf("DoComplete() failed: %v", err)
	}
	if provider.cc.TriggerKind != protocol.CompletionTriggerKindTriggerCharacter || provider.cc.TriggerCharacter != "." {
		t.Errorf("unexpected context: %+v", provider.cc)
	}
	if provider.pos != (protocol.Position{Line: 0, Character: 3}) {
		t.Errorf("unexpected position: %+v", provider.pos)
	}
}

func TestSource_DoComplete_Result(t *testing.T) {
	list := &protocol.CompletionList{
		IsIncomplete: true,
		Items: []protocol.CompletionItem{
			{Label: "Println", Kind: protocol.CompletionItemKindFunction, Detail: "func(a ...any)"},
		},
	}
	f := newFixture(t, &listProvider{list: list}, nil)

	result := complete(t, f.source, "")
	if !result.IsIncomplete {
		t.Error("expected isIncomplete to be propagated")
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}

	item := result.Items[0]
	if item.Menu != "func(a ...any) [LS]" || item.Kind != "Function" {
		t.Errorf("unexpected item: %+v", item)
	}

	var ref struct {
		Source string `json:"source"`
		Index  int    `json:"index"`
	}
	if err := json.Unmarshal([]byte(item.UserData), &ref); err != nil {
		t.Fatalf("user_data is not JSON: %v", err)
	}
	if ref.Source != "gopls" || ref.Index != 0 {
		t.Errorf("unexpected user_data: %+v", ref)
	}
}

func TestSource_DoComplete_NilList(t *testing.T) {
	f := newFixture(t, &listProvider{}, nil)

	result := complete(t, f.source, "x")
	if result.Items == nil || len(result.Items) != 0 {
		t.Errorf("expected empty non-nil items, got %#v", result.Items)
	}
}

func TestSource_DoComplete_Failures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	f := newFixture(t, &listProvider{err: errors.New("boom")}, metrics)

	_, err := f.source.DoComplete(context.Background(), Request{Bufnr: 1, Line: "x", Linenr: 1, Colnr: 2})
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.Source != "gopls" {
		t.Errorf("unexpected source: %s", providerErr.Source)
	}

	_, err = f.source.DoComplete(context.Background(), Request{Bufnr: 42, Line: "x", Linenr: 1, Colnr: 2})
	var docErr *DocumentError
	if !errors.As(err, &docErr) || !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected DocumentError wrapping ErrNoDocument, got %v", err)
	}

	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("gopls", resultFailed)); got != 2 {
		t.Errorf("expected 2 failed requests, got %v", got)
	}
}

// blockingProvider blocks the first request until its context ends.
type blockingProvider struct {
	started chan struct{}
	mu      sync.Mutex
	calls   int
}

func (p *blockingProvider) ProvideCompletionItems(ctx context.Context, doc protocol.TextDocumentItem, pos protocol.Position, cc protocol.CompletionContext) (*protocol.CompletionList, error) {
	p.mu.Lock()
	p.calls++
	first := p.calls == 1
	p.mu.Unlock()

	if first {
		close(p.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return items("fresh"), nil
}

func TestSource_DoComplete_SupersededRequestIsCancelled(t *testing.T) {
	provider := &blockingProvider{started: make(chan struct{})}
	f := newFixture(t, provider, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := f.source.DoComplete(context.Background(), Request{Bufnr: 1, Line: "x", Linenr: 1, Colnr: 2})
		errc <- err
	}()
	<-provider.started

	result := complete(t, f.source, "")
	if got := labels(result); len(got) != 1 || got[0] != "fresh" {
		t.Errorf("unexpected items: %v", got)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("superseded request was not cancelled")
	}
}

func TestSource_Resolve_Once(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	provider := &resolvingProvider{
		listProvider: &listProvider{list: items("foo", "bar")},
		resolve: func(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error) {
			return withDetail(item)
		},
	}
	f := newFixture(t, provider, metrics)

	result := complete(t, f.source, "")
	f.source.OnCompleteResolve(context.Background(), result.Items[0])
	f.source.OnCompleteResolve(context.Background(), result.Items[0])

	if got := provider.resolveCalls(); got != 1 {
		t.Errorf("expected 1 resolve call, got %d", got)
	}

	echoes, previews := f.editor.snapshot()
	if len(echoes) != 2 || echoes[0] != "detail of foo" {
		t.Errorf("unexpected echoes: %v", echoes)
	}
	if len(previews) != 2 || previews[0] != (Preview{Text: "docs of foo", Filetype: "markdown"}) {
		t.Errorf("unexpected previews: %v", previews)
	}

	if got := testutil.ToFloat64(metrics.resolves.WithLabelValues("gopls", resultResolved)); got != 1 {
		t.Errorf("expected 1 resolved, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.resolves.WithLabelValues("gopls", resultCached)); got != 1 {
		t.Errorf("expected 1 cached, got %v", got)
	}
}

func TestSource_Resolve_NoCapability(t *testing.T) {
	f := newFixture(t, &listProvider{list: items("foo")}, nil)

	result := complete(t, f.source, "")
	f.source.OnCompleteResolve(context.Background(), result.Items[0])

	if echoes, _ := f.editor.snapshot(); len(echoes) != 0 {
		t.Errorf("expected no echoes, got %v", echoes)
	}
}

func TestSource_Resolve_IgnoresForeignItems(t *testing.T) {
	provider := &resolvingProvider{
		listProvider: &listProvider{list: items("foo")},
		resolve: func(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error) {
			return withDetail(item)
		},
	}
	f := newFixture(t, provider, nil)
	complete(t, f.source, "")

	foreign := []VimItem{
		{Abbr: "foo", UserData: encodeItemRef("tsserver", 0)},
		{Abbr: "foo", UserData: "not json"},
		{Abbr: "foo"},
		{Abbr: "missing", UserData: encodeItemRef("gopls", 0)},
		{Abbr: "foo", UserData: encodeItemRef("gopls", 7)},
	}
	for _, item := range foreign {
		f.source.OnCompleteResolve(context.Background(), item)
	}

	if got := provider.resolveCalls(); got != 0 {
		t.Errorf("expected no resolve calls, got %d", got)
	}
}

func TestSource_Resolve_EmptyBatch(t *testing.T) {
	provider := &resolvingProvider{
		listProvider: &listProvider{list: items("foo")},
		resolve: func(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error) {
			return withDetail(item)
		},
	}
	f := newFixture(t, provider, nil)

	f.source.OnCompleteResolve(context.Background(), VimItem{Abbr: "foo", UserData: encodeItemRef("gopls", 0)})
	if got := provider.resolveCalls(); got != 0 {
		t.Errorf("expected no resolve calls before a completion, got %d", got)
	}
}

func TestSource_Resolve_LabelFallback(t *testing.T) {
	provider := &resolvingProvider{
		listProvider: &listProvider{list: items("foo", "bar")},
		resolve: func(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error) {
			return withDetail(item)
		},
	}
	f := newFixture(t, provider, nil)
	complete(t, f.source, "")

	f.source.OnCompleteResolve(context.Background(), VimItem{Abbr: "bar", UserData: `{"source":"gopls"}`})

	echoes, _ := f.editor.snapshot()
	if len(echoes) != 1 || echoes[0] != "detail of bar" {
		t.Errorf("unexpected echoes: %v", echoes)
	}
}

func TestSource_Resolve_DuplicateLabels(t *testing.T) {
	list := &protocol.CompletionList{Items: []protocol.CompletionItem{
		{Label: "Write", Data: json.RawMessage(`{"overload":1}`)},
		{Label: "Write", Data: json.RawMessage(`{"overload":2}`)},
	}}
	provider := &resolvingProvider{
		listProvider: &listProvider{list: list},
		resolve: func(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error) {
			item.Detail = string(item.Data)
			return &item, nil
		},
	}
	f := newFixture(t, provider, nil)

	result := complete(t, f.source, "")
	f.source.OnCompleteResolve(context.Background(), result.Items[1])

	echoes, _ := f.editor.snapshot()
	if len(echoes) != 1 || echoes[0] != `{"overload":2}` {
		t.Errorf("expected the second overload to be resolved, got %v", echoes)
	}
}

func TestSource_Resolve_FailureIsRetryable(t *testing.T) {
	var mu sync.Mutex
	fail := true
	provider := &resolvingProvider{
		listProvider: &listProvider{list: items("foo")},
		resolve: func(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error) {
			mu.Lock()
			defer mu.Unlock()
			if fail {
				fail = false
				return nil, errors.New("server busy")
			}
			return withDetail(item)
		},
	}
	f := newFixture(t, provider, nil)

	result := complete(t, f.source, "")
	f.source.OnCompleteResolve(context.Background(), result.Items[0])
	if echoes, _ := f.editor.snapshot(); len(echoes) != 0 {
		t.Fatalf("failed resolve should not echo, got %v", echoes)
	}

	f.source.OnCompleteResolve(context.Background(), result.Items[0])
	if got := provider.resolveCalls(); got != 2 {
		t.Errorf("expected a retry after failure, got %d calls", got)
	}
	if echoes, _ := f.editor.snapshot(); len(echoes) != 1 {
		t.Errorf("expected one echo after retry, got %v", echoes)
	}
}

func TestSource_Resolve_MenuHidden(t *testing.T) {
	provider := &resolvingProvider{
		listProvider: &listProvider{list: items("foo")},
		resolve: func(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error) {
			return withDetail(item)
		},
	}
	f := newFixture(t, provider, nil)
	f.editor.visible = false

	result := complete(t, f.source, "")
	f.source.OnCompleteResolve(context.Background(), result.Items[0])

	if got := provider.resolveCalls(); got != 1 {
		t.Errorf("expected the item to be resolved, got %d calls", got)
	}
	if echoes, previews := f.editor.snapshot(); len(echoes) != 0 || len(previews) != 0 {
		t.Errorf("hidden menu should not show details, got %v %v", echoes, previews)
	}
}

// gate blocks resolution of one label until released.
type gate struct {
	label   string
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func newGate(label string) *gate {
	return &gate{
		label:   label,
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
}

func (g *gate) resolve(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error) {
	if item.Label == g.label {
		close(g.started)
		<-g.release
		g.ctxErr <- ctx.Err()
	}
	return withDetail(item)
}

func TestSource_Resolve_DoneInvalidatesInFlight(t *testing.T) {
	g := newGate("foo")
	provider := &resolvingProvider{listProvider: &listProvider{list: items("foo")}, resolve: g.resolve}
	f := newFixture(t, provider, nil)

	result := complete(t, f.source, "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.source.OnCompleteResolve(context.Background(), result.Items[0])
	}()
	<-g.started

	f.source.OnCompleteDone(context.Background(), result.Items[0])
	close(g.release)
	<-done

	if err := <-g.ctxErr; !errors.Is(err, context.Canceled) {
		t.Errorf("resolve context should be cancelled by done, got %v", err)
	}
	if echoes, previews := f.editor.snapshot(); len(echoes) != 0 || len(previews) != 0 {
		t.Errorf("stale resolve must not update the menu, got %v %v", echoes, previews)
	}

	// The session is gone, so a late resolve of the old item is a no-op.
	f.source.OnCompleteResolve(context.Background(), result.Items[0])
	if got := provider.resolveCalls(); got != 1 {
		t.Errorf("expected 1 resolve call, got %d", got)
	}
}

func TestSource_Resolve_NewerSelectionWins(t *testing.T) {
	g := newGate("foo")
	provider := &resolvingProvider{listProvider: &listProvider{list: items("foo", "fizz")}, resolve: g.resolve}
	f := newFixture(t, provider, nil)

	result := complete(t, f.source, "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.source.OnCompleteResolve(context.Background(), result.Items[0])
	}()
	<-g.started

	f.source.OnCompleteResolve(context.Background(), result.Items[1])
	close(g.release)
	<-done

	echoes, _ := f.editor.snapshot()
	if len(echoes) != 1 || echoes[0] != "detail of fizz" {
		t.Errorf("only the latest selection should be shown, got %v", echoes)
	}

	// The late result is still cached for the next selection.
	f.source.OnCompleteResolve(context.Background(), result.Items[0])
	if got := provider.resolveCalls(); got != 2 {
		t.Errorf("expected cached reuse, got %d calls", got)
	}
}

func TestSource_SelectForResolve_RecordsSelectionImmediately(t *testing.T) {
	provider := &resolvingProvider{
		listProvider: &listProvider{list: items("foo", "fizz")},
		resolve: func(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error) {
			return withDetail(item)
		},
	}
	f := newFixture(t, provider, nil)

	result := complete(t, f.source, "")

	first := f.source.SelectForResolve(result.Items[0])
	second := f.source.SelectForResolve(result.Items[1])
	if first == nil || second == nil {
		t.Fatal("expected resolve work for both selections")
	}

	// The work runs in the opposite order, the later selection still wins.
	second(context.Background())
	first(context.Background())

	echoes, previews := f.editor.snapshot()
	if len(echoes) != 1 || echoes[0] != "detail of fizz" {
		t.Errorf("only the latest selection should be shown, got %v", echoes)
	}
	if len(previews) != 1 {
		t.Errorf("expected one preview, got %v", previews)
	}
	if got := provider.resolveCalls(); got != 2 {
		t.Errorf("expected 2 resolve calls, got %d", got)
	}

	// Items of another source need no work.
	if run := f.source.SelectForResolve(VimItem{Word: "x", UserData: "other"}); run != nil {
		t.Error("foreign item should not produce resolve work")
	}
}

func TestSource_Resolve_InFlightIsNotDuplicated(t *testing.T) {
	g := newGate("foo")
	provider := &resolvingProvider{listProvider: &listProvider{list: items("foo")}, resolve: g.resolve}
	f := newFixture(t, provider, nil)

	result := complete(t, f.source, "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.source.OnCompleteResolve(context.Background(), result.Items[0])
	}()
	<-g.started

	f.source.OnCompleteResolve(context.Background(), result.Items[0])
	close(g.release)
	<-done

	if got := provider.resolveCalls(); got != 1 {
		t.Errorf("expected 1 resolve call, got %d", got)
	}
}

func TestSource_NewCompletionDiscardsBatch(t *testing.T) {
	g := newGate("foo")
	provider := &resolvingProvider{listProvider: &listProvider{list: items("foo")}, resolve: g.resolve}
	f := newFixture(t, provider, nil)

	first := complete(t, f.source, "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.source.OnCompleteResolve(context.Background(), first.Items[0])
	}()
	<-g.started

	complete(t, f.source, "")
	close(g.release)
	<-done

	if echoes, _ := f.editor.snapshot(); len(echoes) != 0 {
		t.Errorf("resolve from a replaced batch must not be shown, got %v", echoes)
	}
}
