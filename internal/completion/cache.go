package completion

import (
	"context"

	"github.com/woxQAQ/completion-bridge/pkg/protocol"
)

// itemState tracks lazy resolution of one batch entry.
type itemState int

const (
	stateUnresolved itemState = iota
	stateResolving
	stateResolved
)

func (s itemState) String() string {
	switch s {
	case stateResolving:
		return "resolving"
	case stateResolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

// session scopes every resolve issued against one batch. Cancelling it
// invalidates all of them at once; a result whose session is no longer
// the current batch's session is stale.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession() *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{ctx: ctx, cancel: cancel}
}

func (s *session) done() bool {
	return s.ctx.Err() != nil
}

// batch holds the items of the latest completion request.
// Guarded by the owning Source's mutex.
type batch struct {
	items   []protocol.CompletionItem
	states  []itemState
	session *session
}

func newBatch(items []protocol.CompletionItem) *batch {
	return &batch{
		items:   items,
		states:  make([]itemState, len(items)),
		session: newSession(),
	}
}

// find locates the entry a host item refers to. The batch index is
// authoritative; label matching is the fallback for refs without one.
func (b *batch) find(ref itemRef, label string) (int, bool) {
	if ref.Index != nil {
		i := *ref.Index
		if i < 0 || i >= len(b.items) || b.items[i].Label != label {
			return 0, false
		}
		return i, true
	}

	for i, item := range b.items {
		if item.Label == label {
			return i, true
		}
	}
	return 0, false
}

func (b *batch) discard() {
	b.session.cancel()
}

// resolveKey identifies the entry most recently asked to resolve.
type resolveKey struct {
	batch *batch
	index int
}
