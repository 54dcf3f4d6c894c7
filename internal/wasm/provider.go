package wasm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	wasmapi "github.com/woxQAQ/completion-bridge/api/wasm"
	"github.com/woxQAQ/completion-bridge/internal/completion"
	"github.com/woxQAQ/completion-bridge/pkg/protocol"
)

// Provider is a completion provider backed by a Wasm module.
type Provider struct {
	manager *InstanceManager
	module  string
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	instance *Instance
}

// ResolvingProvider is a Provider whose module also exports resolve.
type ResolvingProvider struct {
	*Provider
}

// NewProvider instantiates the compiled module called moduleName and wraps
// it as a completion provider. The result implements completion.Resolver
// only when the module exports resolve. timeout bounds each guest call;
// zero disables it.
func NewProvider(ctx context.Context, manager *InstanceManager, moduleName string, timeout time.Duration, logger *zap.Logger) (completion.Provider, error) {
	p := &Provider{
		manager: manager,
		module:  moduleName,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "wasm-provider"), zap.String("module", moduleName)),
	}

	inst, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !inst.HasExport(ExportComplete) {
		_ = p.Close(ctx)
		return nil, &FunctionNotFoundError{ModuleName: moduleName, FunctionName: ExportComplete}
	}
	if !inst.HasExport(ExportAlloc) {
		_ = p.Close(ctx)
		return nil, &FunctionNotFoundError{ModuleName: moduleName, FunctionName: ExportAlloc}
	}

	if inst.HasExport(ExportResolve) {
		return &ResolvingProvider{Provider: p}, nil
	}
	return p, nil
}

// ProvideCompletionItems runs the guest's complete export.
func (p *Provider) ProvideCompletionItems(ctx context.Context, doc protocol.TextDocumentItem, pos protocol.Position, cc protocol.CompletionContext) (*protocol.CompletionList, error) {
	input, err := json.Marshal(wasmapi.CompleteRequest{TextDocument: doc, Position: pos, Context: cc})
	if err != nil {
		return nil, fmt.Errorf("failed to encode complete request: %w", err)
	}

	out, err := p.call(ctx, ExportComplete, input)
	if err != nil {
		return nil, err
	}

	var list protocol.CompletionList
	if len(out) > 0 {
		if err := json.Unmarshal(out, &list); err != nil {
			return nil, fmt.Errorf("failed to decode completion result from '%s': %w", p.module, err)
		}
	}
	return &list, nil
}

// ResolveCompletionItem runs the guest's resolve export.
func (p *ResolvingProvider) ResolveCompletionItem(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error) {
	input, err := json.Marshal(wasmapi.ResolveRequest(item))
	if err != nil {
		return nil, fmt.Errorf("failed to encode resolve request: %w", err)
	}

	out, err := p.call(ctx, ExportResolve, input)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	var resolved protocol.CompletionItem
	if err := json.Unmarshal(out, &resolved); err != nil {
		return nil, fmt.Errorf("failed to decode resolved item from '%s': %w", p.module, err)
	}
	return &resolved, nil
}

// call invokes fn on the live instance. Request cancellation is checked
// around the call rather than inside it: aborting a guest closes its
// instance, so only the execution timeout does that.
func (p *Provider) call(ctx context.Context, fn string, input []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inst, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}

	callCtx := context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := inst.Call(callCtx, fn, input)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			p.logger.Warn("Guest call timed out, dropping instance",
				zap.String("function", fn),
				zap.Duration("timeout", p.timeout),
			)
			p.release(ctx, inst)
			return nil, &TimeoutError{ModuleName: p.module, FunctionName: fn, Duration: p.timeout}
		}
		return nil, err
	}

	p.logger.Debug("Guest call finished",
		zap.String("function", fn),
		zap.Duration("duration", time.Since(start)),
		zap.Int("output_bytes", len(out)),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// acquire returns the live instance, instantiating a fresh one if the
// previous instance was dropped.
func (p *Provider) acquire(ctx context.Context) (*Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.instance != nil {
		return p.instance, nil
	}

	inst, err := p.manager.Instantiate(ctx, &InstanceConfig{ModuleName: p.module})
	if err != nil {
		return nil, err
	}
	p.instance = inst
	return inst, nil
}

func (p *Provider) release(ctx context.Context, inst *Instance) {
	p.mu.Lock()
	if p.instance == inst {
		p.instance = nil
	}
	p.mu.Unlock()

	if err := inst.Close(context.WithoutCancel(ctx)); err != nil {
		p.logger.Debug("Failed to close instance", zap.Error(err))
	}
}

// Close releases the provider's instance.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	inst := p.instance
	p.instance = nil
	p.mu.Unlock()

	if inst == nil {
		return nil
	}
	return inst.Close(ctx)
}
