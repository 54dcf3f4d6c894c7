package wasm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// Guest exports used by the bridge.
const (
	ExportAlloc    = "alloc"
	ExportComplete = "complete"
	ExportResolve  = "resolve"
)

// InstanceManager starts instances of compiled provider modules.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *HostFunctionsImpl
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, hostFuncs *HostFunctionsImpl, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: hostFuncs,
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig selects the module to start.
type InstanceConfig struct {
	ModuleName string

	// Generated when empty.
	InstanceID string
}

// Instance is an instantiated provider module. Guest code is single
// threaded, so calls into one instance are serialized.
type Instance struct {
	mu      sync.Mutex
	module  api.Module
	runtime *Runtime

	ID        string
	Name      string
	CreatedAt int64

	exports map[string]api.Function
}

// Instantiate creates a new instance from a compiled module.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	if limit := m.runtime.config.MaxInstances; limit > 0 && m.runtime.InstanceCount() >= limit {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			Err:        fmt.Errorf("instance limit of %d reached", limit),
		}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	m.logger.Debug("Instantiating provider module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	if err := m.runtime.instantiateHostModule(ctx, m.hostFuncs); err != nil {
		return nil, err
	}

	// Reactor modules initialize through _initialize; missing start
	// functions are skipped.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions("_initialize")

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	instance := &Instance{
		module:    module,
		runtime:   m.runtime,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   cacheExportedFunctions(module),
	}

	m.runtime.StoreInstance(instance)

	m.logger.Info("Provider instance ready",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(instance.exports)),
	)

	return instance, nil
}

// Close stops the instance and forgets it.
func (i *Instance) Close(ctx context.Context) error {
	i.runtime.DeleteInstance(i.ID)
	return i.module.Close(ctx)
}

// HasExport reports whether the instance exports a function called name.
func (i *Instance) HasExport(name string) bool {
	_, ok := i.exports[name]
	return ok
}

// Call writes input into guest memory, calls fn(ptr, len) and reads back
// the packed (ptr<<32 | len) result.
func (i *Instance) Call(ctx context.Context, fn string, input []byte) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	f, ok := i.exports[fn]
	if !ok {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: fn}
	}

	mem, err := NewMemory(i.module, i.exports[ExportAlloc])
	if err != nil {
		return nil, err
	}

	ptr, length, err := mem.WriteBytes(ctx, input)
	if err != nil {
		return nil, err
	}

	results, err := f.Call(ctx, uint64(ptr), uint64(length))
	if err != nil {
		return nil, &GuestCallError{ModuleName: i.Name, FunctionName: fn, Err: err}
	}
	if len(results) != 1 {
		return nil, &GuestCallError{
			ModuleName:   i.Name,
			FunctionName: fn,
			Err:          fmt.Errorf("expected 1 result, got %d", len(results)),
		}
	}

	outPtr, outLen := unpack(results[0])
	if outLen == 0 {
		return nil, nil
	}
	out, ok := mem.ReadBytes(outPtr, outLen)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read", Address: outPtr, Length: outLen}
	}

	// The guest may reuse its buffers on the next call.
	return append([]byte(nil), out...), nil
}

func unpack(v uint64) (ptr uint32, length uint32) {
	return uint32(v >> 32), uint32(v)
}

// cacheExportedFunctions caches references to the guest's provider exports.
func cacheExportedFunctions(module api.Module) map[string]api.Function {
	exports := make(map[string]api.Function)

	for _, name := range []string{ExportAlloc, ExportComplete, ExportResolve} {
		if fn := module.ExportedFunction(name); fn != nil {
			exports[name] = fn
		}
	}

	return exports
}
