package wasm

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmapi "github.com/woxQAQ/completion-bridge/api/wasm"
)

// hostModuleName is the import module guests use for host functions.
const hostModuleName = "host"

// HostFunctionsImpl implements the functions exported to provider modules.
type HostFunctionsImpl struct {
	logger *zap.Logger
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctionsImpl {
	return &HostFunctionsImpl{
		logger: logger.With(zap.String("component", "wasm-host")),
	}
}

// logMessage is called by guests to log through the bridge's logger.
// Signature: log_message(level, ptr, length). Unknown levels log at info.
func (h *HostFunctionsImpl) logMessage(ctx context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	msg, ok := mod.Memory().Read(ptr, length)
	if !ok {
		h.logger.Error("Failed to read log message from Wasm memory",
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
		)
		return
	}

	logger := h.logger.With(zap.String("module", mod.Name()))
	switch level {
	case wasmapi.LogLevelDebug:
		logger.Debug(string(msg))
	case wasmapi.LogLevelWarn:
		logger.Warn(string(msg))
	case wasmapi.LogLevelError:
		logger.Error(string(msg))
	default:
		logger.Info(string(msg))
	}
}

// instantiateHostModule registers the host module with the runtime once.
func (r *Runtime) instantiateHostModule(ctx context.Context, impl *HostFunctionsImpl) error {
	r.hostOnce.Do(func() {
		_, r.hostErr = r.runtime.NewHostModuleBuilder(hostModuleName).
			NewFunctionBuilder().
			WithFunc(impl.logMessage).
			WithParameterNames("level", "ptr", "length").
			Export("log_message").
			Instantiate(ctx)
		if r.hostErr != nil {
			r.hostErr = &HostFunctionError{FunctionName: "log_message", Err: r.hostErr}
		}
	})
	return r.hostErr
}
