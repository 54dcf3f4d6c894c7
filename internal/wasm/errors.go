package wasm

import (
	"fmt"
	"time"
)

// CompilationError reports a provider module that wazero rejected.
type CompilationError struct {
	ModuleName string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compile provider module %q: %v", e.ModuleName, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// InstantiationError reports a compiled module that could not be started,
// including when the instance limit is reached.
type InstantiationError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("instantiate provider module %q as %s: %v", e.ModuleName, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

type ModuleNotFoundError struct {
	ModuleName string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("provider module %q has not been compiled", e.ModuleName)
}

// FunctionNotFoundError reports a missing guest export.
type FunctionNotFoundError struct {
	ModuleName   string
	FunctionName string
}

func (e *FunctionNotFoundError) Error() string {
	if e.ModuleName == "" {
		return fmt.Sprintf("guest does not export %q", e.FunctionName)
	}
	return fmt.Sprintf("provider module %q does not export %q", e.ModuleName, e.FunctionName)
}

// MemoryAccessError reports an out of bounds or failed access to guest
// linear memory.
type MemoryAccessError struct {
	Operation string
	Address   uint32
	Length    uint32
	Err       error
}

func (e *MemoryAccessError) Error() string {
	msg := fmt.Sprintf("guest memory %s of %d bytes at %#x failed", e.Operation, e.Length, e.Address)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MemoryAccessError) Unwrap() error {
	return e.Err
}

type HostFunctionError struct {
	FunctionName string
	Err          error
}

func (e *HostFunctionError) Error() string {
	return fmt.Sprintf("register host function %q: %v", e.FunctionName, e.Err)
}

func (e *HostFunctionError) Unwrap() error {
	return e.Err
}

// GuestCallError reports a guest export that trapped or returned an
// unusable result.
type GuestCallError struct {
	ModuleName   string
	FunctionName string
	Err          error
}

func (e *GuestCallError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.ModuleName, e.FunctionName, e.Err)
}

func (e *GuestCallError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a guest call aborted after wasm.execution_timeout.
type TimeoutError struct {
	ModuleName   string
	FunctionName string
	Duration     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s.%s did not return within %v", e.ModuleName, e.FunctionName, e.Duration)
}
