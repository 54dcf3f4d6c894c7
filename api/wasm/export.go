//go:build wasm

package wasm

// This file documents the exports a completion provider module must
// implement. Build guests with //go:wasmexport (Go, GOOS=wasip1 with
// -buildmode=c-shared) or the equivalent for other toolchains.
//
// NOTE: uint32 is used for pointers and lengths because WebAssembly uses a 32-bit
// linear memory model. Results that carry both are packed into a uint64 as
// ptr<<32 | len.
//
// Required:
//
// //go:wasmexport alloc
// func alloc(size uint32) uint32
//
// //go:wasmexport complete
// func complete(ptr, length uint32) uint64 // CompleteRequest in, CompletionList or []CompletionItem out
//
// Optional, enables lazy resolve:
//
// //go:wasmexport resolve
// func resolve(ptr, length uint32) uint64 // CompletionItem in, CompletionItem out
//
// Imported from module "host":
//
// //go:wasmimport host log_message
// func logMessage(level, ptr, length uint32)
