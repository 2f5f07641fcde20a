//go:build !wasm_debug
// +build !wasm_debug

package buildoptions

const (
	// IsDebugMode logs every dispatched instruction at debug level when true.
	IsDebugMode = false
	// CallStackHeightLimit is the default ceiling of interpreted call frames per invocation.
	CallStackHeightLimit = 2000
)
