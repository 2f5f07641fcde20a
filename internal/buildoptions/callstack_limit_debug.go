//go:build wasm_debug
// +build wasm_debug

package buildoptions

const (
	IsDebugMode          = true
	CallStackHeightLimit = 2000
)
