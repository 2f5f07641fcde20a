package wasm

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/tetcoin-staging/parity-wasm/internal/buildoptions"
)

const (
	// DefaultOperandStackLimit is the default maximum count of values on the operand stack of one invocation.
	DefaultOperandStackLimit = 1 << 16
	// DefaultMaxNestingDepth is the default maximum count of invocations active on one HostState, such as a host
	// function invoking an export which calls that host function again.
	DefaultMaxNestingDepth = 64
)

// RuntimeConfig controls limits enforced during instantiation and execution, with the default implementation as
// NewRuntimeConfig. Each With method returns a modified copy.
type RuntimeConfig struct {
	callStackLimit    int
	operandStackLimit int
	memoryMaxPages    uint32
	maxNestingDepth   int
}

var defaultRuntimeConfig = &RuntimeConfig{
	callStackLimit:    buildoptions.CallStackHeightLimit,
	operandStackLimit: DefaultOperandStackLimit,
	memoryMaxPages:    MemoryMaxPages,
	maxNestingDepth:   DefaultMaxNestingDepth,
}

// clone ensures all fields are copied even if nil.
func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	return &ret
}

// NewRuntimeConfig returns the default limits.
func NewRuntimeConfig() *RuntimeConfig {
	return defaultRuntimeConfig.clone()
}

// WithCallStackLimit sets the maximum count of frames of one invocation. Exceeding it fails the invocation with
// an ErrorKindStack error. Values less than one are ignored.
func (c *RuntimeConfig) WithCallStackLimit(frames int) *RuntimeConfig {
	ret := c.clone()
	if frames > 0 {
		ret.callStackLimit = frames
	}
	return ret
}

// WithOperandStackLimit sets the maximum count of values on the operand stack of one invocation. Values less than
// one are ignored.
func (c *RuntimeConfig) WithOperandStackLimit(values int) *RuntimeConfig {
	ret := c.clone()
	if values > 0 {
		ret.operandStackLimit = values
	}
	return ret
}

// WithMemoryMaxPages reduces the maximum number of pages a module can define from 65536 pages (4GiB) to a lower value.
//
// Notes:
// * A module declaring a larger min or max fails to instantiate.
// * Any "memory.grow" beyond this value fails, even when the memory declares no max.
func (c *RuntimeConfig) WithMemoryMaxPages(memoryMaxPages uint32) *RuntimeConfig {
	ret := c.clone()
	if memoryMaxPages <= MemoryMaxPages {
		ret.memoryMaxPages = memoryMaxPages
	}
	return ret
}

// WithMaxNestingDepth sets how many invocations may be active on one HostState at once. Values less than one are
// ignored.
func (c *RuntimeConfig) WithMaxNestingDepth(depth int) *RuntimeConfig {
	ret := c.clone()
	if depth > 0 {
		ret.maxNestingDepth = depth
	}
	return ret
}

// CallStackLimit returns the value set by WithCallStackLimit.
func (c *RuntimeConfig) CallStackLimit() int { return c.callStackLimit }

// OperandStackLimit returns the value set by WithOperandStackLimit.
func (c *RuntimeConfig) OperandStackLimit() int { return c.operandStackLimit }

// MemoryMaxPages returns the value set by WithMemoryMaxPages.
func (c *RuntimeConfig) MemoryMaxPages() uint32 { return c.memoryMaxPages }

// MaxNestingDepth returns the value set by WithMaxNestingDepth.
func (c *RuntimeConfig) MaxNestingDepth() int { return c.maxNestingDepth }

// runtimeConfigFile is the TOML representation of RuntimeConfig. Absent keys keep their defaults.
type runtimeConfigFile struct {
	CallStackLimit    *int    `toml:"call_stack_limit"`
	OperandStackLimit *int    `toml:"operand_stack_limit"`
	MemoryMaxPages    *uint32 `toml:"memory_max_pages"`
	MaxNestingDepth   *int    `toml:"max_nesting_depth"`
}

// ParseRuntimeConfig reads a RuntimeConfig from TOML, starting from NewRuntimeConfig.
//
// Ex.
//
//	call_stack_limit = 1000
//	memory_max_pages = 16
func ParseRuntimeConfig(data []byte) (*RuntimeConfig, error) {
	var f runtimeConfigFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("parse runtime config: %w", err)
	}
	return f.apply(md)
}

// LoadRuntimeConfig reads a RuntimeConfig from the TOML file at path. See ParseRuntimeConfig.
func LoadRuntimeConfig(path string) (*RuntimeConfig, error) {
	var f runtimeConfigFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("load runtime config %s: %w", path, err)
	}
	return f.apply(md)
}

func (f *runtimeConfigFile) apply(md toml.MetaData) (*RuntimeConfig, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown runtime config keys: %s", strings.Join(keys, ", "))
	}

	c := NewRuntimeConfig()
	if v := f.CallStackLimit; v != nil {
		if *v < 1 {
			return nil, fmt.Errorf("call_stack_limit must be positive: %d", *v)
		}
		c = c.WithCallStackLimit(*v)
	}
	if v := f.OperandStackLimit; v != nil {
		if *v < 1 {
			return nil, fmt.Errorf("operand_stack_limit must be positive: %d", *v)
		}
		c = c.WithOperandStackLimit(*v)
	}
	if v := f.MemoryMaxPages; v != nil {
		if *v > MemoryMaxPages {
			return nil, fmt.Errorf("memory_max_pages exceeds %d: %d", MemoryMaxPages, *v)
		}
		c = c.WithMemoryMaxPages(*v)
	}
	if v := f.MaxNestingDepth; v != nil {
		if *v < 1 {
			return nil, fmt.Errorf("max_nesting_depth must be positive: %d", *v)
		}
		c = c.WithMaxNestingDepth(*v)
	}
	return c, nil
}
