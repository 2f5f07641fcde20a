package wasm

// StateKey identifies one typed entry of a HostState. Keys compare by pointer, so two keys created with the same
// name are still distinct and one host module can never read another's entry by accident.
type StateKey[T any] struct {
	name string
}

// NewStateKey returns a key for entries of type T. name is only used in error messages.
func NewStateKey[T any](name string) *StateKey[T] {
	return &StateKey[T]{name: name}
}

// String implements fmt.Stringer.
func (k *StateKey[T]) String() string {
	return k.name
}

// HostState is embedder-defined context passed by reference through every invocation, including nested ones
// started by host functions. Host functions use it to record side effects such as captured output.
//
// A HostState is not safe for concurrent use.
type HostState struct {
	values map[interface{}]interface{}
	// depth is the count of invocations currently active on this state.
	depth int
}

// NewHostState returns an empty HostState.
func NewHostState() *HostState {
	return &HostState{values: map[interface{}]interface{}{}}
}

// SetState stores v under key, replacing any previous value.
func SetState[T any](s *HostState, key *StateKey[T], v T) {
	if s.values == nil {
		s.values = map[interface{}]interface{}{}
	}
	s.values[key] = v
}

// GetState returns the value stored under key, or false if there is none.
func GetState[T any](s *HostState, key *StateKey[T]) (T, bool) {
	v, ok := s.values[key]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// DeleteState removes the value stored under key.
func DeleteState[T any](s *HostState, key *StateKey[T]) {
	delete(s.values, key)
}

// Depth returns the number of invocations currently running with this state.
func (s *HostState) Depth() int {
	return s.depth
}

// enter records a new invocation, failing with a Stack error when limit invocations are already active.
func (s *HostState) enter(limit int) error {
	if s.depth >= limit {
		return wrapError(ErrorKindStack, ErrRuntimeCallStackOverflow, "nested invocation depth exceeds %d", limit)
	}
	s.depth++
	return nil
}

func (s *HostState) exit() {
	s.depth--
}
