package compiler

import (
	"sync"

	"github.com/daeargryn/cirkit/symbolic"
)

// State holds the compiled forms of symbolic nodes across an entire pipeline
// of circuits. Caches are keyed by node identity, matching the symbolic IR's
// identity semantics: two structurally equal but distinct nodes compile to
// distinct storage, while one node reached through any number of circuits
// compiles exactly once. A State may be shared across Compile calls and is
// safe for concurrent use.
type State struct {
	mu     sync.Mutex
	params map[symbolic.Parameter]Parameter
	layers map[symbolic.Layer]*Layer
}

// NewState creates an empty compilation state.
func NewState() *State {
	return &State{
		params: make(map[symbolic.Parameter]Parameter),
		layers: make(map[symbolic.Layer]*Layer),
	}
}

// HasParameter reports whether p was already compiled in this state.
func (s *State) HasParameter(p symbolic.Parameter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found := s.params[p]
	return found
}

// RetrieveParameter returns the compiled form of p, or nil.
func (s *State) RetrieveParameter(p symbolic.Parameter) Parameter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params[p]
}

// RegisterParameter records the compiled form of p.
func (s *State) RegisterParameter(p symbolic.Parameter, compiled Parameter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[p] = compiled
}

// materializeOnce returns a pointer to the cached materialization of the
// leaf parameter p, or runs materialize and caches its result. The check and
// the registration happen under one lock acquisition, so concurrent
// compilations of a shared leaf allocate its storage once. materialize must
// not recurse into the state.
func (s *State) materializeOnce(p symbolic.Parameter, materialize func() (*TensorParameter, error)) (Parameter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if compiled, found := s.params[p]; found {
		if leaf, ok := compiled.(*TensorParameter); ok {
			return &PointerParameter{ref: leaf}, nil
		}
		return compiled, nil
	}
	compiled, err := materialize()
	if err != nil {
		return nil, err
	}
	s.params[p] = compiled
	return compiled, nil
}

// HasLayer reports whether l was already compiled in this state.
func (s *State) HasLayer(l symbolic.Layer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found := s.layers[l]
	return found
}

// RetrieveLayer returns the compiled form of l, or nil.
func (s *State) RetrieveLayer(l symbolic.Layer) *Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layers[l]
}

// RegisterLayer records the compiled form of l.
func (s *State) RegisterLayer(l symbolic.Layer, compiled *Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers[l] = compiled
}
