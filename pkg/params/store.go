// Package params holds the live controller parameters.
//
// Writers (the HTTP API, a params file) validate and publish a complete new
// snapshot; the control cycle reads one snapshot per tick with a single
// atomic load and never blocks on a writer.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-hopper/pkg/slip"
)

// ErrReadFile is returned (wrapped) when a params file cannot be read.
var ErrReadFile = errors.New("params: cannot read file")

// Snapshot is an immutable, versioned copy of the parameters.
type Snapshot struct {
	Version uint64
	Params  slip.Params
}

// Store publishes parameter snapshots to the control cycle.
type Store struct {
	current atomic.Pointer[Snapshot]

	// Serialises writers only; readers never take it.
	mu sync.Mutex

	defaults slip.Params
}

// NewStore creates a store seeded with p. p must be valid.
func NewStore(p slip.Params) (*Store, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &Store{defaults: p}
	s.current.Store(&Snapshot{Version: 1, Params: p})
	return s, nil
}

// Snapshot returns the current parameters. Safe to call from the control
// cycle.
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// Params returns the current parameter values.
func (s *Store) Params() slip.Params {
	return s.current.Load().Params
}

// Version returns the current snapshot version.
func (s *Store) Version() uint64 {
	return s.current.Load().Version
}

// Set validates p and publishes it. An invalid p leaves the store unchanged.
func (s *Store) Set(p slip.Params) (uint64, error) {
	if err := p.Validate(); err != nil {
		return s.Version(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Snapshot{Version: s.current.Load().Version + 1, Params: p}
	s.current.Store(next)
	return next.Version, nil
}

// Update applies fn to a copy of the current parameters and publishes the
// result if it validates.
func (s *Store) Update(fn func(*slip.Params)) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	p := cur.Params
	fn(&p)
	if err := p.Validate(); err != nil {
		return cur.Version, err
	}

	next := &Snapshot{Version: cur.Version + 1, Params: p}
	s.current.Store(next)
	return next.Version, nil
}

// Merge decodes a partial JSON object onto a copy of the current parameters
// and publishes the result if it decodes and validates. Absent keys keep
// their current values.
func (s *Store) Merge(data []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	p := cur.Params
	if err := json.Unmarshal(data, &p); err != nil {
		return cur.Version, fmt.Errorf("params: decode: %w", err)
	}
	if err := p.Validate(); err != nil {
		return cur.Version, err
	}

	next := &Snapshot{Version: cur.Version + 1, Params: p}
	s.current.Store(next)
	return next.Version, nil
}

// Reset restores the parameters the store was created with.
func (s *Store) Reset() uint64 {
	v, _ := s.Set(s.defaults)
	return v
}

// Load reads a YAML params file. Keys missing from the file keep the values
// in base.
func Load(path string, base slip.Params) (slip.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("%w %s: %v", ErrReadFile, path, err)
	}
	return Parse(data, base)
}

// Parse decodes YAML params over base and validates the result.
func Parse(data []byte, base slip.Params) (slip.Params, error) {
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return base, fmt.Errorf("params: parse yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return base, err
	}
	return p, nil
}

// Marshal encodes params as YAML.
func Marshal(p slip.Params) ([]byte, error) {
	return yaml.Marshal(p)
}
