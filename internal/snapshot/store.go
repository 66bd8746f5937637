package snapshot

import (
	"path/filepath"

	"github.com/banditlabs/stratcore/internal/alloc"
	"github.com/banditlabs/stratcore/internal/bandit"
	"github.com/banditlabs/stratcore/internal/learner"
)

// Snapshot file names inside the state directory.
const (
	learnerFile   = "learner.json"
	banditFile    = "bandit.json"
	allocatorFile = "allocator.json"
)

// Store reads and writes the three independent JSON snapshots that make up
// the engine's durable state.
type Store struct {
	dir string
}

// NewStore creates a snapshot store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the state directory.
func (s *Store) Dir() string { return s.dir }

// SaveLearner persists the learner snapshot atomically.
func (s *Store) SaveLearner(state learner.State) error {
	return writeJSONAtomic(filepath.Join(s.dir, learnerFile), state)
}

// LoadLearner reads the learner snapshot. Absence is ErrNotFound.
func (s *Store) LoadLearner() (learner.State, error) {
	var state learner.State
	err := readJSON(filepath.Join(s.dir, learnerFile), &state)
	return state, err
}

// SaveBandit persists the bandit snapshot atomically.
func (s *Store) SaveBandit(state bandit.State) error {
	return writeJSONAtomic(filepath.Join(s.dir, banditFile), state)
}

// LoadBandit reads the bandit snapshot. Absence is ErrNotFound.
func (s *Store) LoadBandit() (bandit.State, error) {
	var state bandit.State
	err := readJSON(filepath.Join(s.dir, banditFile), &state)
	return state, err
}

// SaveAllocator persists the allocator snapshot atomically.
func (s *Store) SaveAllocator(state alloc.State) error {
	return writeJSONAtomic(filepath.Join(s.dir, allocatorFile), state)
}

// LoadAllocator reads the allocator snapshot. Absence is ErrNotFound.
func (s *Store) LoadAllocator() (alloc.State, error) {
	var state alloc.State
	err := readJSON(filepath.Join(s.dir, allocatorFile), &state)
	return state, err
}
