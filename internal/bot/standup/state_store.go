package standup

import (
	"fmt"
	"sync"
)

// StateStore maps members to their conversations for one run. The map itself
// is fixed once the run is seeded; each entry is guarded by its own lock, so
// unrelated members never contend.
type StateStore struct {
	mu      sync.RWMutex
	order   []string
	members map[string]*MemberConversation
}

func NewStateStore() *StateStore {
	return &StateStore{members: make(map[string]*MemberConversation)}
}

func (s *StateStore) Get(memberID string) (*MemberConversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.members[memberID]
	return c, ok
}

func (s *StateStore) Put(memberID string, c *MemberConversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.members[memberID]; !exists {
		s.order = append(s.order, memberID)
	}
	s.members[memberID] = c
}

func (s *StateStore) Members() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *StateStore) Snapshot(runID string) Snapshot {
	snap := Snapshot{RunID: runID, Members: make([]MemberSnapshot, 0, len(s.Members()))}
	for _, id := range s.Members() {
		c, _ := s.Get(id)
		c.mu.Lock()
		snap.Members = append(snap.Members, c.snapshot())
		c.mu.Unlock()
	}
	return snap
}

// Restore replaces the store's contents with snap. An invalid snapshot leaves
// the store untouched.
func (s *StateStore) Restore(snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	order := make([]string, 0, len(snap.Members))
	members := make(map[string]*MemberConversation, len(snap.Members))
	for _, m := range snap.Members {
		order = append(order, m.MemberID)
		members[m.MemberID] = restoreMember(m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = order
	s.members = members
	return nil
}

func (s *StateStore) allTerminal() bool {
	for _, id := range s.Members() {
		c, _ := s.Get(id)
		c.mu.Lock()
		done := c.state.Terminal()
		c.mu.Unlock()
		if !done {
			return false
		}
	}
	return true
}

func (s *StateStore) mustGet(memberID string) *MemberConversation {
	c, ok := s.Get(memberID)
	if !ok {
		panic(fmt.Sprintf("standup: member %s missing from state store", memberID))
	}
	return c
}
