package standup

import "sync"

type route struct {
	memberID string
	phase    Phase
}

type memberPhase struct {
	memberID string
	phase    Phase
}

// EventRouter maps live message references back to the conversation that owns
// them. It only ever holds live references: recording a new one for a
// (member, phase) pair drops the previous one.
type EventRouter struct {
	mu    sync.RWMutex
	byRef map[MessageRef]route
	live  map[memberPhase]MessageRef
}

func NewEventRouter() *EventRouter {
	return &EventRouter{
		byRef: make(map[MessageRef]route),
		live:  make(map[memberPhase]MessageRef),
	}
}

func (r *EventRouter) Record(memberID string, phase Phase, ref MessageRef) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memberPhase{memberID, phase}
	if old, ok := r.live[key]; ok {
		delete(r.byRef, old)
	}
	r.live[key] = ref
	r.byRef[ref] = route{memberID: memberID, phase: phase}
}

func (r *EventRouter) Supersede(memberID string, phase Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memberPhase{memberID, phase}
	if old, ok := r.live[key]; ok {
		delete(r.byRef, old)
		delete(r.live, key)
	}
}

// Route returns the member and phase owning the event's message, or ok=false
// when the reference is not live or belongs to someone other than the actor.
func (r *EventRouter) Route(ev Interaction) (memberID string, phase Phase, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, found := r.byRef[ev.Ref()]
	if !found || rt.memberID != ev.MemberID {
		return "", "", false
	}
	return rt.memberID, rt.phase, true
}

func (r *EventRouter) Live(memberID string, phase Phase) (MessageRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.live[memberPhase{memberID, phase}]
	return ref, ok
}

func (r *EventRouter) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRef)
}
