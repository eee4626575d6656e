// Package session holds the in-memory model of known calls.
//
// Every mutation replaces a whole slice; readers always get copies, so a
// partially applied snapshot is never observable.
package session

import (
	"sync"

	"call-console/internal/calls"
)

// Engaged is the EngagedCallContext: the inbound call being handled plus its
// transcript. Generation identifies this engagement; it changes on every
// engage and release.
type Engaged struct {
	Call       calls.Call              `json:"call"`
	Transcript []calls.TranscriptEntry `json:"transcript"`
	Generation uint64                  `json:"generation"`
}

// Snapshot is a consistent copy of the store.
type Snapshot struct {
	Active   []calls.Call `json:"active_calls"`
	Incoming []calls.Call `json:"incoming_calls"`
	Engaged  *Engaged     `json:"engaged,omitempty"`
}

type Store struct {
	mu sync.RWMutex

	active   []calls.Call
	incoming []calls.Call
	engaged  *Engaged

	// generation only ever grows.
	generation uint64

	// fetchSeq numbers calls fetches in start order; activeSeq and
	// incomingSeq are the newest fetch applied to each list.
	fetchSeq    uint64
	activeSeq   uint64
	incomingSeq uint64
}

func NewStore() *Store {
	return &Store{active: []calls.Call{}, incoming: []calls.Call{}}
}

// BeginCallsFetch numbers a calls fetch that is about to start. Pass the
// result to the ...At apply methods once the response arrives.
func (s *Store) BeginCallsFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchSeq++
	return s.fetchSeq
}

// ApplyActiveCallsSnapshot replaces the outbound-active set wholesale, as if
// fetched just now.
func (s *Store) ApplyActiveCallsSnapshot(list []calls.Call) {
	s.ApplyActiveCallsSnapshotAt(s.BeginCallsFetch(), list)
}

// ApplyActiveCallsSnapshotAt replaces the outbound-active set with the result
// of fetch seq, unless a newer fetch or a local removal already landed. A sid
// now reported as active is dropped from the incoming set so no sid is listed
// twice. It reports whether the snapshot was applied.
func (s *Store) ApplyActiveCallsSnapshotAt(seq uint64, list []calls.Call) bool {
	next := dedupe(list, nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.activeSeq {
		return false
	}
	s.activeSeq = seq
	s.active = next
	s.incoming = dedupe(s.incoming, sidSet(next))
	return true
}

// ApplyIncomingCallsSnapshot replaces the inbound-pending set wholesale, as
// if fetched just now.
func (s *Store) ApplyIncomingCallsSnapshot(list []calls.Call) {
	s.ApplyIncomingCallsSnapshotAt(s.BeginCallsFetch(), list)
}

// ApplyIncomingCallsSnapshotAt replaces the inbound-pending set with the
// result of fetch seq unless a newer fetch already landed. The engaged call is
// left out so poll lag cannot bring it back as incoming.
func (s *Store) ApplyIncomingCallsSnapshotAt(seq uint64, list []calls.Call) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.incomingSeq {
		return false
	}
	s.incomingSeq = seq
	exclude := sidSet(s.active)
	if s.engaged != nil {
		exclude[s.engaged.Call.CallSID] = struct{}{}
	}
	s.incoming = dedupe(list, exclude)
	return true
}

// RemoveActive drops one call from the active set after a confirmed hangup.
// Fetches that started before the removal can no longer overwrite it.
func (s *Store) RemoveActive(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchSeq++
	s.activeSeq = s.fetchSeq
	next := make([]calls.Call, 0, len(s.active))
	found := false
	for _, c := range s.active {
		if c.CallSID == sid {
			found = true
			continue
		}
		next = append(next, c)
	}
	s.active = next
	return found
}

// Engage promotes call to the engaged slot with an empty transcript, removes
// it from the incoming queue and returns the new generation.
func (s *Store) Engage(call calls.Call) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.engaged = &Engaged{Call: call, Transcript: []calls.TranscriptEntry{}, Generation: s.generation}

	next := make([]calls.Call, 0, len(s.incoming))
	for _, c := range s.incoming {
		if c.CallSID != call.CallSID {
			next = append(next, c)
		}
	}
	s.incoming = next
	return s.generation
}

// Release clears the engaged slot and invalidates its generation.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.engaged = nil
}

// Generation returns the current engagement generation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// UpsertTranscript replaces the engaged call's transcript if gen is still the
// current generation and sid is still engaged. It reports whether the
// snapshot was applied.
func (s *Store) UpsertTranscript(gen uint64, sid string, entries []calls.TranscriptEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engaged == nil || gen != s.generation || s.engaged.Call.CallSID != sid {
		return false
	}
	next := make([]calls.TranscriptEntry, len(entries))
	copy(next, entries)
	e := *s.engaged
	e.Transcript = next
	s.engaged = &e
	return true
}

func (s *Store) ActiveCalls() []calls.Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCalls(s.active)
}

func (s *Store) IncomingCalls() []calls.Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCalls(s.incoming)
}

// Engaged returns a copy of the engaged context.
func (s *Store) Engaged() (Engaged, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engaged == nil {
		return Engaged{}, false
	}
	return cloneEngaged(s.engaged), true
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Active: cloneCalls(s.active), Incoming: cloneCalls(s.incoming)}
	if s.engaged != nil {
		e := cloneEngaged(s.engaged)
		snap.Engaged = &e
	}
	return snap
}

// dedupe copies list, keeping the first occurrence of each call_sid and
// skipping sids in exclude.
func dedupe(list []calls.Call, exclude map[string]struct{}) []calls.Call {
	out := make([]calls.Call, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, c := range list {
		if _, skip := exclude[c.CallSID]; skip {
			continue
		}
		if _, ok := seen[c.CallSID]; ok {
			continue
		}
		seen[c.CallSID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func sidSet(list []calls.Call) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, c := range list {
		out[c.CallSID] = struct{}{}
	}
	return out
}

func cloneCalls(in []calls.Call) []calls.Call {
	out := make([]calls.Call, len(in))
	copy(out, in)
	return out
}

func cloneEngaged(e *Engaged) Engaged {
	out := *e
	out.Transcript = make([]calls.TranscriptEntry, len(e.Transcript))
	copy(out.Transcript, e.Transcript)
	return out
}
