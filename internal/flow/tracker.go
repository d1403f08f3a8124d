package flow

import (
	"errors"
	"sort"
	"sync"

	"github.com/eapache/queue"
)

var ErrFlowTableFull = errors.New("flow: table full")

// DispatchFunc runs the detection pipeline against the current segment of s.
// It is only ever called by the goroutine that owns s at that moment.
type DispatchFunc func(s *State)

// Tracker is the flow table. Segments for one flow are queued and applied
// strictly in delivery order by a single drainer.
type Tracker struct {
	mu       sync.RWMutex
	flows    map[Key]*entry
	maxFlows int
	nextSeq  uint64
	dispatch DispatchFunc
	onNew    func(*State)
	settled  func(*State) bool
	onEvict  func(Snapshot)
}

type entry struct {
	seq uint64

	mu       sync.Mutex
	pending  *queue.Queue
	draining bool
	evicted  bool

	stateMu sync.Mutex
	state   *State
}

type TrackerOption func(*Tracker)

// segment is one queued payload. snap is the flow state right after the
// segment was dispatched; done is closed once snap is set and is nil for
// the segment the drainer itself delivered.
type segment struct {
	payload []byte
	snap    Snapshot
	done    chan struct{}
}

// WithEviction lets a full table make room by dropping its oldest idle flow
// for which settled reports true. onEvict, if not nil, sees the final state
// of every evicted flow.
func WithEviction(settled func(*State) bool, onEvict func(Snapshot)) TrackerOption {
	return func(t *Tracker) {
		t.settled = settled
		t.onEvict = onEvict
	}
}

func NewTracker(maxFlows int, dispatch DispatchFunc, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		flows:    make(map[Key]*entry),
		maxFlows: maxFlows,
		dispatch: dispatch,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Deliver queues payload as the next segment of the flow identified by key
// and returns the flow state right after that segment was dispatched. The
// payload is copied. If no other goroutine is draining the flow, the caller
// drains it; otherwise the caller waits for the drainer to reach its segment.
func (t *Tracker) Deliver(key Key, payload []byte) (Snapshot, error) {
	seg := &segment{payload: append([]byte(nil), payload...)}
	for {
		e, err := t.entry(key)
		if err != nil {
			return Snapshot{}, err
		}

		e.mu.Lock()
		if e.evicted {
			e.mu.Unlock()
			continue
		}
		if e.draining {
			seg.done = make(chan struct{})
			e.pending.Add(seg)
			e.mu.Unlock()
			<-seg.done
			return seg.snap, nil
		}
		e.pending.Add(seg)
		e.draining = true
		t.drain(e)
		return seg.snap, nil
	}
}

// drain dispatches queued segments in order. It is entered and left with
// e.mu held, and releases it on return.
func (t *Tracker) drain(e *entry) {
	for e.pending.Length() > 0 {
		next := e.pending.Remove().(*segment)
		e.mu.Unlock()

		e.stateMu.Lock()
		e.state.Advance(next.payload)
		if t.dispatch != nil {
			t.dispatch(e.state)
		}
		next.snap = e.state.Snapshot()
		e.stateMu.Unlock()
		if next.done != nil {
			close(next.done)
		}

		e.mu.Lock()
	}
	e.draining = false
	e.mu.Unlock()
}

func (t *Tracker) entry(key Key) (*entry, error) {
	t.mu.RLock()
	e, ok := t.flows[key]
	t.mu.RUnlock()
	if ok {
		return e, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.flows[key]; ok {
		return e, nil
	}
	if t.maxFlows > 0 && len(t.flows) >= t.maxFlows && !t.evictLocked() {
		return nil, ErrFlowTableFull
	}
	t.nextSeq++
	e = &entry{
		seq:     t.nextSeq,
		pending: queue.New(),
		state:   NewState(key),
	}
	if t.onNew != nil {
		t.onNew(e.state)
	}
	t.flows[key] = e
	return e, nil
}

// evictLocked drops the oldest idle settled flow. Flows that are being
// drained are skipped. The caller holds t.mu for writing.
func (t *Tracker) evictLocked() bool {
	if t.settled == nil {
		return false
	}
	var victim *entry
	for _, e := range t.flows {
		if victim != nil && e.seq > victim.seq {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		idle := !e.draining && e.pending.Length() == 0
		e.mu.Unlock()
		if !idle || !e.stateMu.TryLock() {
			continue
		}
		settled := t.settled(e.state)
		e.stateMu.Unlock()
		if settled {
			victim = e
		}
	}
	if victim == nil {
		return false
	}

	victim.mu.Lock()
	if victim.draining || victim.pending.Length() > 0 {
		victim.mu.Unlock()
		return false
	}
	victim.evicted = true
	victim.mu.Unlock()

	victim.stateMu.Lock()
	snap := victim.state.Snapshot()
	victim.stateMu.Unlock()
	delete(t.flows, snap.Key)
	if t.onEvict != nil {
		t.onEvict(snap)
	}
	return true
}

func (t *Tracker) Snapshot(key Key) (Snapshot, bool) {
	t.mu.RLock()
	e, ok := t.flows[key]
	t.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state.Snapshot(), true
}

// Snapshots returns every tracked flow ordered by key.
func (t *Tracker) Snapshots() []Snapshot {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.flows))
	for _, e := range t.flows {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		e.stateMu.Lock()
		out = append(out, e.state.Snapshot())
		e.stateMu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.flows)
}
