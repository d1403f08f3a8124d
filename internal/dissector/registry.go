package dissector

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/danmuck/wsdpi/internal/flow"
	"github.com/danmuck/wsdpi/internal/protocol"
)

var (
	ErrUnknownName   = errors.New("dissector: name not registered")
	ErrDuplicateName = errors.New("dissector: name already registered")
	ErrDuplicateID   = errors.New("dissector: protocol id already registered")
	ErrInvalidEntry  = errors.New("dissector: invalid entry")
)

// SearchFunc inspects the current segment of f and records its decision on f.
type SearchFunc func(f flow.Flow)

// Entry is one registered dissector.
type Entry struct {
	Name      string
	ID        protocol.ID
	Search    SearchFunc
	Selection Selection
	// SaveAsUnknown seeds the dissector's own bitmask with Unknown so it only
	// runs while the flow is still undetected.
	SaveAsUnknown bool
	// AddToDetection merges ID into the registry's detection bitmask,
	// enabling the dissector.
	AddToDetection bool

	index   int
	bitmask protocol.Bitmask
}

func (e Entry) Index() int { return e.index }

// Registry is the dispatch table. Dissectors run in registration order.
type Registry struct {
	mu        sync.RWMutex
	entries   []*Entry
	byName    map[string]*Entry
	byID      map[protocol.ID]*Entry
	detection protocol.Bitmask
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Entry),
		byID:   make(map[protocol.ID]*Entry),
	}
}

// Register adds e and returns its callback index.
func (r *Registry) Register(e Entry) (int, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" || e.Search == nil || e.ID == protocol.Unknown {
		return 0, fmt.Errorf("%w: name, search and non-unknown id are required", ErrInvalidEntry)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToUpper(name)
	if _, ok := r.byName[key]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	if _, ok := r.byID[e.ID]; ok {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateID, e.ID)
	}

	entry := e
	entry.Name = name
	entry.index = len(r.entries)
	entry.bitmask.Reset()
	if entry.SaveAsUnknown {
		entry.bitmask.Add(protocol.Unknown)
	}
	if entry.AddToDetection {
		r.detection.Add(entry.ID)
	}

	r.entries = append(r.entries, &entry)
	r.byName[key] = &entry
	r.byID[entry.ID] = &entry
	return entry.index, nil
}

func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// All returns a snapshot of the registered entries in dispatch order.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out
}

func (r *Registry) Detection() protocol.Bitmask {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.detection
}

// Enable and Disable toggle a protocol in the detection bitmask.
func (r *Registry) Enable(id protocol.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detection.Add(id)
}

func (r *Registry) Disable(id protocol.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detection.Del(id)
}

// SetEnabled toggles the dissector registered under name.
func (r *Registry) SetEnabled(name string, enabled bool) (Entry, error) {
	e, ok := r.Get(name)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownName, strings.TrimSpace(name))
	}
	if enabled {
		r.Enable(e.ID)
	} else {
		r.Disable(e.ID)
	}
	return e, nil
}

func (r *Registry) Enabled(id protocol.ID) bool {
	return r.Detection().Has(id)
}

// Settled reports whether no enabled dissector can still change s: the flow
// is detected, or every enabled protocol has been excluded for it.
func (r *Registry) Settled(s *flow.State) bool {
	if s.DetectedProtocol() != protocol.Unknown {
		return true
	}
	remaining := r.Detection()
	remaining.Subtract(s.ExcludedSet())
	return remaining.Empty()
}

// Dispatch offers the current segment of s to every eligible dissector in
// registration order, stopping as soon as the flow is detected. It returns
// the number of dissectors invoked.
func (r *Registry) Dispatch(s *flow.State) int {
	r.mu.RLock()
	entries := make([]*Entry, len(r.entries))
	copy(entries, r.entries)
	detection := r.detection
	r.mu.RUnlock()

	pkt := SelectionOf(s)
	invoked := 0
	for _, e := range entries {
		if s.DetectedProtocol() != protocol.Unknown {
			break
		}
		if !detection.Has(e.ID) || s.Excluded(e.ID) {
			continue
		}
		if !e.Selection.Accepts(pkt) {
			continue
		}
		if e.SaveAsUnknown && !e.bitmask.Has(s.DetectedProtocol()) {
			continue
		}
		e.Search(s)
		invoked++
	}
	return invoked
}
