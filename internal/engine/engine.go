// Package engine wires the flow table, the dissector registry and the
// WebSocket dissector into one detection pipeline.
package engine

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/danmuck/wsdpi/internal/classifier"
	"github.com/danmuck/wsdpi/internal/config"
	"github.com/danmuck/wsdpi/internal/dissector"
	"github.com/danmuck/wsdpi/internal/dissector/websocket"
	"github.com/danmuck/wsdpi/internal/flow"
	"github.com/danmuck/wsdpi/internal/observability"
	"github.com/danmuck/wsdpi/internal/protocol"
	"github.com/rs/zerolog"
)

var ErrInvalidEndpoint = errors.New("engine: invalid endpoint")

type Engine struct {
	classifier *classifier.Classifier
	registry   *dissector.Registry
	tracker    *flow.Tracker
	guesses    map[uint16]protocol.ID
	log        zerolog.Logger
}

func New(cfg config.Config, logger zerolog.Logger) (*Engine, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	e := &Engine{
		classifier: classifier.New(cfg.ClassifierOptions()),
		registry:   dissector.NewRegistry(),
		guesses:    cfg.GuessTable(),
		log:        logger,
	}

	ws := websocket.New(e.classifier, logger)
	idx, err := ws.Register(e.registry)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", websocket.Name, err)
	}
	logger.Debug().Str("dissector", websocket.Name).Int("index", idx).Msg("dissector registered")

	for _, name := range cfg.DisabledDissectors {
		if _, err := e.registry.SetEnabled(name, false); err != nil {
			return nil, fmt.Errorf("%w: disabled_dissectors: %w", config.ErrInvalidConfig, err)
		}
		logger.Info().Str("dissector", name).Msg("dissector disabled")
	}

	e.tracker = flow.NewTracker(cfg.MaxFlows, e.dispatch,
		flow.WithNewFlowHook(e.guess),
		flow.WithEviction(e.registry.Settled, e.evicted),
	)
	return e, nil
}

func (e *Engine) evicted(snap flow.Snapshot) {
	observability.RecordFlowEvicted()
	e.log.Debug().
		Str("flow", snap.Key.String()).
		Int("packets", snap.Packets).
		Str("detected", snap.DetectedAs).
		Msg("settled flow evicted")
}

func (e *Engine) dispatch(s *flow.State) {
	e.registry.Dispatch(s)
}

// guess seeds a new flow with a port based classification.
func (e *Engine) guess(s *flow.State) {
	if id, ok := e.guesses[s.Key.DstPort]; ok {
		s.GuessHostProtocol(id)
		return
	}
	if id, ok := e.guesses[s.Key.SrcPort]; ok {
		s.GuessHostProtocol(id)
	}
}

// Deliver feeds one TCP segment into the pipeline and returns the flow state
// after it was processed. A full table evicts its oldest settled flow before
// refusing a new one with flow.ErrFlowTableFull.
func (e *Engine) Deliver(src, dst netip.AddrPort, payload []byte) (flow.Snapshot, error) {
	if !src.IsValid() || !dst.IsValid() {
		return flow.Snapshot{}, ErrInvalidEndpoint
	}
	key := flow.NewKey(src, dst, flow.ProtoTCP)
	snap, err := e.tracker.Deliver(key, payload)
	if err != nil {
		return flow.Snapshot{}, err
	}
	observability.SetFlowsTracked(e.tracker.Len())
	return snap, nil
}

// Classify runs the classifier alone, without touching any flow.
func (e *Engine) Classify(payload []byte, attempt int) classifier.Verdict {
	return e.classifier.Classify(payload, attempt)
}

// Flow returns the tracked state of the TCP flow between src and dst, in
// either direction.
func (e *Engine) Flow(src, dst netip.AddrPort) (flow.Snapshot, bool) {
	return e.tracker.Snapshot(flow.NewKey(src, dst, flow.ProtoTCP))
}

func (e *Engine) Flows() []flow.Snapshot {
	return e.tracker.Snapshots()
}

// SetDissectorEnabled toggles a registered dissector at runtime.
func (e *Engine) SetDissectorEnabled(name string, enabled bool) (dissector.Entry, error) {
	entry, err := e.registry.SetEnabled(name, enabled)
	if err != nil {
		return dissector.Entry{}, err
	}
	e.log.Info().Str("dissector", entry.Name).Bool("enabled", enabled).Msg("dissector toggled")
	return entry, nil
}

func (e *Engine) Registry() *dissector.Registry {
	return e.registry
}
