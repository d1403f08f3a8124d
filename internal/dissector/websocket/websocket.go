// Package websocket detects WebSocket framing on otherwise unclassified TCP
// flows by judging the base frame header of the first segments.
package websocket

import (
	"github.com/danmuck/wsdpi/internal/classifier"
	"github.com/danmuck/wsdpi/internal/dissector"
	"github.com/danmuck/wsdpi/internal/flow"
	"github.com/danmuck/wsdpi/internal/observability"
	"github.com/danmuck/wsdpi/internal/protocol"
	"github.com/rs/zerolog"
)

const Name = "WEBSOCKET"

type Dissector struct {
	c   *classifier.Classifier
	log zerolog.Logger
}

func New(c *classifier.Classifier, logger zerolog.Logger) *Dissector {
	if c == nil {
		c = classifier.New(classifier.DefaultOptions())
	}
	return &Dissector{
		c:   c,
		log: logger.With().Str("dissector", Name).Logger(),
	}
}

// Search classifies the current segment of f and applies the verdict.
// Flows already detected by another dissector are left untouched.
func (d *Dissector) Search(f flow.Flow) {
	if f.DetectedProtocol() != protocol.Unknown {
		return
	}

	attempt := f.PacketCounter()
	v := d.c.Classify(f.Payload(), attempt)
	transition := flow.Apply(f, protocol.WebSocket, v)

	reason := classifier.ReasonLabel(v.Reason)
	observability.RecordVerdict(protocol.WebSocket.String(), v.Outcome.String(), reason)

	event := d.log.Debug()
	if v.IsMatch() {
		event = d.log.Info()
	}
	event = event.
		Int("attempt", attempt).
		Int("len", len(f.Payload())).
		Str("verdict", v.Outcome.String()).
		Str("transition", transition.String())
	if v.Decoded {
		event = event.
			Bool("fin", v.Header.Fin).
			Str("opcode", v.Header.Opcode.String()).
			Bool("control", v.Header.Opcode.IsControl()).
			Bool("masked", v.Header.Masked).
			Uint8("len7", v.Header.PayloadLen7)
	}
	if v.IsReject() {
		event = event.Str("reason", reason)
	}
	event.Msg("search websocket")
}

// Register adds the dissector to r for payload-bearing TCP over IPv4 and
// IPv6 and returns its callback index.
func (d *Dissector) Register(r *dissector.Registry) (int, error) {
	return r.Register(dissector.Entry{
		Name:           Name,
		ID:             protocol.WebSocket,
		Search:         d.Search,
		Selection:      dissector.SelectionV4V6TCPWithPayload,
		SaveAsUnknown:  true,
		AddToDetection: true,
	})
}
