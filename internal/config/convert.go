package config

import (
	"github.com/danmuck/wsdpi/internal/classifier"
	"github.com/danmuck/wsdpi/internal/protocol"
)

func (c Config) ClassifierOptions() classifier.Options {
	return classifier.Options{
		AttemptBudget:      c.AttemptBudget,
		DeferShortSegments: c.DeferShortSegments,
	}
}

// GuessTable resolves the port guesses. Entries naming unknown protocols are
// skipped; Validate reports them.
func (c Config) GuessTable() map[uint16]protocol.ID {
	table := make(map[uint16]protocol.ID, len(c.Guesses))
	for _, g := range c.Guesses {
		id, ok := protocol.Lookup(g.Protocol)
		if !ok || id == protocol.Unknown || g.Port == 0 {
			continue
		}
		table[g.Port] = id
	}
	return table
}
