package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/danmuck/wsdpi/internal/engine"
	"github.com/danmuck/wsdpi/internal/flow"
	"github.com/danmuck/wsdpi/internal/protocol"
)

// replay feeds lines of "<src ip:port> <dst ip:port> <hex payload>" into eng
// and writes the final state of every flow to out.
func replay(eng *engine.Engine, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return fmt.Errorf("line %d: want <src> <dst> [hex payload]", lineNo)
		}
		src, err := netip.ParseAddrPort(fields[0])
		if err != nil {
			return fmt.Errorf("line %d: src: %w", lineNo, err)
		}
		dst, err := netip.ParseAddrPort(fields[1])
		if err != nil {
			return fmt.Errorf("line %d: dst: %w", lineNo, err)
		}
		payload, err := hex.DecodeString(strings.Join(fields[2:], ""))
		if err != nil {
			return fmt.Errorf("line %d: payload: %w", lineNo, err)
		}
		if _, err := eng.Deliver(src, dst, payload); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	for _, snap := range eng.Flows() {
		fmt.Fprintln(out, formatSnapshot(snap))
	}
	return nil
}

func formatSnapshot(s flow.Snapshot) string {
	state := "unclassified"
	switch {
	case s.Detected != protocol.Unknown:
		state = "detected=" + s.DetectedAs
		if s.Master != protocol.Unknown {
			state += "." + s.Master.String()
		}
	case len(s.Excluded) > 0:
		names := make([]string, 0, len(s.Excluded))
		for _, id := range s.Excluded {
			names = append(names, id.String())
		}
		state = "excluded=" + strings.Join(names, ",")
	}
	return fmt.Sprintf("%s packets=%d %s", s.Key, s.Packets, state)
}
