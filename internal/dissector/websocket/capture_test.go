package websocket

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/wsdpi/internal/classifier"
	"github.com/danmuck/wsdpi/internal/protocol/frame"
	"github.com/danmuck/wsdpi/internal/testutil/testlog"
	gws "github.com/gorilla/websocket"
)

// recordingConn keeps every byte the client writes.
type recordingConn struct {
	net.Conn
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *recordingConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.buf.Write(p)
	c.mu.Unlock()
	return c.Conn.Write(p)
}

func (c *recordingConn) written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf.Bytes()...)
}

// Drives a real client against a real server and classifies the bytes the
// client put on the wire: the upgrade request is rejected, the first masked
// client frame matches.
func TestClassifyCapturedClientTraffic(t *testing.T) {
	testlog.Start(t)

	upgrader := gws.Upgrader{}
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err == nil {
			received <- string(msg)
		}
	}))
	defer srv.Close()

	var rec *recordingConn
	dialer := gws.Dialer{
		NetDial: func(network, addr string) (net.Conn, error) {
			c, err := net.Dial(network, addr)
			if err != nil {
				return nil, err
			}
			rec = &recordingConn{Conn: c}
			return rec, nil
		},
	}

	conn, resp, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.Body != nil {
		resp.Body.Close()
	}

	handshake := rec.written()
	if err := conn.WriteMessage(gws.TextMessage, []byte("Hello")); err != nil {
		t.Fatalf("write message: %v", err)
	}
	if got := <-received; got != "Hello" {
		t.Fatalf("server received %q", got)
	}
	frameBytes := rec.written()[len(handshake):]

	c := classifier.New(classifier.DefaultOptions())

	v := c.Classify(handshake, 1)
	if !v.IsReject() {
		t.Fatalf("upgrade request should be rejected, got %v", v)
	}
	testlog.Logf("dissector/websocket: upgrade request %q -> %v", handshake[:3], v)

	v = c.Classify(frameBytes, 1)
	if !v.IsMatch() {
		t.Fatalf("client frame %x should match, got %v", frameBytes, v)
	}
	want := frame.Header{Fin: true, Opcode: frame.OpcodeText, Masked: true, PayloadLen7: 5}
	if v.Header != want {
		t.Fatalf("header mismatch: got=%+v want=%+v", v.Header, want)
	}
	testlog.Logf("dissector/websocket: captured client frame -> %v", v)

	// The base header alone is not enough for a masked frame.
	if v := c.Classify(frameBytes[:2], 1); !v.IsReject() {
		t.Fatalf("masked header without key region should be rejected, got %v", v)
	}
}
