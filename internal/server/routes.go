package server

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/danmuck/wsdpi/internal/classifier"
	"github.com/danmuck/wsdpi/internal/flow"
	"github.com/danmuck/wsdpi/internal/protocol/frame"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxPayloadHex bounds a submitted segment; the classifier never needs more
// than the first few bytes.
const maxPayloadHex = 2 * 64 * 1024

// maxBodyBytes caps a JSON request body: one maximal payload plus room for
// the addresses and field names.
const maxBodyBytes = maxPayloadHex + 1024

type classifyRequest struct {
	PayloadHex string `json:"payload_hex"`
	Attempt    int    `json:"attempt"`
}

type segmentRequest struct {
	Src        string `json:"src"`
	Dst        string `json:"dst"`
	PayloadHex string `json:"payload_hex"`
}

type verdictResponse struct {
	Outcome  string        `json:"outcome"`
	Terminal bool          `json:"terminal"`
	Reason   string        `json:"reason,omitempty"`
	Error    string        `json:"error,omitempty"`
	Header   *frame.Header `json:"header,omitempty"`
}

func newVerdictResponse(v classifier.Verdict) verdictResponse {
	out := verdictResponse{
		Outcome:  v.Outcome.String(),
		Terminal: v.Terminal(),
		Reason:   classifier.ReasonLabel(v.Reason),
	}
	if v.Reason != nil {
		out.Error = v.Reason.Error()
	}
	if v.Decoded {
		h := v.Header
		out.Header = &h
	}
	return out
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": "0.1.0",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/dissectors", func(c *gin.Context) {
		entries := s.engine.Registry().All()
		out := make([]gin.H, 0, len(entries))
		for _, e := range entries {
			out = append(out, gin.H{
				"index":     e.Index(),
				"name":      e.Name,
				"id":        e.ID,
				"selection": e.Selection.String(),
				"enabled":   s.engine.Registry().Enabled(e.ID),
			})
		}
		c.JSON(http.StatusOK, gin.H{"dissectors": out})
	})

	s.router.POST("/dissectors/:name/:action", func(c *gin.Context) {
		var enabled bool
		switch c.Param("action") {
		case "enable":
			enabled = true
		case "disable":
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown action " + c.Param("action")})
			return
		}
		e, err := s.engine.SetDissectorEnabled(c.Param("name"), enabled)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"name": e.Name, "id": e.ID, "enabled": enabled})
	})

	s.router.POST("/classify", func(c *gin.Context) {
		var req classifyRequest
		if !bindJSON(c, &req) {
			return
		}
		payload, err := decodePayload(req.PayloadHex)
		if err != nil {
			badRequest(c, err)
			return
		}
		if req.Attempt == 0 {
			req.Attempt = 1
		}
		c.JSON(http.StatusOK, newVerdictResponse(s.engine.Classify(payload, req.Attempt)))
	})

	s.router.POST("/segments", func(c *gin.Context) {
		var req segmentRequest
		if !bindJSON(c, &req) {
			return
		}
		src, err := netip.ParseAddrPort(strings.TrimSpace(req.Src))
		if err != nil {
			badRequest(c, fmt.Errorf("src: %w", err))
			return
		}
		dst, err := netip.ParseAddrPort(strings.TrimSpace(req.Dst))
		if err != nil {
			badRequest(c, fmt.Errorf("dst: %w", err))
			return
		}
		payload, err := decodePayload(req.PayloadHex)
		if err != nil {
			badRequest(c, err)
			return
		}
		snap, err := s.engine.Deliver(src, dst, payload)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, flow.ErrFlowTableFull) {
				status = http.StatusServiceUnavailable
			}
			_ = c.Error(err)
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	s.router.GET("/flows", func(c *gin.Context) {
		src, dst := c.Query("src"), c.Query("dst")
		if src == "" && dst == "" {
			c.JSON(http.StatusOK, gin.H{"flows": s.engine.Flows()})
			return
		}
		srcAddr, err := netip.ParseAddrPort(strings.TrimSpace(src))
		if err != nil {
			badRequest(c, fmt.Errorf("src: %w", err))
			return
		}
		dstAddr, err := netip.ParseAddrPort(strings.TrimSpace(dst))
		if err != nil {
			badRequest(c, fmt.Errorf("dst: %w", err))
			return
		}
		snap, ok := s.engine.Flow(srcAddr, dstAddr)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "flow not tracked"})
			return
		}
		c.JSON(http.StatusOK, snap)
	})
}

// bindJSON decodes a size-capped body into out and writes the error response
// when that fails.
func bindJSON(c *gin.Context, out any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(err)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("request body larger than %d bytes", maxBodyBytes)})
			return false
		}
		badRequest(c, err)
		return false
	}
	return true
}

func decodePayload(raw string) ([]byte, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if len(raw) > maxPayloadHex {
		return nil, fmt.Errorf("payload_hex longer than %d characters", maxPayloadHex)
	}
	payload, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("payload_hex: %w", err)
	}
	return payload, nil
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
