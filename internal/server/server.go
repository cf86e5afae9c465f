package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ironsheep/omr-grader/internal/imaging"
	"github.com/ironsheep/omr-grader/internal/logging"
	"github.com/ironsheep/omr-grader/internal/omr"
	"github.com/ironsheep/omr-grader/internal/store"
)

const (
	serverName      = "omr-grader"
	protocolVersion = "2024-11-05"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// Server handles MCP protocol communication.
type Server struct {
	cache   *imaging.ImageCache
	store   *store.Store
	grader  *omr.Grader
	log     zerolog.Logger
	version string

	// region is the calibrated answer region, nil until calibrated. It is
	// replaced as a whole on recalibration and never mutated in place.
	region atomic.Pointer[omr.Region]
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = logging.Component(l, "server") }
}

// WithVersion sets the version reported by initialize.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a server backed by st. The grader supplies the detection
// parameters; each exam grades with its own scoring policy. A region saved
// by an earlier calibration is loaded from the store.
func New(st *store.Store, g *omr.Grader, opts ...Option) (*Server, error) {
	s := &Server{
		cache:   imaging.NewImageCache(),
		store:   st,
		grader:  g,
		log:     zerolog.Nop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	r, err := st.LoadRegion()
	switch {
	case err == nil:
		s.region.Store(r)
		s.log.Info().Int("x1", r.X1).Int("y1", r.Y1).Int("x2", r.X2).Int("y2", r.Y2).Msg("loaded calibrated region")
	case errors.Is(err, store.ErrNotFound):
		s.log.Warn().Msg("answer region not calibrated yet")
	default:
		return nil, fmt.Errorf("failed to load region: %w", err)
	}
	return s, nil
}

// Region returns the current calibrated region or nil.
func (s *Server) Region() *omr.Region {
	return s.region.Load()
}

// Run serves MCP requests on stdin and writes responses to stdout.
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from in and writes responses to
// out until in is exhausted. Requests are handled sequentially.
func (s *Server) Serve(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	// Graded results and previews can be large.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp *MCPResponse
		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Error().Err(err).Msg("failed to parse request")
			resp = s.errorResponse(nil, codeParseError, "Parse error", err.Error())
		} else {
			resp = s.handleRequest(&req)
		}

		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				return fmt.Errorf("failed to encode response: %w", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	s.log.Debug().Str("method", req.Method).Interface("id", req.ID).Msg("request")

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return s.errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), "")
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    serverName,
				"version": s.version,
			},
		},
	}
}

func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	e := &MCPError{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   e,
	}
}
