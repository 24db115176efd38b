package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/vault-geometry-mcp/internal/bayplan"
	"github.com/ironsheep/vault-geometry-mcp/internal/config"
	"github.com/ironsheep/vault-geometry-mcp/internal/imaging"
	"github.com/ironsheep/vault-geometry-mcp/internal/pipeline"
	"github.com/ironsheep/vault-geometry-mcp/internal/project"
	"github.com/ironsheep/vault-geometry-mcp/internal/report"
	"github.com/ironsheep/vault-geometry-mcp/internal/worker"
)

// ServerName is reported in the initialize handshake.
const ServerName = "vault-geometry-mcp"

// Server handles MCP protocol communication
type Server struct {
	cfg      *config.Config
	version  string
	logger   *zap.SugaredLogger
	cache    *imaging.ImageCache
	store    *project.Store
	roi      *pipeline.ROIStage
	matching *pipeline.MatchingStage
	bayplan  *bayplan.Service
	report   *report.Service
	pool     *worker.Pool
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

// New creates a server over the data directory named in cfg. A nil cfg uses the
// defaults and a nil logger discards output.
func New(cfg *config.Config, version string, logger *zap.SugaredLogger) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cache := imaging.NewImageCache()
	store := project.New(cfg.DataDir, cache, logger.Named("store"))
	return &Server{
		cfg:      cfg,
		version:  version,
		logger:   logger,
		cache:    cache,
		store:    store,
		roi:      pipeline.NewROIStage(store, logger.Named("roi")),
		matching: pipeline.NewMatchingStage(store, logger.Named("matching")),
		bayplan:  bayplan.NewService(store, logger.Named("bayplan")),
		report:   report.NewService(store, version, logger.Named("report")),
		pool:     worker.New(cfg.Workers),
	}
}

// Run reads one JSON-RPC request per line from in and writes responses to out until
// in is exhausted or ctx ends.
//
// tools/call requests are served on their own goroutines so a long computation never
// holds up the read loop; their responses may arrive out of order. Every other method
// is answered inline. Run waits for in-flight calls before it returns.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	w := &responseWriter{enc: json.NewEncoder(out), logger: s.logger}
	var inflight sync.WaitGroup
	defer inflight.Wait()

	s.logger.Infow("Serving MCP over stdio", "data_dir", s.cfg.DataDir, "workers", s.pool.Size())

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		req := &MCPRequest{}
		if err := json.Unmarshal(line, req); err != nil {
			s.logger.Warnw("Failed to parse request", "error", err)
			continue
		}

		if req.Method == "tools/call" {
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				w.write(req.Method, s.handleRequest(ctx, req))
			}()
			continue
		}
		w.write(req.Method, s.handleRequest(ctx, req))
	}

	return errors.Wrap(scanner.Err(), "scanner error")
}

// responseWriter serialises responses from concurrent handlers onto one stream.
type responseWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	logger *zap.SugaredLogger
}

func (w *responseWriter) write(method string, resp *MCPResponse) {
	if resp == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(resp); err != nil {
		w.logger.Errorw("Failed to encode response", "method", method, "error", err)
	}
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return s.errorResponse(req.ID, -32601, "Method not found: "+req.Method, nil)
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    ServerName,
				"version": s.version,
			},
		},
	}
}
