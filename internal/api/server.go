// Package api serves the JSON resource API over a swap engine.
package api

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/klingon-exchange/swapapi/internal/apierr"
	"github.com/klingon-exchange/swapapi/internal/coins"
	"github.com/klingon-exchange/swapapi/internal/engine"
	"github.com/klingon-exchange/swapapi/internal/filter"
	"github.com/klingon-exchange/swapapi/internal/request"
	"github.com/klingon-exchange/swapapi/pkg/logging"
)

// PathPrefix is the mount point of the resource API.
const PathPrefix = "/json"

// MaxBodySize bounds request bodies.
const MaxBodySize = 1 << 20

// Handler serves one resource family.
type Handler func(ctx context.Context, req *Request) (interface{}, error)

// Request is a decoded resource request. Seg3 and Seg4 are the path
// segments following the resource name; either may be empty.
type Request struct {
	Method   string
	Resource string
	Seg3     string
	Seg4     string
	Body     string
	IsJSON   bool
}

// HasBody reports whether the request carried a body or query string.
func (r *Request) HasBody() bool { return r.Body != "" }

// Payload decodes the body.
func (r *Request) Payload() (*request.Payload, error) {
	return request.Decode(r.Body, r.IsJSON)
}

// requirePost rejects operations with side effects unless they arrive as a
// POST. A GET only ever reads.
func (r *Request) requirePost(op string) error {
	if r.Method != http.MethodPost {
		return apierr.MalformedInput("%s requires POST", op)
	}
	return nil
}

// Options configures the server.
type Options struct {
	PageLimit        int
	StrictCoinFilter bool
	CORSOrigins      []string
}

// Server is the JSON API server.
type Server struct {
	engine  engine.Engine
	coins   coins.Registry
	filters *filter.Builder
	log     *logging.Logger
	wsHub   *WSHub
	router  *mux.Router
	handler http.Handler

	server   *http.Server
	listener net.Listener

	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewServer creates a server over eng and starts its event hub.
func NewServer(eng engine.Engine, reg coins.Registry, opts Options) *Server {
	s := &Server{
		engine:   eng,
		coins:    reg,
		filters:  filter.NewBuilder(reg, opts.PageLimit, opts.StrictCoinFilter),
		log:      logging.GetDefault().Component("api"),
		wsHub:    NewWSHub(),
		router:   mux.NewRouter(),
		handlers: make(map[string]Handler),
	}

	s.registerHandlers()
	s.setupRoutes()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         86400,
	})
	s.handler = c.Handler(s.logRequests(s.router))

	go s.wsHub.Run()

	return s
}

// registerHandlers registers all resource handlers.
func (s *Server) registerHandlers() {
	s.handlers["wallets"] = s.handleWallets
	s.handlers["offers"] = s.handleOffers
	s.handlers["sentoffers"] = s.handleSentOffers
	s.handlers["bids"] = s.handleBids
	s.handlers["sentbids"] = s.handleSentBids
	s.handlers["network"] = s.handleNetwork
	s.handlers["revokeoffer"] = s.handleRevokeOffer
	s.handlers["index"] = s.handleIndex
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc(PathPrefix, s.handleJSON).Methods(http.MethodGet, http.MethodPost)
	s.router.PathPrefix(PathPrefix + "/").HandlerFunc(s.handleJSON).Methods(http.MethodGet, http.MethodPost)

	s.router.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

// Start starts serving on addr.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("API server error", "error", err)
		}
	}()

	s.log.Info("API server started", "addr", listener.Addr().String(), "ws", "ws://"+listener.Addr().String()+"/ws")
	return nil
}

// Addr returns the listen address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server and its event hub down.
func (s *Server) Stop() error {
	s.wsHub.Stop()
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleJSON dispatches /json/{resource}/{seg3}/{seg4} to its handler.
func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Resource]
	s.mu.RUnlock()

	if !ok {
		s.writeError(w, r, apierr.UnknownCommand(req.Resource))
		return
	}

	result, err := handler(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// readRequest splits the path and reads the body. A GET without a body uses
// its query string as a form body.
func readRequest(w http.ResponseWriter, r *http.Request) (*Request, error) {
	rest := strings.TrimPrefix(r.URL.Path, PathPrefix)
	parts := strings.Split(strings.TrimPrefix(rest, "/"), "/")

	req := &Request{Method: r.Method, Resource: parts[0]}
	if req.Resource == "" {
		req.Resource = "index"
	}
	if len(parts) > 1 {
		req.Seg3 = parts[1]
	}
	if len(parts) > 2 {
		req.Seg4 = parts[2]
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		return nil, apierr.MalformedInput("failed to read body: %v", err)
	}
	req.Body = string(body)

	if req.Body == "" {
		// Query strings stand in for a body on reads only.
		if r.Method == http.MethodGet {
			req.Body = r.URL.RawQuery
		}
	} else {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		req.IsJSON = mediaType == "application/json"
	}

	return req, nil
}
