package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"songd/internal/lm"
	"songd/internal/pipeline"
	"songd/pkg/types"
)

// Generator is the music pipeline surface the front-end invokes.
type Generator interface {
	Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error
}

// Lyricist is the language-model surface the front-end invokes.
type Lyricist interface {
	Complete(ctx context.Context, req types.LyricsRequest, w io.Writer, flush func()) error
}

// Options tunes the front-end. Zero values fall back to defaults.
type Options struct {
	QueueCapacity int
	MaxWait       time.Duration
	CORSOrigins   []string
	MaxBodyBytes  int64
	Logger        zerolog.Logger
}

// Server is the interactive session front-end. It is constructed from
// exactly one readiness record plus the two live model handlers, passed by
// reference; the record is read-only configuration here.
type Server struct {
	rec *types.ReadinessRecord
	gen Generator
	lyr Lyricist
	adm *admission

	log          zerolog.Logger
	corsOrigins  []string
	maxBodyBytes int64
	startTime    time.Time
	baseCtx      context.Context
}

// New builds a Server from the readiness record and the handler instances
// the coordinator initialized.
func New(rec *types.ReadinessRecord, gen Generator, lyr Lyricist, opts Options) *Server {
	mb := opts.MaxBodyBytes
	if mb <= 0 {
		mb = 1 << 20
	}
	return &Server{
		rec:          rec,
		gen:          gen,
		lyr:          lyr,
		adm:          newAdmission(opts.QueueCapacity, opts.MaxWait),
		log:          opts.Logger,
		corsOrigins:  opts.CORSOrigins,
		maxBodyBytes: mb,
		startTime:    time.Now(),
		baseCtx:      context.Background(),
	}
}

// ConfigureAdmission replaces the admission queue with one of the given
// capacity. Must be called before the server is exposed on the network.
func (s *Server) ConfigureAdmission(capacity int, maxWait time.Duration) {
	s.adm = newAdmission(capacity, maxWait)
}

// SetBaseContext installs a process-level context; canceling it (on
// shutdown) also cancels in-flight streaming handlers.
func (s *Server) SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.baseCtx = ctx
}

// Handler builds the chi mux with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	r.Use(requestLogger(s.log))
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/status", s.handleStatus)
	r.Post("/generate", s.handleGenerate)
	r.Post("/lyrics", s.handleLyrics)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// The server exists only once a readiness record was produced, so
		// /readyz answers 200 even in degraded mode; the body says which.
		w.WriteHeader(http.StatusOK)
		if s.rec.GenerationEnabled {
			w.Write([]byte("ready"))
			return
		}
		w.Write([]byte("degraded"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := types.StatusResponse{
		Readiness:      *s.rec,
		Queue:          s.adm.status(),
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !s.rec.GenerationEnabled {
		writeJSONError(w, http.StatusServiceUnavailable, "generation disabled: music pipeline failed to initialize (see /status)")
		return
	}
	var req types.GenerateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	s.streamNDJSON(w, r, func(ctx context.Context, sw io.Writer, flush func()) error {
		return s.gen.Generate(ctx, req, sw, flush)
	})
}

func (s *Server) handleLyrics(w http.ResponseWriter, r *http.Request) {
	var req types.LyricsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	s.streamNDJSON(w, r, func(ctx context.Context, sw io.Writer, flush func()) error {
		return s.lyr.Complete(ctx, req, sw, flush)
	})
}

// decodeJSON enforces content type and body limits, then decodes into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// streamNDJSON runs fn under admission control and streams its NDJSON output.
func (s *Server) streamNDJSON(w http.ResponseWriter, r *http.Request, fn func(context.Context, io.Writer, func()) error) {
	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(s.baseCtx, r.Context())
	defer cancel()

	release, err := s.adm.acquire(ctx)
	if err != nil {
		if IsTooBusy(err) {
			IncrementBackpressure("queue_full")
			writeJSONError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		// context canceled while queued
		return
	}
	defer release()

	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	if err := fn(ctx, w, flush); err != nil {
		// If context was canceled (client disconnect or shutdown), just return.
		if ctx.Err() != nil {
			return
		}
		s.writeServiceError(w, err)
	}
}

// writeServiceError maps well-known handler errors to HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case pipeline.IsGenerationDisabled(err), lm.IsNotInitialized(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case pipeline.IsRuntimeUnavailable(err), lm.IsBackendUnavailable(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case IsTooBusy(err):
		IncrementBackpressure("handler")
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	default:
		if he, ok := err.(HTTPError); ok {
			writeJSONError(w, he.StatusCode(), he.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// joinContexts returns a context that is canceled when either a or b is done.
// The returned cancel func must be called to release the goroutine when handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		}
	}()
	return ctx, cancel
}
