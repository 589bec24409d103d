// Package api serves the meetscribe HTTP and WebSocket surface.
//
// Routes:
//
//	GET  /api/status            server and provider status
//	GET  /api/audio-devices     input devices and the current selection
//	POST /api/audio-device      select the device for the next meeting
//	POST /api/meeting/start     start a meeting (form: title, participants)
//	POST /api/meeting/stop      stop the active meeting
//	GET  /api/meeting/status    live status of the current meeting
//	POST /api/meeting/recover   retry persisting unsaved meetings
//	GET  /api/meetings          list stored meetings
//	GET  /api/meetings/similar  stored meetings closest to ?q= by embedding
//	GET  /api/meetings/{id}     one stored meeting with segments
//	POST /api/transcribe        transcribe an uploaded WAV file
//	POST /api/summarize         summarize posted text
//	GET  /ws                    live status envelopes
//	GET  /metrics, /healthz, /readyz
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/meetscribe/internal/broadcast"
	"github.com/MrWong99/meetscribe/internal/health"
	"github.com/MrWong99/meetscribe/internal/meeting"
	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/internal/summarize"
	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/memory"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// defaultMaxUpload caps /api/transcribe request bodies.
const defaultMaxUpload = 512 << 20

// Meetings is the meeting lifecycle the API drives. *meeting.Orchestrator
// implements it.
type Meetings interface {
	Start(ctx context.Context, title string, participants []string) (meeting.StartResult, error)
	Stop(ctx context.Context) (meeting.StopResult, error)
	Status() meeting.Status
	Recovered() []types.MeetingRecord
	RetryRecovered(ctx context.Context) (int, error)
	SetInputDevice(device string)
	InputDevice() string
}

var _ Meetings = (*meeting.Orchestrator)(nil)

// ProviderInfo names the configured providers for /api/status.
type ProviderInfo struct {
	STT []string `json:"stt"`
	LLM string   `json:"llm"`
}

// Config holds the dependencies of a [Server]. Meetings and Backend are
// required; every other field is optional and disables its routes' work
// (they answer 503) when nil.
type Config struct {
	Meetings    Meetings
	Backend     audio.Backend
	Transcriber stt.FileTranscriber
	Summarizer  summarize.Summarizer
	Archive     memory.MeetingStore
	Registry    *broadcast.Registry
	Health      *health.Handler
	Metrics     *observe.Metrics
	Providers   ProviderInfo

	// AllowedOrigins feeds both CORS and the WebSocket origin check.
	// Empty allows same-origin requests only for WebSockets and any origin
	// for CORS.
	AllowedOrigins []string

	// MaxUploadBytes caps uploaded audio. Default 512 MiB.
	MaxUploadBytes int64

	// Version is reported by /api/status.
	Version string
}

// Server routes HTTP requests to the meeting pipeline.
type Server struct {
	cfg    Config
	router chi.Router
}

// New builds the router.
func New(cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.Registry == nil {
		cfg.Registry = broadcast.NewRegistry(broadcast.WithMetrics(cfg.Metrics))
	}
	s := &Server{cfg: cfg}
	s.router = s.routes()
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	}))

	s.cfg.Health.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Method(http.MethodGet, "/ws", broadcast.WSHandler(s.cfg.Registry, s.cfg.AllowedOrigins, s.sendSnapshot))

	r.Route("/api", func(api chi.Router) {
		api.Get("/status", s.handleStatus)
		api.Get("/audio-devices", s.handleDevices)
		api.Post("/audio-device", s.handleSelectDevice)

		api.Route("/meeting", func(m chi.Router) {
			m.Post("/start", s.handleStart)
			m.Post("/stop", s.handleStop)
			m.Get("/status", s.handleMeetingStatus)
			m.Post("/recover", s.handleRecover)
		})
		api.Get("/meetings", s.handleListMeetings)
		api.Get("/meetings/similar", s.handleSimilarMeetings)
		api.Get("/meetings/{id}", s.handleGetMeeting)

		api.Post("/transcribe", s.handleTranscribe)
		api.Post("/summarize", s.handleSummarize)
	})
	return r
}

// sendSnapshot greets a new WebSocket observer with the current status.
func (s *Server) sendSnapshot(ctx context.Context, obs broadcast.Observer) {
	payload, err := encodeEnvelope(broadcast.TypeUpdate, s.cfg.Meetings.Status())
	if err != nil {
		return
	}
	if err := obs.Send(ctx, payload); err != nil {
		slog.Debug("api: initial snapshot not delivered", "err", err)
	}
}
