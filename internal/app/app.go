// Package app wires all meetscribe subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and the live status loop until the context is
// cancelled, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithPublisher, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/meetscribe/internal/api"
	"github.com/MrWong99/meetscribe/internal/broadcast"
	"github.com/MrWong99/meetscribe/internal/capture"
	"github.com/MrWong99/meetscribe/internal/config"
	"github.com/MrWong99/meetscribe/internal/health"
	"github.com/MrWong99/meetscribe/internal/meeting"
	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/internal/resilience"
	"github.com/MrWong99/meetscribe/internal/summarize"
	"github.com/MrWong99/meetscribe/internal/transcript"
	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/memory"
	"github.com/MrWong99/meetscribe/pkg/memory/file"
	"github.com/MrWong99/meetscribe/pkg/memory/postgres"
	"github.com/MrWong99/meetscribe/pkg/provider/embeddings"
	"github.com/MrWong99/meetscribe/pkg/provider/llm"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
)

// shutdownGrace bounds the HTTP server drain once Run's context ends.
const shutdownGrace = 10 * time.Second

// NamedSTT is a speech provider together with its configured name.
type NamedSTT struct {
	Name     string
	Provider stt.Provider
}

// Providers holds the engines built from the config registry. Nil means the
// slot is not configured. Populated by main.go.
type Providers struct {
	// STT is the primary speech engine; STTFallbacks are tried in order when
	// it fails.
	STT          NamedSTT
	STTFallbacks []NamedSTT

	LLM     llm.Provider
	LLMName string

	// Embeddings enables semantic search when the archive is PostgreSQL.
	// Optional.
	Embeddings embeddings.Provider

	// Audio is the capture backend. Required.
	Audio audio.Backend
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	version   string

	// Subsystems, initialised in New and torn down in Shutdown.
	speech     *resilience.STTFallback
	summarizer summarize.Summarizer
	primary    memory.MeetingStore
	primaryID  string
	fallback   memory.MeetingStore
	orch       *meeting.Orchestrator
	registry   *broadcast.Registry
	publisher  broadcast.Publisher
	loop       *broadcast.Loop
	checks     []health.Checker
	server     *http.Server

	configPath string
	logLevel   *slog.LevelVar

	// closers run in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects the primary meeting store instead of creating one from
// storage.postgres_dsn. The file store under storage.fallback_dir still backs
// it up.
func WithStore(name string, s memory.MeetingStore) Option {
	return func(a *App) { a.primary, a.primaryID = s, name }
}

// WithPublisher injects the Redis publisher used for status fan-out instead
// of dialling broadcast.redis.addr.
func WithPublisher(p broadcast.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithConfigPath enables hot reload: Run watches path and applies log level,
// broadcast interval and audio device changes without a restart.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithLogLevel hands the App the level variable behind the process logger so
// hot reload can change it.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithVersion sets the version reported by /api/status.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// New performs all initialisation synchronously: store connection, engine
// assembly, orchestrator construction, broadcast fan-out and the HTTP router.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Audio == nil {
		return nil, errors.New("app: an audio backend is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Meeting stores ────────────────────────────────────────────────
	if err := a.initStores(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init stores: %w", err)
	}

	// ── 2. Engines ───────────────────────────────────────────────────────
	a.initEngines()

	// ── 3. Broadcast ─────────────────────────────────────────────────────
	if err := a.initBroadcast(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init broadcast: %w", err)
	}

	// ── 4. Orchestrator ──────────────────────────────────────────────────
	a.initOrchestrator()

	// ── 5. HTTP ──────────────────────────────────────────────────────────
	a.initServer()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStores opens PostgreSQL when a DSN is configured and always keeps a
// file store: as the fallback behind PostgreSQL, or as the primary store
// when there is none.
func (a *App) initStores(ctx context.Context) error {
	files, err := file.New(a.cfg.Storage.FallbackDir)
	if err != nil {
		return err
	}

	if a.primary == nil && a.cfg.Storage.PostgresDSN != "" {
		var opts []postgres.Option
		if e := a.providers.Embeddings; e != nil {
			opts = append(opts, postgres.WithEmbedder(e))
			slog.Info("semantic search enabled", "model", e.ModelID(), "dimensions", e.Dimensions())
		}
		pg, err := postgres.NewStore(ctx, a.cfg.Storage.PostgresDSN, opts...)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		a.checks = append(a.checks, health.PingCheck("postgres", pg))
		a.primary, a.primaryID = pg, "postgres"
	}

	if a.primary == nil {
		a.primary, a.primaryID = files, "file"
		slog.Info("meeting store ready", "store", "file", "dir", files.Dir())
		return nil
	}
	a.fallback = files
	slog.Info("meeting store ready", "store", a.primaryID, "fallback_dir", files.Dir())
	return nil
}

// initEngines wraps the speech providers in a failover group and builds the
// summarizer.
func (a *App) initEngines() {
	a.speech = Speech(a.providers)
	if a.speech != nil {
		slog.Info("speech engines ready", "order", a.speech.Names())
	}
	a.summarizer = Summarizer(a.cfg.Meeting, a.providers)
}

// breakerConfig logs every provider circuit transition.
var breakerConfig = resilience.FallbackConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
	OnStateChange: func(name string, from, to resilience.State) {
		slog.Warn("provider circuit changed", "provider", name, "from", from, "to", to)
	},
}}

// Speech returns a failover group over the primary speech provider and its
// fallbacks, or nil when no speech provider is configured.
func Speech(p *Providers) *resilience.STTFallback {
	if p == nil || p.STT.Provider == nil {
		return nil
	}
	fb := resilience.NewSTTFallback(p.STT.Provider, p.STT.Name, breakerConfig)
	for _, e := range p.STTFallbacks {
		if e.Provider != nil {
			fb.AddFallback(e.Name, e.Provider)
		}
	}
	return fb
}

// Summarizer returns an LLM summarizer tuned by mc, or nil when no LLM is
// configured.
func Summarizer(mc config.MeetingConfig, p *Providers) summarize.Summarizer {
	if p == nil || p.LLM == nil {
		return nil
	}
	var opts []summarize.Option
	if t := mc.SummaryTemperature; t > 0 {
		opts = append(opts, summarize.WithTemperature(t))
	}
	if n := mc.SummaryMaxTokens; n > 0 {
		opts = append(opts, summarize.WithMaxTokens(n))
	}
	return summarize.NewLLMSummarizer(resilience.NewLLMFallback(p.LLM, p.LLMName, breakerConfig), opts...)
}

// initBroadcast creates the observer registry and, when configured, the Redis
// observer.
func (a *App) initBroadcast(ctx context.Context) error {
	bc := a.cfg.Broadcast
	a.registry = broadcast.NewRegistry(
		broadcast.WithSendTimeout(bc.SendTimeout),
		broadcast.WithMetrics(a.metrics),
	)
	a.closers = append(a.closers, a.registry.Close)

	if a.publisher == nil && bc.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     bc.Redis.Addr,
			Password: bc.Redis.Password,
			DB:       bc.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("connect to redis at %s: %w", bc.Redis.Addr, err)
		}
		a.closers = append(a.closers, client.Close)
		a.checks = append(a.checks, health.Checker{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
		a.publisher = client
	}
	if a.publisher != nil {
		a.registry.RegisterPersistent(broadcast.NewRedisObserver(a.publisher, bc.Redis.Channel))
		slog.Info("redis status fan-out enabled", "channel", bc.Redis.Channel)
	}

	a.loop = broadcast.NewLoop(broadcast.LoopConfig{
		Registry:       a.registry,
		Source:         a.statusSource,
		ActiveInterval: bc.ActiveInterval,
		IdleInterval:   bc.IdleInterval,
	})
	return nil
}

// initOrchestrator builds the meeting state machine on top of the stores,
// engines and registry.
func (a *App) initOrchestrator() {
	ac, mc, sc := a.cfg.Audio, a.cfg.Meeting, a.cfg.Storage

	opts := []meeting.Option{
		meeting.WithStore(a.primaryID, a.primary),
		meeting.WithMetrics(a.metrics),
		meeting.WithEvents(a.onMeetingEvent),
	}
	if a.fallback != nil {
		opts = append(opts, meeting.WithFallbackStore("file", a.fallback))
	}
	if a.speech != nil {
		opts = append(opts,
			meeting.WithStreamOpener(meeting.STTStreamOpener(a.speech, stt.StreamConfig{
				SampleRate: ac.SampleRate,
				Channels:   1,
				Language:   mc.Language,
			})),
			meeting.WithFileTranscriber(a.speech),
		)
	}
	if a.summarizer != nil {
		opts = append(opts, meeting.WithSummarizer(a.summarizer))
	}
	if !mc.SkipNameCorrection {
		opts = append(opts, meeting.WithNameCorrector(transcript.New()))
	}

	a.orch = meeting.New(meeting.Config{
		Capture: capture.Config{
			Device:                ac.Device,
			SampleRate:            ac.SampleRate,
			Channels:              ac.Channels,
			FramesPerBuffer:       ac.FramesPerBuffer,
			OverflowWarnThreshold: ac.OverflowWarnThreshold,
			JoinTimeout:           ac.JoinTimeout,
		},
		RecordingsDir: mc.RecordingsDir,
		QueueDepth:    mc.QueueDepth,
		DispatchGrace: mc.DispatchGrace,
		Persist: resilience.RetryConfig{
			MaxAttempts: sc.MaxRetries,
			BaseDelay:   sc.RetryBaseDelay,
			MaxDelay:    sc.RetryMaxDelay,
			OnRetry: func(attempt int, err error, wait time.Duration) {
				slog.Warn("meeting save failed, retrying", "attempt", attempt, "wait", wait, "err", err)
			},
		},
	}, a.providers.Audio, opts...)
}

// initServer builds the API router and the HTTP server around it.
func (a *App) initServer() {
	info := api.ProviderInfo{LLM: a.providers.LLMName}
	var transcriber stt.FileTranscriber
	if a.speech != nil {
		info.STT = a.speech.Names()
		transcriber = a.speech
	}

	checks := append(slices.Clone(a.checks), health.AudioCheck(a.providers.Audio))
	handler := api.New(api.Config{
		Meetings:       a.orch,
		Backend:        a.providers.Audio,
		Transcriber:    transcriber,
		Summarizer:     a.summarizer,
		Archive:        a.primary,
		Registry:       a.registry,
		Health:         health.New(checks...),
		Metrics:        a.metrics,
		Providers:      info,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Version:        a.version,
	})
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Orchestrator returns the meeting state machine.
func (a *App) Orchestrator() *meeting.Orchestrator { return a.orch }

// Registry returns the status observer registry.
func (a *App) Registry() *broadcast.Registry { return a.registry }

// Loop returns the live status loop. Run drives it; commands that do not
// serve HTTP may run it themselves.
func (a *App) Loop() *broadcast.Loop { return a.loop }

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler { return a.server.Handler }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP, runs the status loop and, with [WithConfigPath], the
// config watcher. It blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.server.Addr, "tls", a.cfg.Server.TLS.Enabled())
		var err error
		if tls := a.cfg.Server.TLS; tls.Enabled() {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownGrace)
		defer cancel()
		if err := a.server.Shutdown(sctx); err != nil {
			slog.Warn("http server shutdown", "err", err)
		}
		return nil
	})

	g.Go(func() error { return a.loop.Run(gctx) })

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyConfig)
		if err != nil {
			slog.Warn("config hot reload disabled", "path", a.configPath, "err", err)
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	return g.Wait()
}

// applyConfig is the watcher callback. Only hot-reloadable fields take
// effect; everything else is reported as needing a restart.
func (a *App) applyConfig(old, updated *config.Config) {
	d := config.Diff(old, updated)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(ParseLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.IntervalsChanged {
		a.loop.SetIntervals(d.NewActiveInterval, d.NewIdleInterval)
		slog.Info("broadcast intervals changed", "active", d.NewActiveInterval, "idle", d.NewIdleInterval)
	}
	if d.AudioDeviceChanged {
		a.orch.SetInputDevice(d.NewAudioDevice)
		slog.Info("audio device changed", "device", d.NewAudioDevice)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// statusSource feeds the broadcast loop.
func (a *App) statusSource() (any, bool) {
	st := a.orch.Status()
	return st, st.Active
}

// onMeetingEvent queues orchestrator lifecycle events for every observer. It
// does not wait for delivery.
func (a *App) onMeetingEvent(_ context.Context, event string, data any) {
	typ := broadcast.TypeUpdate
	switch event {
	case meeting.EventStarted:
		typ = broadcast.TypeStarted
	case meeting.EventStopped:
		typ = broadcast.TypeStopped
	}
	queued := a.registry.Post(typ, data)
	slog.Debug("meeting event queued", "type", typ, "queued", queued)
}

// ParseLevel maps a config log level to its slog level. Unknown values map to
// info.
func ParseLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown finalizes a running meeting, then tears down all subsystems in
// reverse-init order. It respects the context deadline: if ctx expires before
// all closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.orch.Shutdown(ctx); err != nil {
			slog.Warn("meeting shutdown", "err", err)
		}
		if n := len(a.orch.Recovered()); n > 0 {
			slog.Error("meetings could not be saved before exit", "count", n)
		}

		for i, closer := range slices.Backward(a.closers) {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases whatever New opened before it failed.
func (a *App) closeAll() {
	for _, c := range slices.Backward(a.closers) {
		_ = c()
	}
}
