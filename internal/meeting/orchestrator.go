// Package meeting runs the recording pipeline for one meeting at a time.
//
// The [Orchestrator] is the only owner of the current [Session]. Starting a
// meeting opens a live transcriber, a [Dispatcher] and a capture thread;
// stopping it tears them down in order, re-transcribes the recording,
// summarizes the result and persists it. Slow work always happens outside the
// orchestrator's lock.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/meetscribe/internal/capture"
	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/internal/resilience"
	"github.com/MrWong99/meetscribe/internal/summarize"
	"github.com/MrWong99/meetscribe/internal/transcript"
	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/memory"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// Event names passed to the hook set with [WithEvents].
const (
	EventStarted = "meeting_started"
	EventStopped = "meeting_stopped"
)

const (
	defaultQueueDepth    = 64
	defaultDispatchGrace = 2 * time.Second
)

// Config holds the orchestrator's tuning. Zero values take defaults.
type Config struct {
	// Capture is the template for every meeting's capture. Device is replaced
	// by the selection made with [Orchestrator.SetInputDevice], RecordingPath
	// is derived from RecordingsDir.
	Capture capture.Config

	// RecordingsDir receives one <meeting-id>.wav per meeting. Empty disables
	// recording, and with it full re-transcription.
	RecordingsDir string

	// QueueDepth bounds the frames waiting for live transcription. Default 64.
	QueueDepth int

	// DispatchGrace is how long Stop waits for live transcription to finish.
	// Default 2s.
	DispatchGrace time.Duration

	// Persist tunes retries against the primary store.
	Persist resilience.RetryConfig
}

func (c Config) withDefaults() Config {
	if c.QueueDepth <= 0 {
		c.QueueDepth = defaultQueueDepth
	}
	if c.DispatchGrace <= 0 {
		c.DispatchGrace = defaultDispatchGrace
	}
	return c
}

// StartResult is returned by a successful [Orchestrator.Start].
type StartResult struct {
	Success   bool      `json:"success"`
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	StartedAt time.Time `json:"started_at"`
	Device    string    `json:"device"`
}

// StopResult is returned by [Orchestrator.Stop]. Success is true whenever
// finalization ran; degraded steps are listed in Warnings.
type StopResult struct {
	Success    bool           `json:"success"`
	SessionID  string         `json:"session_id"`
	Title      string         `json:"title"`
	Transcript string         `json:"transcript"`
	Summary    *types.Summary `json:"summary,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`

	Corrections []transcript.Correction `json:"corrections,omitempty"`
	AudioFile   string                  `json:"audio_file,omitempty"`
	Location    string                  `json:"location,omitempty"`
	Duration    float64                 `json:"duration_seconds"`
}

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	Active           bool       `json:"active"`
	State            State      `json:"state"`
	SessionID        string     `json:"session_id,omitempty"`
	Title            string     `json:"title,omitempty"`
	Participants     []string   `json:"participants"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	Duration         int        `json:"duration"`
	DurationSeconds  float64    `json:"duration_seconds"`
	WordCount        int        `json:"word_count"`
	TranscriptLength int        `json:"transcript_length"`
	SegmentCount     int        `json:"segment_count"`
	Overflows        int64      `json:"overflows"`
	DroppedFrames    int64      `json:"dropped_frames"`
	CaptureError     string     `json:"capture_error,omitempty"`
	Device           string     `json:"device,omitempty"`
	Recovered        int        `json:"recovered"`
}

type namedStore struct {
	name  string
	store memory.MeetingStore
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithStreamOpener sets how live transcription is opened per meeting.
// Without one, meetings are recorded without live segments.
func WithStreamOpener(open StreamOpener) Option {
	return func(o *Orchestrator) { o.openStream = open }
}

// WithFileTranscriber sets the engine used to re-transcribe the recording
// when a meeting stops.
func WithFileTranscriber(ft stt.FileTranscriber) Option {
	return func(o *Orchestrator) { o.files = ft }
}

// NameCorrector repairs misheard participant names in a transcript.
type NameCorrector interface {
	Correct(text string, names []string) (string, []transcript.Correction)
}

// WithNameCorrector sets the corrector run on the final transcript before it
// is summarized. It only runs when the meeting has participants.
func WithNameCorrector(c NameCorrector) Option {
	return func(o *Orchestrator) { o.names = c }
}

// WithSummarizer sets the summarizer run on the final transcript.
func WithSummarizer(s summarize.Summarizer) Option {
	return func(o *Orchestrator) { o.summarizer = s }
}

// WithStore sets the primary meeting store. Saves are retried per
// Config.Persist.
func WithStore(name string, s memory.MeetingStore) Option {
	return func(o *Orchestrator) { o.primary = &namedStore{name, s} }
}

// WithFallbackStore sets the store tried once after the primary gave up.
func WithFallbackStore(name string, s memory.MeetingStore) Option {
	return func(o *Orchestrator) { o.fallback = &namedStore{name, s} }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDFunc overrides meeting id generation.
func WithIDFunc(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// WithEvents sets a hook called after a meeting started ([EventStarted], with
// a [StartResult]) and after it stopped ([EventStopped], with a [StopResult]).
// It runs synchronously without the lock held.
func WithEvents(fn func(ctx context.Context, event string, data any)) Option {
	return func(o *Orchestrator) { o.events = fn }
}

// run holds the per-meeting machinery started by Start.
type run struct {
	stream     StreamTranscriber
	dispatcher *Dispatcher
	device     audio.Device
}

// Orchestrator is the state machine around the meeting pipeline. All methods
// are safe for concurrent use.
type Orchestrator struct {
	cfg        Config
	capture    *capture.Thread
	openStream StreamOpener
	files      stt.FileTranscriber
	summarizer summarize.Summarizer
	names      NameCorrector
	primary    *namedStore
	fallback   *namedStore
	metrics    *observe.Metrics
	now        func() time.Time
	newID      func() string
	events     func(ctx context.Context, event string, data any)

	stopping   atomic.Bool
	recovering singleflight.Group

	// mu guards everything below. It is never held across device, network or
	// disk I/O and never re-acquired while held; helpers that expect it held
	// end in Locked.
	mu         sync.Mutex
	state      State
	session    *Session
	run        *run
	device     string
	captureErr *CaptureError
	recovered  []types.MeetingRecord
}

// New returns an idle Orchestrator capturing through backend.
func New(cfg Config, backend audio.Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		newID:  func() string { return "meeting-" + uuid.NewString() },
		device: cfg.Capture.Device,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	o.capture = capture.New(backend,
		capture.WithOnFatal(o.onCaptureFatal),
		capture.WithMetrics(o.metrics),
	)
	return o
}

// setStateLocked moves the orchestrator and its session to to.
func (o *Orchestrator) setStateLocked(to State) {
	if !o.state.next(to) {
		slog.Error("meeting: illegal state transition", "from", o.state, "to", to)
	}
	o.state = to
	if o.session != nil {
		o.session.State = to
	}
}

// Start begins a meeting. It fails with a [*StateConflictError] unless the
// orchestrator is idle and with a [*DeviceError] when no input device can be
// opened. An empty title becomes "Meeting <timestamp>".
func (o *Orchestrator) Start(ctx context.Context, title string, participants []string) (StartResult, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		st := o.state
		o.mu.Unlock()
		return StartResult{}, &StateConflictError{Op: "start", State: st}
	}
	now := o.now()
	if title = strings.TrimSpace(title); title == "" {
		title = "Meeting " + now.Format("2006-01-02 15:04")
	}
	sess := newSession(o.newID(), title, cleanParticipants(participants), now)
	o.session = sess
	o.setStateLocked(StateInitializing)
	o.captureErr = nil
	o.stopping.Store(false)
	device := o.device
	o.mu.Unlock()

	ctx, span, log := observe.StartMeetingSpan(ctx, "start", sess.ID)
	defer span.End()

	r, err := o.setup(ctx, sess, device)

	o.mu.Lock()
	if err != nil {
		o.setStateLocked(StateIdle)
		o.session = nil
		o.mu.Unlock()
		span.SetStatus(codes.Error, err.Error())
		log.Warn("meeting: start failed", "err", err)
		return StartResult{}, err
	}
	o.run = r
	o.setStateLocked(StateActive)
	r.dispatcher.Start()
	died := o.captureErr != nil
	o.mu.Unlock()
	if died {
		go o.stopAfterCaptureFailure(sess.ID)
	}

	o.metrics.ActiveMeetings.Add(ctx, 1)
	log.Info("meeting started",
		"title", sess.Title,
		"participants", len(sess.Participants),
		"device", r.device.Name,
	)
	res := StartResult{
		Success:   true,
		SessionID: sess.ID,
		Title:     sess.Title,
		StartedAt: sess.StartedAt,
		Device:    r.device.Name,
	}
	o.emit(ctx, EventStarted, res)
	return res, nil
}

// setup opens the live transcriber and starts capture. Whatever it started
// is torn down again if a later step fails.
func (o *Orchestrator) setup(ctx context.Context, sess *Session, device string) (*run, error) {
	var closers []func()
	cleanup := func() {
		for _, c := range slices.Backward(closers) {
			c()
		}
	}

	var stream StreamTranscriber = silentTranscriber{}
	if o.openStream != nil {
		s, err := o.openStream(ctx, sess.Participants)
		if err != nil {
			return nil, fmt.Errorf("meeting: open live transcription: %w", err)
		}
		stream = s
		closers = append(closers, func() { closeStream(s) })
	}

	sessionID := sess.ID
	d := NewDispatcher(sessionID, o.cfg.QueueDepth, stream, func(frame audio.Frame, text string) bool {
		return o.appendSegment(sessionID, frame, text)
	}, &o.stopping, o.metrics)
	closers = append(closers, func() { d.Drain(0) })

	ccfg := o.cfg.Capture
	ccfg.Device = device
	if o.cfg.RecordingsDir != "" {
		ccfg.RecordingPath = filepath.Join(o.cfg.RecordingsDir, sessionID+".wav")
	}
	if err := o.capture.Start(ctx, ccfg, d.Submit); err != nil {
		cleanup()
		if errors.Is(err, capture.ErrAlreadyRunning) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &DeviceError{Err: err}
	}
	return &run{stream: stream, dispatcher: d, device: o.capture.Device()}, nil
}

// appendSegment is the dispatcher's sink. Text arriving for a meeting that is
// no longer active, or for an older meeting, is dropped.
func (o *Orchestrator) appendSegment(sessionID string, frame audio.Frame, text string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateActive || o.session == nil || o.session.ID != sessionID {
		return false
	}
	o.session.appendLocked(types.Segment{Offset: frame.Offset, Text: text, Seq: frame.Seq})
	return true
}

// Stop ends the active meeting and finalizes it. It fails only with a
// [*StateConflictError]; every later problem becomes a warning in the
// result. Cancelling ctx does not interrupt finalization.
func (o *Orchestrator) Stop(ctx context.Context) (StopResult, error) {
	return o.stop(ctx, "")
}

// stop ends the active meeting. A non-empty id restricts it to that meeting.
func (o *Orchestrator) stop(ctx context.Context, id string) (StopResult, error) {
	ctx = context.WithoutCancel(ctx)

	o.mu.Lock()
	if o.state != StateActive || (id != "" && o.session.ID != id) {
		st := o.state
		o.mu.Unlock()
		return StopResult{}, &StateConflictError{Op: "stop", State: st}
	}
	o.setStateLocked(StateStopping)
	o.stopping.Store(true)
	sess, r := o.session, o.run
	o.mu.Unlock()

	ctx, span, log := observe.StartMeetingSpan(ctx, "stop", sess.ID)
	defer span.End()

	f := &finalizer{log: log}

	audioFile, err := o.capture.Stop()
	if err != nil {
		f.warn("audio capture stopped uncleanly: %v", err)
	}
	if !r.dispatcher.Drain(o.cfg.DispatchGrace) {
		f.warn("live transcription did not finish within %s", o.cfg.DispatchGrace)
	}
	closeStream(r.stream)
	if n := r.dispatcher.Dropped(); n > 0 {
		f.warn("%d audio frames were skipped by live transcription", n)
	}

	o.mu.Lock()
	sess.AudioFile = audioFile
	sess.EndedAt = o.now()
	live := sess.LiveTranscript()
	captureErr := o.captureErr
	o.mu.Unlock()
	if captureErr != nil {
		f.warn("%v", captureErr)
	}

	text := o.finalTranscript(ctx, f, audioFile, live)
	var corrections []transcript.Correction
	if o.names != nil && len(sess.Participants) > 0 {
		text, corrections = o.names.Correct(text, sess.Participants)
	}
	summary := o.summarize(ctx, f, text, sess.Participants)

	// Segments are frozen now that the state is no longer Active.
	rec := sess.record(text, summary, f.warnings)
	location := o.persist(ctx, f, rec)

	o.mu.Lock()
	o.setStateLocked(StateStopped)
	o.setStateLocked(StateIdle)
	o.session = nil
	o.run = nil
	o.mu.Unlock()
	o.metrics.ActiveMeetings.Add(ctx, -1)

	res := StopResult{
		Success:     true,
		SessionID:   sess.ID,
		Title:       sess.Title,
		Transcript:  text,
		Summary:     summary,
		Warnings:    f.warnings,
		AudioFile:   audioFile,
		Corrections: corrections,
		Location:    location,
		Duration:    rec.Duration().Seconds(),
	}
	span.SetAttributes(attribute.Int("meeting.warnings", len(f.warnings)))
	log.Info("meeting stopped",
		"duration", rec.Duration().Round(time.Second),
		"words", types.WordCount(text),
		"warnings", len(f.warnings),
		"corrections", len(corrections),
		"location", location,
	)
	o.emit(ctx, EventStopped, res)
	return res, nil
}

// finalizer collects the warnings of one Stop.
type finalizer struct {
	log      *slog.Logger
	warnings []string
}

func (f *finalizer) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	f.warnings = append(f.warnings, msg)
	f.log.Warn("meeting: " + msg)
}

// finalTranscript prefers a full re-transcription of the recording and falls
// back to the live transcript.
func (o *Orchestrator) finalTranscript(ctx context.Context, f *finalizer, audioFile, live string) string {
	if o.files == nil {
		return live
	}
	if audioFile == "" {
		f.warn("no recording available, using live transcript")
		return live
	}
	start := time.Now()
	text, err := o.files.TranscribeFile(ctx, audioFile)
	o.metrics.TranscribeFileDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		f.warn("%v; using live transcript", &EngineError{Stage: StageTranscribe, Err: err})
		return live
	}
	if text = strings.TrimSpace(text); text == "" && live != "" {
		f.warn("full transcription returned no text, using live transcript")
		return live
	}
	return text
}

func (o *Orchestrator) summarize(ctx context.Context, f *finalizer, transcript string, participants []string) *types.Summary {
	if o.summarizer == nil {
		return nil
	}
	if strings.TrimSpace(transcript) == "" {
		f.warn("transcript is empty, no summary generated")
		return nil
	}
	start := time.Now()
	sum, err := o.summarizer.Summarize(ctx, transcript, participants)
	o.metrics.SummarizeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		f.warn("%v; summary omitted", &EngineError{Stage: StageSummarize, Err: err})
		return nil
	}
	return sum
}

// persist saves rec to the primary store with retries, then to the fallback
// store, and finally keeps it in memory for [Orchestrator.RetryRecovered].
func (o *Orchestrator) persist(ctx context.Context, f *finalizer, rec *types.MeetingRecord) string {
	if o.primary == nil && o.fallback == nil {
		f.warn("no meeting store configured, record kept in memory")
		o.keepRecovered(rec, f.warnings)
		return ""
	}
	if o.primary != nil {
		loc, err := o.saveWithRetry(ctx, *o.primary, rec)
		if err == nil {
			return loc
		}
		f.warn("%v", err)
	}
	if o.fallback != nil {
		rec.Warnings = slices.Clone(f.warnings)
		loc, err := o.saveOnce(ctx, *o.fallback, rec)
		if err == nil {
			if o.primary != nil {
				f.warn("meeting saved to fallback store %s at %s", o.fallback.name, loc)
			}
			return loc
		}
		f.warn("%v", &PersistenceError{Store: o.fallback.name, Attempts: 1, Err: err})
	}
	f.warn("meeting could not be saved and is kept in memory for recovery")
	o.keepRecovered(rec, f.warnings)
	return ""
}

func (o *Orchestrator) saveWithRetry(ctx context.Context, ns namedStore, rec *types.MeetingRecord) (string, error) {
	var loc string
	cfg := o.cfg.Persist
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		slog.Warn("meeting: save failed, retrying",
			"session_id", rec.ID, "store", ns.name, "attempt", attempt, "wait", wait, "err", err)
	}
	attempts, err := resilience.Retry(ctx, cfg, func(ctx context.Context) error {
		var err error
		loc, err = o.saveOnce(ctx, ns, rec)
		return err
	})
	if err != nil {
		return "", &PersistenceError{Store: ns.name, Attempts: attempts, Err: err}
	}
	return loc, nil
}

func (o *Orchestrator) saveOnce(ctx context.Context, ns namedStore, rec *types.MeetingRecord) (string, error) {
	loc, err := ns.store.Save(ctx, rec)
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordPersistAttempt(ctx, ns.name, status)
	return loc, err
}

func (o *Orchestrator) keepRecovered(rec *types.MeetingRecord, warnings []string) {
	cp := *rec
	cp.Warnings = slices.Clone(warnings)
	o.mu.Lock()
	o.recovered = append(o.recovered, cp)
	o.mu.Unlock()
}

// Recovered returns copies of the records that could not be persisted.
func (o *Orchestrator) Recovered() []types.MeetingRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.recovered)
}

// RetryRecovered tries to persist every record in the recovery list again,
// primary store first. Saved records leave the list. It returns how many
// were saved and the failures joined. Concurrent calls share one retry run
// and its result.
func (o *Orchestrator) RetryRecovered(ctx context.Context) (int, error) {
	v, err, shared := o.recovering.Do("recover", func() (any, error) {
		return o.retryRecovered(ctx)
	})
	if shared {
		slog.Debug("meeting: joined running recovery")
	}
	n, _ := v.(int)
	return n, err
}

func (o *Orchestrator) retryRecovered(ctx context.Context) (int, error) {
	pending := o.Recovered()
	if len(pending) == 0 {
		return 0, nil
	}
	var (
		saved []string
		errs  []error
	)
	for i := range pending {
		rec := &pending[i]
		var err error
		switch {
		case o.primary != nil:
			_, err = o.saveWithRetry(ctx, *o.primary, rec)
			if err != nil && o.fallback != nil {
				_, err = o.saveOnce(ctx, *o.fallback, rec)
			}
		case o.fallback != nil:
			_, err = o.saveOnce(ctx, *o.fallback, rec)
		default:
			err = errors.New("meeting: no meeting store configured")
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("meeting: recover %s: %w", rec.ID, err))
			continue
		}
		saved = append(saved, rec.ID)
	}

	o.mu.Lock()
	o.recovered = slices.DeleteFunc(o.recovered, func(r types.MeetingRecord) bool {
		return slices.Contains(saved, r.ID)
	})
	o.mu.Unlock()
	if len(saved) > 0 {
		slog.Info("meeting: recovered records persisted", "count", len(saved))
	}
	return len(saved), errors.Join(errs...)
}

// Status returns a snapshot of the current meeting, or of the idle
// orchestrator.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		Active:       o.state == StateActive,
		State:        o.state,
		Participants: []string{},
		Device:       o.device,
		Recovered:    len(o.recovered),
	}
	if o.captureErr != nil {
		st.CaptureError = o.captureErr.Error()
	}
	s := o.session
	if s == nil {
		return st
	}
	started := s.StartedAt
	live := s.LiveTranscript()
	dur := s.Duration(o.now())
	st.SessionID = s.ID
	st.Title = s.Title
	st.Participants = slices.Clone(s.Participants)
	st.StartedAt = &started
	st.Duration = int(dur.Seconds())
	st.DurationSeconds = dur.Seconds()
	st.WordCount = types.WordCount(live)
	st.TranscriptLength = len(live)
	st.SegmentCount = s.SegmentCount()
	st.Overflows = o.capture.Overflows()
	if o.run != nil {
		st.DroppedFrames = o.run.dispatcher.Dropped()
		if o.run.device.Name != "" {
			st.Device = o.run.device.Name
		}
	}
	return st
}

// SetInputDevice selects the input device (index or name) used by the next
// meeting. Empty restores the default device.
func (o *Orchestrator) SetInputDevice(device string) {
	o.mu.Lock()
	o.device = strings.TrimSpace(device)
	o.mu.Unlock()
}

// InputDevice returns the device selection for the next meeting.
func (o *Orchestrator) InputDevice() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.device
}

// Shutdown stops the active meeting, if any, so its recording is finalized
// and persisted. A meeting that is still starting or already stopping is
// left alone.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	_, err := o.Stop(ctx)
	var conflict *StateConflictError
	if errors.As(err, &conflict) {
		return nil
	}
	return err
}

// onCaptureFatal runs on the capture goroutine once its loop died. A failure
// during start-up is picked up by Start once the meeting is active.
func (o *Orchestrator) onCaptureFatal(err error) {
	o.mu.Lock()
	if o.session == nil {
		o.mu.Unlock()
		return
	}
	o.captureErr = &CaptureError{Overflows: o.capture.Overflows(), Fatal: true, Err: err}
	id := o.session.ID
	active := o.state == StateActive
	o.mu.Unlock()

	slog.Error("meeting: audio capture failed", "session_id", id, "err", err)
	if active {
		go o.stopAfterCaptureFailure(id)
	}
}

func (o *Orchestrator) stopAfterCaptureFailure(id string) {
	if _, err := o.stop(context.Background(), id); err != nil {
		slog.Debug("meeting: stop after capture failure", "session_id", id, "err", err)
	}
}

func (o *Orchestrator) emit(ctx context.Context, event string, data any) {
	if o.events != nil {
		o.events(ctx, event, data)
	}
}

func cleanParticipants(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func closeStream(s StreamTranscriber) {
	c, ok := s.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		slog.Warn("meeting: closing live transcription", "err", err)
	}
}

// silentTranscriber stands in when no live transcription is configured.
type silentTranscriber struct{}

func (silentTranscriber) TranscribeStream(context.Context, audio.Frame) (string, error) {
	return "", nil
}
