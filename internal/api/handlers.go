package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/meetscribe/internal/broadcast"
	"github.com/MrWong99/meetscribe/internal/meeting"
	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/memory"
)

// ─── System ──────────────────────────────────────────────────────────────────

type statusResponse struct {
	Status      string       `json:"status"`
	Version     string       `json:"version,omitempty"`
	Recording   bool         `json:"recording"`
	State       string       `json:"state"`
	Providers   ProviderInfo `json:"providers"`
	AudioDevice string       `json:"audio_device"`
	Observers   int          `json:"observers"`
	Recovered   int          `json:"recovered"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.cfg.Meetings.Status()
	device := s.cfg.Meetings.InputDevice()
	if device == "" {
		device = "default"
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:      "running",
		Version:     s.cfg.Version,
		Recording:   st.Active,
		State:       st.State.String(),
		Providers:   s.cfg.Providers,
		AudioDevice: device,
		Observers:   s.cfg.Registry.Len(),
		Recovered:   st.Recovered,
	})
}

// ─── Audio devices ───────────────────────────────────────────────────────────

type deviceJSON struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	Channels   int     `json:"channels"`
	SampleRate float64 `json:"sample_rate"`
	Default    bool    `json:"default"`
}

type devicesResponse struct {
	Devices  []deviceJSON `json:"devices"`
	Selected string       `json:"selected"`
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := audio.InputDevices(s.cfg.Backend)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	def, defErr := s.cfg.Backend.DefaultInputDevice()
	resp := devicesResponse{Devices: make([]deviceJSON, 0, len(devices)), Selected: s.cfg.Meetings.InputDevice()}
	for _, d := range devices {
		resp.Devices = append(resp.Devices, deviceJSON{
			Index:      d.Index,
			Name:       d.Name,
			Channels:   d.MaxInputChannels,
			SampleRate: d.DefaultSampleRate,
			Default:    defErr == nil && d.Index == def.Index,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSelectDevice(w http.ResponseWriter, r *http.Request) {
	p, err := params(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	want := strings.TrimSpace(p.get("device"))
	if want == "" {
		want = strings.TrimSpace(p.get("device_index"))
	}
	if want == "" {
		s.cfg.Meetings.SetInputDevice("")
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "selected": ""})
		return
	}
	devices, err := audio.InputDevices(s.cfg.Backend)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	for _, d := range devices {
		if strconv.Itoa(d.Index) == want || d.Name == want {
			s.cfg.Meetings.SetInputDevice(want)
			observe.Logger(r.Context()).Info("api: input device selected", "device", d.Name, "index", d.Index)
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "selected": want, "name": d.Name})
			return
		}
	}
	writeError(w, r, http.StatusBadRequest, fmt.Errorf("no input device %q", want))
}

// ─── Meeting lifecycle ───────────────────────────────────────────────────────

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	p, err := params(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	res, err := s.cfg.Meetings.Start(r.Context(), p.get("title"), splitParticipants(p.get("participants")))
	if err != nil {
		writeError(w, r, meetingErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	res, err := s.cfg.Meetings.Stop(r.Context())
	if err != nil {
		writeError(w, r, meetingErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMeetingStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Meetings.Status())
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	n, err := s.cfg.Meetings.RetryRecovered(r.Context())
	resp := map[string]any{
		"success":   err == nil,
		"saved":     n,
		"remaining": len(s.cfg.Meetings.Recovered()),
	}
	if err != nil {
		observe.Logger(r.Context()).Warn("api: recovery incomplete", "saved", n, "err", err)
		resp["error"] = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// meetingErrorStatus maps orchestrator errors to HTTP status codes.
func meetingErrorStatus(err error) int {
	var (
		conflict *meeting.StateConflictError
		device   *meeting.DeviceError
		engine   *meeting.EngineError
	)
	switch {
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &device):
		return http.StatusServiceUnavailable
	case errors.As(err, &engine):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ─── Archive ─────────────────────────────────────────────────────────────────

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Archive == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("no meeting store configured"))
		return
	}
	q := r.URL.Query()
	opts := memory.ListOpts{Query: q.Get("q"), Participant: q.Get("participant")}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	opts.Limit = limit
	for key, dst := range map[string]*time.Time{"after": &opts.After, "before": &opts.Before} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = t
		}
	}
	recs, err := s.cfg.Archive.List(r.Context(), opts)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"meetings": recs, "count": len(recs)})
}

// handleSimilarMeetings ranks archived meetings by meaning. Only stores with
// an embeddings provider can answer.
func (s *Server) handleSimilarMeetings(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Archive == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("no meeting store configured"))
		return
	}
	searcher, ok := s.cfg.Archive.(memory.SemanticSearcher)
	if !ok {
		writeError(w, r, http.StatusNotImplemented, errors.New("meeting store does not support semantic search"))
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("q is required"))
		return
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	matches, err := searcher.Similar(r.Context(), query, limit)
	switch {
	case errors.Is(err, memory.ErrSemanticUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, err)
	case err != nil:
		writeError(w, r, http.StatusBadGateway, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"meetings": matches, "count": len(matches)})
	}
}

func parseLimit(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	return n, nil
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Archive == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("no meeting store configured"))
		return
	}
	rec, err := s.cfg.Archive.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, memory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err)
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

// ─── One-shot processing ─────────────────────────────────────────────────────

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Transcriber == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("no file transcriber configured"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "meetscribe-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	defer os.Remove(tmp.Name())
	_, err = io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("store upload: %w", err))
		return
	}

	text, err := s.cfg.Transcriber.TranscribeFile(r.Context(), tmp.Name())
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"filename":   header.Filename,
		"transcript": text,
	})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Summarizer == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("no summarizer configured"))
		return
	}
	p, err := params(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	text := strings.TrimSpace(p.get("text"))
	if text == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("text is required"))
		return
	}
	sum, err := s.cfg.Summarizer.Summarize(r.Context(), text, splitParticipants(p.get("participants")))
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": sum})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// requestParams reads named values from a form or a flat JSON object.
type requestParams struct {
	form func(string) string
	json map[string]any
}

func (p requestParams) get(key string) string {
	if p.json != nil {
		switch v := p.json[key].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			return strings.Join(parts, ",")
		default:
			return ""
		}
	}
	return p.form(key)
}

func params(r *http.Request) (requestParams, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		m := map[string]any{}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&m); err != nil && !errors.Is(err, io.EOF) {
			return requestParams{}, fmt.Errorf("decode json body: %w", err)
		}
		return requestParams{json: m}, nil
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return requestParams{}, fmt.Errorf("parse form: %w", err)
	}
	return requestParams{form: r.FormValue}, nil
}

// splitParticipants parses a comma-separated participant list.
func splitParticipants(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Warn("api: request failed",
			"method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("api: write response", "err", err)
	}
}

func encodeEnvelope(typ string, data any) ([]byte, error) {
	return json.Marshal(broadcast.Message{Type: typ, Data: data})
}
