// Package deepgram provides a Deepgram-backed STT provider. Live audio goes
// over the streaming WebSocket API; finished recordings are re-transcribed
// through the pre-recorded REST API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/meetscribe/pkg/provider/stt"
)

const (
	defaultBaseURL    = "https://api.deepgram.com"
	listenPath        = "/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

var (
	_ stt.Provider        = (*Provider)(nil)
	_ stt.FileTranscriber = (*Provider)(nil)
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the recognition language (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithSampleRate sets the default sample rate for sessions whose StreamConfig
// leaves it zero.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithDiarize enables speaker diarization. Transcripts then carry the
// speaker label of their first word in [stt.Transcript.SpeakerID].
func WithDiarize(enabled bool) Option {
	return func(p *Provider) {
		p.diarize = enabled
	}
}

// WithBaseURL overrides the API origin, e.g. for a self-hosted deployment.
// Streaming uses the matching ws:// or wss:// scheme.
func WithBaseURL(base string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient replaces the client used for file transcription.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements [stt.Provider] and [stt.FileTranscriber] against
// Deepgram.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	sampleRate int
	diarize    bool
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session with Deepgram. Keywords
// in cfg are sent as boosted vocabulary.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: p.authHeader(),
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sess := &session{
		conn:     conn,
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 64),
		audio:    make(chan []byte, 256),
		done:     make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// TranscribeFile uploads the WAV recording at path to the pre-recorded API and
// returns the transcript of the first channel. With diarization enabled each
// speaker turn starts on its own line.
func (p *Provider) TranscribeFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("deepgram: open %q: %w", path, err)
	}
	defer f.Close()

	u, err := url.Parse(p.baseURL + listenPath)
	if err != nil {
		return "", fmt.Errorf("deepgram: build URL: %w", err)
	}
	q := p.commonQuery(p.language)
	q.Set("smart_format", "true")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), f)
	if err != nil {
		return "", fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header = p.authHeader()
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("deepgram: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result prerecordedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("deepgram: parse response: %w", err)
	}
	return result.text(p.diarize), nil
}

func (p *Provider) authHeader() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Token "+p.apiKey)
	return h
}

func (p *Provider) commonQuery(lang string) url.Values {
	q := url.Values{}
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	if p.diarize {
		q.Set("diarize", "true")
	}
	return q
}

// buildURL constructs the streaming endpoint URL for cfg.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.baseURL + listenPath)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := p.commonQuery(lang)
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sr))
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}
	for _, kw := range cfg.Keywords {
		// word:boost, e.g. "Priya:5"
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- responses ----

type dgWord struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence"`
	Speaker        *int    `json:"speaker"`
}

type dgAlternative struct {
	Transcript string   `json:"transcript"`
	Confidence float64  `json:"confidence"`
	Words      []dgWord `json:"words"`
}

// streamResponse is a Results event on the streaming socket.
type streamResponse struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []dgAlternative `json:"alternatives"`
	} `json:"channel"`
}

// prerecordedResponse is the body returned by POST /v1/listen.
type prerecordedResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []dgAlternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (r prerecordedResponse) text(bySpeaker bool) string {
	if len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return ""
	}
	alt := r.Results.Channels[0].Alternatives[0]
	if !bySpeaker || len(alt.Words) == 0 || alt.Words[0].Speaker == nil {
		return alt.Transcript
	}

	var b strings.Builder
	current := -1
	for _, w := range alt.Words {
		word := w.PunctuatedWord
		if word == "" {
			word = w.Word
		}
		speaker := current
		if w.Speaker != nil {
			speaker = *w.Speaker
		}
		switch {
		case speaker != current:
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "Speaker %d: %s", speaker, word)
			current = speaker
		default:
			b.WriteByte(' ')
			b.WriteString(word)
		}
	}
	return b.String()
}

// ---- session ----

// session is a live Deepgram streaming session.
type session struct {
	conn     *websocket.Conn
	partials chan stt.Transcript
	finals   chan stt.Transcript
	audio    chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// SendAudio queues a PCM chunk for delivery to Deepgram.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("deepgram: session is closed")
	}
}

func (s *session) Partials() <-chan stt.Transcript { return s.partials }

func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// SetKeywords is not supported mid-stream; keywords are fixed at StartStream.
func (s *session) SetKeywords([]stt.KeywordBoost) error {
	return fmt.Errorf("deepgram: mid-session keyword updates: %w", stt.ErrNotSupported)
}

// Close asks Deepgram to flush pending results and closes the socket.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// writeLoop forwards queued audio as binary messages and drains the queue on
// Close.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			for {
				select {
				case chunk := <-s.audio:
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop dispatches Results events to Partials and Finals until the socket
// closes.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		t, ok := parseStreamResponse(msg)
		if !ok {
			continue
		}

		out := s.partials
		if t.IsFinal {
			out = s.finals
		}
		select {
		case out <- t:
		case <-ctx.Done():
			return
		}
	}
}

// parseStreamResponse converts a streaming message into a Transcript. Non-Results
// messages and empty alternatives are ignored.
func parseStreamResponse(data []byte) (stt.Transcript, bool) {
	var resp streamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Transcript{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return stt.Transcript{}, false
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]stt.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.WordDetail{
			Word:       w.Word,
			Start:      seconds(w.Start),
			End:        seconds(w.End),
			Confidence: w.Confidence,
		})
	}

	t := stt.Transcript{
		Text:       alt.Transcript,
		IsFinal:    resp.IsFinal,
		Confidence: alt.Confidence,
		Words:      words,
		Timestamp:  seconds(resp.Start),
		Duration:   seconds(resp.Duration),
	}
	if len(alt.Words) > 0 && alt.Words[0].Speaker != nil {
		t.SpeakerID = strconv.Itoa(*alt.Words[0].Speaker)
	}
	return t, true
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
