package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MrWong99/meetscribe/internal/meeting"
	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// formatter prints human-readable command output.
type formatter struct {
	w io.Writer
}

func newFormatter(w io.Writer) *formatter {
	return &formatter{w: w}
}

func (f *formatter) devices(devices []audio.Device, def audio.Device, hasDefault bool) {
	if len(devices) == 0 {
		fmt.Fprintln(f.w, "No input devices found.")
		return
	}
	fmt.Fprintf(f.w, "%-5s  %-40s  %-8s  %s\n", "INDEX", "NAME", "CHANNELS", "RATE")
	for _, d := range devices {
		mark := ""
		if hasDefault && d.Index == def.Index {
			mark = "  (default)"
		}
		fmt.Fprintf(f.w, "%-5d  %-40s  %-8d  %.0f%s\n", d.Index, truncate(d.Name, 40), d.MaxInputChannels, d.DefaultSampleRate, mark)
	}
}

func (f *formatter) recordingStarted(res meeting.StartResult) {
	fmt.Fprintf(f.w, "● Recording %q on %s. Press Ctrl+C to stop.\n", res.Title, res.Device)
}

// liveStatus rewrites the current terminal line.
func (f *formatter) liveStatus(st meeting.Status) {
	line := fmt.Sprintf("\r  %s  %d words  %d segments", formatDuration(time.Duration(st.DurationSeconds*float64(time.Second))), st.WordCount, st.SegmentCount)
	if st.Overflows > 0 {
		line += fmt.Sprintf("  %d overflows", st.Overflows)
	}
	if st.CaptureError != "" {
		line += "  capture: " + st.CaptureError
	}
	fmt.Fprint(f.w, line+"    ")
}

func (f *formatter) finalizing() {
	fmt.Fprintln(f.w, "\n■ Recording stopped, transcribing and summarizing...")
}

func (f *formatter) meetingResult(res meeting.StopResult) {
	fmt.Fprintf(f.w, "\n%s (%s)\n", res.Title, formatDuration(time.Duration(res.Duration*float64(time.Second))))
	f.transcript(res.Transcript)
	if res.Summary != nil {
		f.summary(res.Summary)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(f.w, "! %s\n", w)
	}
	for _, c := range res.Corrections {
		fmt.Fprintf(f.w, "~ %s → %s\n", c.Original, c.Corrected)
	}
	if res.AudioFile != "" {
		fmt.Fprintf(f.w, "Audio:  %s\n", res.AudioFile)
	}
	if res.Location != "" {
		fmt.Fprintf(f.w, "Saved:  %s\n", res.Location)
	}
}

func (f *formatter) transcript(text string) {
	fmt.Fprintln(f.w, "\nTranscript")
	fmt.Fprintln(f.w, "──────────")
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(f.w, "(empty)")
		return
	}
	fmt.Fprintln(f.w, text)
}

func (f *formatter) summary(s *types.Summary) {
	fmt.Fprintln(f.w, "\nSummary")
	fmt.Fprintln(f.w, "───────")
	fmt.Fprintln(f.w, s.Summary)
	f.list("Key points", s.KeyPoints)
	f.list("Action items", s.ActionItems)
}

func (f *formatter) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(f.w, "\n%s\n", title)
	for _, it := range items {
		fmt.Fprintf(f.w, "  • %s\n", it)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
