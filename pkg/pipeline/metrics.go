package pipeline

import (
	"sync"
	"time"
)

// historySize is how many finished requests the collector averages over.
const historySize = 100

// Metrics tracks latency at each stage of one parallel request.
// All durations are measured from the moment the request started.
type Metrics struct {
	// Timestamps for key events
	StartTime           time.Time // When the attempt started
	FirstTranscriptTime time.Time // When the first transcription window returned text
	FirstPartialTime    time.Time // When the first partial answer delta arrived
	FirstTokenTime      time.Time // When the first authoritative answer delta arrived
	FirstAudioTime      time.Time // When the first utterance was synthesized
	DoneTime            time.Time // When the last record was produced

	// Computed latencies (from start)
	TranscriptLatency time.Duration
	PartialLatency    time.Duration
	FirstTokenLatency time.Duration
	FirstAudioLatency time.Duration
	TotalLatency      time.Duration

	// Counts for this request
	AudioChunksIn   int // Audio chunks fed to transcription
	Windows         int // Transcription windows attempted
	FailedWindows   int // Windows dropped after a failure
	PartialCalls    int // Partial answers attempted
	FailedPartials  int // Partial answers dropped after a failure
	Utterances      int // Utterances queued for synthesis
	AudioOut        int // AUDIO records produced
	FailedSyntheses int // Utterances dropped after a failure
}

// Tracker collects Metrics for one request.
// It is goroutine-safe and a nil Tracker ignores every call.
type Tracker struct {
	mu sync.Mutex
	m  Metrics
}

// NewTracker starts tracking now.
func NewTracker() *Tracker {
	return &Tracker{m: Metrics{StartTime: time.Now()}}
}

func (t *Tracker) update(fn func(m *Metrics, now time.Time)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.m, time.Now())
}

// markOnce sets *at and *lat the first time it is called for a field.
func markOnce(at *time.Time, lat *time.Duration, start, now time.Time) {
	if at.IsZero() {
		*at = now
		*lat = now.Sub(start)
	}
}

// MarkChunk counts an incoming audio chunk.
func (t *Tracker) MarkChunk() {
	t.update(func(m *Metrics, _ time.Time) { m.AudioChunksIn++ })
}

// MarkWindow counts a transcription window; text reports whether it produced any.
func (t *Tracker) MarkWindow(err error, text bool) {
	t.update(func(m *Metrics, now time.Time) {
		m.Windows++
		if err != nil {
			m.FailedWindows++
			return
		}
		if text {
			markOnce(&m.FirstTranscriptTime, &m.TranscriptLatency, m.StartTime, now)
		}
	})
}

// MarkPartialCall counts a partial answer attempt.
func (t *Tracker) MarkPartialCall(err error) {
	t.update(func(m *Metrics, _ time.Time) {
		m.PartialCalls++
		if err != nil {
			m.FailedPartials++
		}
	})
}

// MarkPartialToken records the first partial answer delta.
func (t *Tracker) MarkPartialToken() {
	t.update(func(m *Metrics, now time.Time) {
		markOnce(&m.FirstPartialTime, &m.PartialLatency, m.StartTime, now)
	})
}

// MarkFirstToken records the first authoritative answer delta.
func (t *Tracker) MarkFirstToken() {
	t.update(func(m *Metrics, now time.Time) {
		markOnce(&m.FirstTokenTime, &m.FirstTokenLatency, m.StartTime, now)
	})
}

// MarkUtterance counts a queued utterance.
func (t *Tracker) MarkUtterance() {
	t.update(func(m *Metrics, _ time.Time) { m.Utterances++ })
}

// MarkAudio counts a synthesized utterance, or a failed one when err is set.
func (t *Tracker) MarkAudio(err error) {
	t.update(func(m *Metrics, now time.Time) {
		if err != nil {
			m.FailedSyntheses++
			return
		}
		m.AudioOut++
		markOnce(&m.FirstAudioTime, &m.FirstAudioLatency, m.StartTime, now)
	})
}

// Done stamps the end of the request and returns the final metrics.
func (t *Tracker) Done() Metrics {
	if t == nil {
		return Metrics{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m.DoneTime.IsZero() {
		t.m.DoneTime = time.Now()
		t.m.TotalLatency = t.m.DoneTime.Sub(t.m.StartTime)
	}
	return t.m
}

// Snapshot returns the metrics so far.
func (t *Tracker) Snapshot() Metrics {
	if t == nil {
		return Metrics{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.m
}

// Report is the JSON form of Metrics carried by DONE records and /status.
type Report struct {
	TranscriptMs    int64 `json:"transcriptMs"`
	PartialMs       int64 `json:"partialMs"`
	FirstTokenMs    int64 `json:"firstTokenMs"`
	FirstAudioMs    int64 `json:"firstAudioMs"`
	TotalMs         int64 `json:"totalMs"`
	Windows         int   `json:"windows"`
	FailedWindows   int   `json:"failedWindows"`
	PartialCalls    int   `json:"partialCalls"`
	Utterances      int   `json:"utterances"`
	AudioRecords    int   `json:"audioRecords"`
	FailedSyntheses int   `json:"failedSyntheses"`
}

// Report converts m to its JSON form.
func (m Metrics) Report() *Report {
	return &Report{
		TranscriptMs:    m.TranscriptLatency.Milliseconds(),
		PartialMs:       m.PartialLatency.Milliseconds(),
		FirstTokenMs:    m.FirstTokenLatency.Milliseconds(),
		FirstAudioMs:    m.FirstAudioLatency.Milliseconds(),
		TotalMs:         m.TotalLatency.Milliseconds(),
		Windows:         m.Windows,
		FailedWindows:   m.FailedWindows,
		PartialCalls:    m.PartialCalls,
		Utterances:      m.Utterances,
		AudioRecords:    m.AudioOut,
		FailedSyntheses: m.FailedSyntheses,
	}
}

// FormatLatency returns a one-line latency breakdown.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.TranscriptLatency) + " STT | " +
		formatDuration(m.PartialLatency) + " PARTIAL | " +
		formatDuration(m.FirstTokenLatency) + " LLM | " +
		formatDuration(m.FirstAudioLatency) + " TTS | " +
		formatDuration(m.TotalLatency) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}

// MetricsCollector keeps the metrics of recent requests for averaging.
// It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	history []Metrics
	total   int
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, historySize),
	}
}

// Record archives one finished request.
func (c *MetricsCollector) Record(m Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, m)
	if len(c.history) > historySize {
		c.history = c.history[1:]
	}
	c.total++
}

// Count returns how many requests were recorded since start.
func (c *MetricsCollector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Average returns average latencies over recent requests.
func (c *MetricsCollector) Average() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range c.history {
		avg.TranscriptLatency += h.TranscriptLatency
		avg.PartialLatency += h.PartialLatency
		avg.FirstTokenLatency += h.FirstTokenLatency
		avg.FirstAudioLatency += h.FirstAudioLatency
		avg.TotalLatency += h.TotalLatency
	}

	n := time.Duration(len(c.history))
	avg.TranscriptLatency /= n
	avg.PartialLatency /= n
	avg.FirstTokenLatency /= n
	avg.FirstAudioLatency /= n
	avg.TotalLatency /= n

	return avg
}
