package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voteflow/voteflow/utils"
)

// ConnectionState describes the telemetry channel's transport lifecycle
type ConnectionState string

const (
	ConnectionIdle       ConnectionState = "idle"
	ConnectionConnecting ConnectionState = "connecting"
	ConnectionOpen       ConnectionState = "open"
	ConnectionClosed     ConnectionState = "closed"
)

// LogSeverity classifies a telemetry log line for display
type LogSeverity string

const (
	SeverityInfo    LogSeverity = "info"
	SeveritySuccess LogSeverity = "success"
	SeverityWarning LogSeverity = "warning"
	SeverityError   LogSeverity = "error"
)

// LogEntry is one line of the bounded execution log
type LogEntry struct {
	ID        uint64
	Timestamp time.Time
	Message   string
	Severity  LogSeverity
}

// Counters is the running progress tally of a campaign
type Counters struct {
	Total   int
	Sent    int
	Failed  int
	Skipped int
}

// Progress returns completion as a fraction in [0, 1].
func (c Counters) Progress() float64 {
	if c.Total == 0 {
		return 0
	}
	done := c.Sent + c.Failed + c.Skipped
	if done > c.Total {
		done = c.Total
	}
	return float64(done) / float64(c.Total)
}

// TelemetrySnapshot is a point-in-time copy of the channel state. The log
// slice is owned by the caller.
type TelemetrySnapshot struct {
	State           ConnectionState
	CampaignID      string
	Running         bool
	Completed       bool
	Pairing         bool
	PairingArtifact string
	Counters        Counters
	Log             []LogEntry
	LastError       string
}

// TelemetryConn is the read side of one live event stream
type TelemetryConn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// TelemetryDialer opens an event stream for a campaign
type TelemetryDialer interface {
	Dial(ctx context.Context, campaignID string) (TelemetryConn, error)
}

// WebsocketDialer implements TelemetryDialer against the engine's
// per-campaign websocket endpoint.
type WebsocketDialer struct {
	domain string
	dialer *websocket.Dialer
}

// NewWebsocketDialer creates a dialer for ws:// or wss:// domains
func NewWebsocketDialer(domain string, handshakeTimeout time.Duration) *WebsocketDialer {
	return &WebsocketDialer{
		domain: strings.TrimRight(domain, "/"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (d *WebsocketDialer) Dial(ctx context.Context, campaignID string) (TelemetryConn, error) {
	url := fmt.Sprintf("%s/ws/campaign/%s", d.domain, campaignID)
	conn, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry stream: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

// telemetryEvent is the engine's wire frame. Counter fields ride both on
// stats frames and embedded in log frames.
type telemetryEvent struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	QRCode   string `json:"qr_code"`
	Total    *int   `json:"total"`
	Sent     *int   `json:"sent"`
	Failed   *int   `json:"failed"`
	Skipped  *int   `json:"skipped"`
}

// noisePattern matches engine-internal diagnostics that carry no meaning
// for the operator: runtime addresses, goroutine dumps, stack traces.
var noisePattern = regexp.MustCompile(`0x[0-9a-fA-F]{4,}|goroutine \d+ \[|Traceback \(most recent call last\)|\.go:\d+ \+0x`)

// TelemetryChannel consumes one campaign's live event stream and folds it
// into a bounded, ordered view. A single reader goroutine is the only
// writer of channel state after Open returns; every event is applied
// atomically under the mutex so readers never observe a log line without
// its embedded counter update.
//
// A dropped stream is terminal for the channel: there is no automatic
// reconnect, because the engine does not replay missed events and a
// silently resumed stream would present false counters as current.
type TelemetryChannel struct {
	dialer      TelemetryDialer
	logCapacity int

	mu              sync.Mutex
	state           ConnectionState
	campaignID      string
	conn            TelemetryConn
	running         bool
	completed       bool
	pairing         bool
	pairingArtifact string
	counters        Counters
	log             []LogEntry
	lastError       string
	nextID          uint64
	done            chan struct{}
	generation      uint64
}

// NewTelemetryChannel creates a channel that keeps at most logCapacity log
// entries. Zero or negative capacity falls back to the default.
func NewTelemetryChannel(dialer TelemetryDialer, logCapacity int) *TelemetryChannel {
	if logCapacity <= 0 {
		logCapacity = utils.LogRingCapacity
	}
	return &TelemetryChannel{
		dialer:      dialer,
		logCapacity: logCapacity,
		state:       ConnectionIdle,
	}
}

// Open subscribes to a campaign's event stream. Opening for a different
// campaign while a stream is live closes the previous one first; opening
// for the same campaign while its stream is live is a no-op.
func (t *TelemetryChannel) Open(ctx context.Context, campaignID string) error {
	t.mu.Lock()
	if t.state == ConnectionOpen || t.state == ConnectionConnecting {
		if t.campaignID == campaignID {
			t.mu.Unlock()
			return nil
		}
		t.closeLocked()
	}

	t.generation++
	gen := t.generation
	t.state = ConnectionConnecting
	t.campaignID = campaignID
	t.running = false
	t.completed = false
	t.pairing = false
	t.pairingArtifact = ""
	t.counters = Counters{}
	t.log = nil
	t.lastError = ""
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	conn, err := t.dialer.Dial(ctx, campaignID)

	t.mu.Lock()
	if t.generation != gen {
		t.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		t.state = ConnectionClosed
		t.lastError = err.Error()
		close(done)
		t.mu.Unlock()
		return err
	}
	t.conn = conn
	t.state = ConnectionOpen
	t.appendLogLocked("Connected to campaign "+campaignID, SeverityInfo)
	t.mu.Unlock()

	go t.readLoop(conn, gen, done)
	return nil
}

// readLoop is the sole consumer of the stream. It exits when the transport
// drops or the channel is closed.
func (t *TelemetryChannel) readLoop(conn TelemetryConn, gen uint64, done chan struct{}) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			if t.generation == gen && t.state == ConnectionOpen {
				t.state = ConnectionClosed
				t.conn = nil
				t.running = false
				t.lastError = err.Error()
				t.appendLogLocked("Telemetry stream disconnected", SeverityWarning)
				close(done)
			}
			t.mu.Unlock()
			return
		}

		var event telemetryEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}

		t.mu.Lock()
		if t.generation != gen || t.state != ConnectionOpen {
			t.mu.Unlock()
			return
		}
		t.applyLocked(&event)
		t.mu.Unlock()
	}
}

// applyLocked folds one event into channel state. Caller holds t.mu.
func (t *TelemetryChannel) applyLocked(event *telemetryEvent) {
	switch event.Type {
	case "connected":
		t.running = true
		if event.Message != "" {
			t.appendLogLocked(event.Message, severityOf(event.Severity))
		}
	case "log":
		t.updateCountersLocked(event)
		if event.Message != "" && !noisePattern.MatchString(event.Message) {
			t.appendLogLocked(event.Message, severityOf(event.Severity))
		}
	case "stats":
		t.updateCountersLocked(event)
	case "qr_waiting":
		t.pairing = true
		t.pairingArtifact = event.QRCode
		t.appendLogLocked("Waiting for device pairing", SeverityWarning)
	case "whatsapp_ready":
		t.pairing = false
		t.pairingArtifact = ""
		t.running = true
		t.appendLogLocked("Messaging device ready", SeveritySuccess)
	case "complete":
		t.updateCountersLocked(event)
		t.running = false
		t.completed = true
		msg := event.Message
		if msg == "" {
			msg = "Campaign completed"
		}
		t.appendLogLocked(msg, SeveritySuccess)
	case "error":
		t.running = false
		t.lastError = event.Message
		if event.Message != "" {
			t.appendLogLocked(event.Message, SeverityError)
		}
	case "heartbeat":
		// keepalive only
	}
}

func (t *TelemetryChannel) updateCountersLocked(event *telemetryEvent) {
	if event.Total != nil {
		t.counters.Total = *event.Total
	}
	if event.Sent != nil {
		t.counters.Sent = *event.Sent
	}
	if event.Failed != nil {
		t.counters.Failed = *event.Failed
	}
	if event.Skipped != nil {
		t.counters.Skipped = *event.Skipped
	}
}

func (t *TelemetryChannel) appendLogLocked(message string, severity LogSeverity) {
	t.nextID++
	t.log = append(t.log, LogEntry{
		ID:        t.nextID,
		Timestamp: utils.UTCNow(),
		Message:   message,
		Severity:  severity,
	})
	if len(t.log) > t.logCapacity {
		t.log = t.log[len(t.log)-t.logCapacity:]
	}
}

func severityOf(raw string) LogSeverity {
	switch raw {
	case "success":
		return SeveritySuccess
	case "warning":
		return SeverityWarning
	case "error":
		return SeverityError
	default:
		return SeverityInfo
	}
}

// Snapshot returns a consistent copy of the channel state
func (t *TelemetryChannel) Snapshot() TelemetrySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	logCopy := make([]LogEntry, len(t.log))
	copy(logCopy, t.log)
	return TelemetrySnapshot{
		State:           t.state,
		CampaignID:      t.campaignID,
		Running:         t.running,
		Completed:       t.completed,
		Pairing:         t.pairing,
		PairingArtifact: t.pairingArtifact,
		Counters:        t.counters,
		Log:             logCopy,
		LastError:       t.lastError,
	}
}

// Close tears down the stream. Safe to call repeatedly.
func (t *TelemetryChannel) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
}

func (t *TelemetryChannel) closeLocked() {
	if t.state != ConnectionOpen && t.state != ConnectionConnecting {
		return
	}
	t.generation++
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.state = ConnectionClosed
	t.running = false
	if t.done != nil {
		close(t.done)
	}
}

// Done returns a channel closed when the current stream ends, by transport
// drop or by Close. Returns nil if no stream was ever opened.
func (t *TelemetryChannel) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
