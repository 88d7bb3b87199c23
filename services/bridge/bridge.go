// bridge/bridge.go
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"pbhub-go/bus"
	"pbhub-go/x/timex"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

// Start starts the bridge service. It blocks until ctx is cancelled.
// It listens for JSON config on topic {"config","bridge"} and (re)configures
// the link. While a link is up, hub state and capability documents are
// forwarded to the remote peer and control commands from the peer are
// published onto the local bus.
func Start(ctx context.Context, conn *bus.Connection) {
	s := &Service{
		conn:       conn,
		stateTopic: bus.Topic{"bridge", "state"},
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config is the JSON-encoded configuration expected on "config/bridge".
type Config struct {
	Transport TransportConfig `json:"transport"`
}

type TransportConfig struct {
	// "tcp" (provided here) or other names registered via RegisterTransport.
	Type string     `json:"type"`
	TCP  *TCPConfig `json:"tcp,omitempty"`
}

// TCPConfig identifies the remote aggregator to dial.
type TCPConfig struct {
	Addr          string `json:"addr"` // host:port
	DialTimeoutMS int    `json:"dial_timeout_ms,omitempty"`
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn       *bus.Connection
	stateTopic bus.Topic

	mu     sync.Mutex
	curRun context.CancelFunc
	curCfg atomic.Value // stores Config
}

// run waits for config and supervises a single link instance.
func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "bridge"})
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.mu.Lock()
	// Cancel any existing run.
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	s.curCfg.Store(cfg)
	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision and I/O
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.publishState("error", "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rwc, err := tr.Open(ctx)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.publishState("up", "link_established", nil)
		if err := s.handleLink(ctx, rwc); err != nil {
			_ = rwc.Close()
			delay := backoff()
			s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		// Clean close: restart only on new config.
		return
	}
}

// wireMsg is the frame body for framePub in both directions.
type wireMsg struct {
	Topic    []any `json:"topic"`
	Payload  any   `json:"payload"`
	Retained bool  `json:"retained,omitempty"`
}

// handleLink owns the active link lifetime. Uplink: hub state, capability
// info/value/status documents, heartbeat. Downlink: control commands.
// TODO: route replies for remote control requests back over the link.
func (s *Service) handleLink(ctx context.Context, rwc io.ReadWriteCloser) error {
	rd := newFramedReader(rwc)
	wr := newFramedWriter(rwc)

	upSubs := []*bus.Subscription{
		s.conn.Subscribe(bus.Topic{"hub", "state"}),
		s.conn.Subscribe(bus.Topic{"hub", "cap", "+", "+", "info"}),
		s.conn.Subscribe(bus.Topic{"hub", "cap", "+", "+", "value"}),
		s.conn.Subscribe(bus.Topic{"hub", "cap", "+", "+", "status"}),
		s.conn.Subscribe(bus.Topic{"heartbeat", "state"}),
	}
	defer func() {
		for _, sub := range upSubs {
			s.conn.Unsubscribe(sub)
		}
	}()

	// Reader: downlink frames become local publishes.
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			f, err := rd.ReadFrame()
			if err != nil {
				errCh <- err
				return
			}
			switch f.Type {
			case framePong:
				// Link alive.
			case framePub:
				s.publishDownlink(f.Payload)
			case frameClose:
				errCh <- nil
				return
			default:
				// Unknown; ignore.
			}
		}
	}()

	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()

	forward := func(m *bus.Message) error {
		body, err := json.Marshal(wireMsg{Topic: m.Topic, Payload: m.Payload, Retained: m.Retained})
		if err != nil {
			// Non-serialisable payload; skip rather than drop the link.
			return nil
		}
		return wr.WriteFrame(Frame{Type: framePub, Payload: body})
	}

	for {
		select {
		case <-ctx.Done():
			// Best-effort close.
			_ = wr.WriteFrame(Frame{Type: frameClose})
			return nil
		case err := <-errCh:
			if err != nil {
				return err
			}
			return nil
		case m := <-upSubs[0].Channel():
			if err := forward(m); err != nil {
				return err
			}
		case m := <-upSubs[1].Channel():
			if err := forward(m); err != nil {
				return err
			}
		case m := <-upSubs[2].Channel():
			if err := forward(m); err != nil {
				return err
			}
		case m := <-upSubs[3].Channel():
			if err := forward(m); err != nil {
				return err
			}
		case m := <-upSubs[4].Channel():
			if err := forward(m); err != nil {
				return err
			}
		case <-tick.C:
			if err := wr.WriteFrame(Frame{Type: framePing}); err != nil {
				return err
			}
		}
	}
}

// publishDownlink accepts only control commands from the peer. Anything else
// would echo straight back through the uplink subscriptions.
func (s *Service) publishDownlink(body []byte) {
	var wm wireMsg
	if err := json.Unmarshal(body, &wm); err != nil {
		return
	}
	if len(wm.Topic) != 6 {
		return
	}
	topic := make(bus.Topic, 0, len(wm.Topic))
	for _, tok := range wm.Topic {
		str, ok := tok.(string)
		if !ok {
			return
		}
		topic = append(topic, str)
	}
	if topic[0] != "hub" || topic[1] != "cap" || topic[4] != "control" {
		return
	}
	s.conn.Publish(s.conn.NewMessage(topic, wm.Payload, false))
}

// -----------------------------------------------------------------------------
// Transport registry
// -----------------------------------------------------------------------------

// Transport is a pluggable link dialler/owner.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

type transportFactory func(TransportConfig) (Transport, error)

var (
	regMu    sync.RWMutex
	registry = map[string]transportFactory{}
)

// RegisterTransport allows external packages to add transports (eg. "ws", "serial").
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(cfg TransportConfig) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Type]
	regMu.RUnlock()
	if ok {
		return f(cfg)
	}
	switch cfg.Type {
	case "tcp":
		return newTCPTransport(cfg)
	default:
		return nil, fmt.Errorf("unknown transport type: %q", cfg.Type)
	}
}

// TCPDial may be replaced to inject a fake link (tests) or a wrapped dialler
// (TLS, proxies). The default dials plain TCP.
var TCPDial = func(ctx context.Context, c TCPConfig) (io.ReadWriteCloser, error) {
	d := net.Dialer{}
	if c.DialTimeoutMS > 0 {
		d.Timeout = time.Duration(c.DialTimeoutMS) * time.Millisecond
	}
	return d.DialContext(ctx, "tcp", c.Addr)
}

type tcpTransport struct {
	cfg TransportConfig
}

func newTCPTransport(cfg TransportConfig) (Transport, error) {
	if cfg.TCP == nil || cfg.TCP.Addr == "" {
		return nil, errors.New("tcp transport requires an address")
	}
	return &tcpTransport{cfg: cfg}, nil
}

func (t *tcpTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	return TCPDial(ctx, *t.cfg.TCP)
}

func (t *tcpTransport) String() string { return "tcp" }

// -----------------------------------------------------------------------------
// Framing
// -----------------------------------------------------------------------------

const (
	framePing  byte = 0x01
	framePong  byte = 0x02
	framePub   byte = 0x10
	frameClose byte = 0x7f
)

// Frame is a length-prefixed frame: type byte, u16 BE length, body.
type Frame struct {
	Type    byte
	Payload []byte
}

type framedReader struct{ r io.Reader }
type framedWriter struct{ w io.Writer }

func newFramedReader(r io.Reader) *framedReader { return &framedReader{r: r} }
func newFramedWriter(w io.Writer) *framedWriter { return &framedWriter{w: w} }

func (fr *framedReader) ReadFrame() (Frame, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return Frame{}, err
	}
	typ := hdr[0]
	n := int(hdr[1])<<8 | int(hdr[2])
	var buf []byte
	if n > 0 {
		buf = make([]byte, n)
		if _, err := io.ReadFull(fr.r, buf); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Type: typ, Payload: buf}, nil
}

func (fw *framedWriter) WriteFrame(f Frame) error {
	if len(f.Payload) > 0xFFFF {
		return fmt.Errorf("frame too large: %d", len(f.Payload))
	}
	hdr := []byte{f.Type, byte(len(f.Payload) >> 8), byte(len(f.Payload) & 0xFF)}
	if _, err := fw.w.Write(hdr); err != nil {
		return err
	}
	if len(f.Payload) > 0 {
		_, err := fw.w.Write(f.Payload)
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (Config, error) {
	var cfg Config
	switch v := p.(type) {
	case []byte:
		if err := json.Unmarshal(v, &cfg); err != nil {
			return cfg, err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &cfg); err != nil {
			return cfg, err
		}
	case map[string]any:
		// Already a decoded object; re-marshal for simplicity.
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
	return cfg, nil
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,  // "up", "degraded", "error", "idle"
		"status": status, // short machine string
		"ts_ms":  timex.NowMs(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	msg := s.conn.NewMessage(s.stateTopic, payload, true)
	s.conn.Publish(msg)
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
