// bridge/bridge_test.go
package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"pbhub-go/bus"
)

func TestBridge_EstablishesTCPLinkAndReportsState(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge_test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	// Subscribe to bridge/state (retained) and verify initial status.
	stateSub := conn.Subscribe(bus.Topic{"bridge", "state"})
	defer conn.Unsubscribe(stateSub)

	first := nextStatePayload(t, stateSub, 500*time.Millisecond)
	assertLevelStatus(t, first, "idle", "awaiting_config")

	// Inject a dialler that returns a net.Pipe; keep the remote end to simulate link loss.
	prevDial := TCPDial
	defer func() { TCPDial = prevDial }()
	var remote io.ReadWriteCloser
	TCPDial = func(ctx context.Context, _ TCPConfig) (io.ReadWriteCloser, error) {
		lc, rc := net.Pipe()
		remote = rc
		// Remote peer loop: respond to ping frames; ignore others.
		go remotePeer(rc, nil)
		return lc, nil
	}

	// Publish a valid TCP config.
	cfg := `{"transport":{"type":"tcp","tcp":{"addr":"127.0.0.1:7817"}}}`
	conn.Publish(conn.NewMessage(bus.Topic{"config", "bridge"}, cfg, false))

	up := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, up, "up", "link_established")

	// Close the remote to force link loss; expect degraded state.
	if remote != nil {
		_ = remote.Close()
	}

	degraded := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, degraded, "degraded", "link_lost_retrying")
}

func TestBridge_UnknownTransportYieldsErrorState(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("bridge_test_bad")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	stateSub := conn.Subscribe(bus.Topic{"bridge", "state"})
	defer conn.Unsubscribe(stateSub)

	_ = nextStatePayload(t, stateSub, 500*time.Millisecond) // initial awaiting_config

	// Publish a config with an unknown transport type.
	cfg := `{"transport":{"type":"bogus"}}`
	conn.Publish(conn.NewMessage(bus.Topic{"config", "bridge"}, cfg, false))

	errState := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, errState, "error", "transport_init_failed")
}

func TestBridge_ForwardsHubTrafficBothWays(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge_test_fwd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	stateSub := conn.Subscribe(bus.Topic{"bridge", "state"})
	defer conn.Unsubscribe(stateSub)
	_ = nextStatePayload(t, stateSub, 500*time.Millisecond) // awaiting_config

	prevDial := TCPDial
	defer func() { TCPDial = prevDial }()
	pubCh := make(chan wireMsg, 8)
	var remote io.ReadWriteCloser
	TCPDial = func(ctx context.Context, _ TCPConfig) (io.ReadWriteCloser, error) {
		lc, rc := net.Pipe()
		remote = rc
		go remotePeer(rc, pubCh)
		return lc, nil
	}

	cfg := `{"transport":{"type":"tcp","tcp":{"addr":"127.0.0.1:7817"}}}`
	conn.Publish(conn.NewMessage(bus.Topic{"config", "bridge"}, cfg, false))
	up := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, up, "up", "link_established")

	// Uplink: a local hub state document reaches the remote as a pub frame.
	conn.Publish(conn.NewMessage(bus.Topic{"hub", "state"},
		map[string]any{"level": "ready"}, true))

	select {
	case wm := <-pubCh:
		if len(wm.Topic) != 2 || wm.Topic[0] != "hub" || wm.Topic[1] != "state" {
			t.Fatalf("forwarded topic = %v", wm.Topic)
		}
		if p, ok := wm.Payload.(map[string]any); !ok || p["level"] != "ready" {
			t.Fatalf("forwarded payload = %#v", wm.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("hub state not forwarded to remote")
	}

	// Downlink: a control command from the remote appears on the local bus.
	ctlSub := conn.Subscribe(bus.Topic{"hub", "cap", "dout", "relay", "control", "set"})
	defer conn.Unsubscribe(ctlSub)

	body, _ := json.Marshal(wireMsg{
		Topic:   []any{"hub", "cap", "dout", "relay", "control", "set"},
		Payload: map[string]any{"level": true},
	})
	frame := append([]byte{framePub, byte(len(body) >> 8), byte(len(body))}, body...)
	if _, err := remote.Write(frame); err != nil {
		t.Fatalf("remote write: %v", err)
	}

	select {
	case m := <-ctlSub.Channel():
		p, ok := m.Payload.(map[string]any)
		if !ok || p["level"] != true {
			t.Fatalf("downlink payload = %#v", m.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("control command not published locally")
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// remotePeer minimally services the framing used by the bridge: it replies
// PONG to PING and decodes pub frames onto pubCh when non-nil. It exits on
// read/write error.
func remotePeer(c io.ReadWriteCloser, pubCh chan wireMsg) {
	defer c.Close()
	hdr := make([]byte, 3)
	for {
		if _, err := io.ReadFull(c, hdr); err != nil {
			return
		}
		typ := hdr[0]
		n := int(hdr[1])<<8 | int(hdr[2])
		var buf []byte
		if n > 0 {
			buf = make([]byte, n)
			if _, err := io.ReadFull(c, buf); err != nil {
				return
			}
		}
		switch typ {
		case framePing:
			if _, err := c.Write([]byte{framePong, 0x00, 0x00}); err != nil {
				return
			}
		case framePub:
			if pubCh != nil {
				var wm wireMsg
				if json.Unmarshal(buf, &wm) == nil {
					pubCh <- wm
				}
			}
		}
	}
}

func nextStatePayload(t *testing.T, sub *bus.Subscription, d time.Duration) map[string]any {
	t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m := <-sub.Channel():
		p, ok := m.Payload.(map[string]any)
		if !ok {
			t.Fatalf("state payload type: got %T, want map[string]any", m.Payload)
		}
		return p
	case <-timer.C:
		t.Fatalf("timeout waiting for bridge/state")
		return nil
	}
}

func assertLevelStatus(t *testing.T, payload map[string]any, wantLevel, wantStatus string) {
	t.Helper()
	gotLevel, _ := payload["level"].(string)
	gotStatus, _ := payload["status"].(string)
	if gotLevel != wantLevel || gotStatus != wantStatus {
		t.Fatalf("unexpected state: level=%q status=%q, want level=%q status=%q (payload=%v)",
			gotLevel, gotStatus, wantLevel, wantStatus, payload)
	}
}
