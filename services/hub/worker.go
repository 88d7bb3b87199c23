// services/hub/worker.go
package hub

import (
	"context"
	"encoding/json"
	"time"

	"pbhub-go/bus"
	"pbhub-go/drivers/pbhub"
	"pbhub-go/errcode"
	"pbhub-go/services/hub/config"
	"pbhub-go/types"
	"pbhub-go/x/ramp"
	"pbhub-go/x/timex"
)

// capability is one configured port binding. Mutable fields are owned by the
// worker goroutine only.
type capability struct {
	kind types.Kind
	name string
	port pbhub.Port
	pin  pbhub.Pin

	strip *pbhub.Strip // rgb only
	link  types.Link

	// Polled inputs.
	period time.Duration
	due    time.Time
	last   uint16 // last published sample, packed
	seeded bool
}

// worker owns one pbhub.Device. All bus traffic for the device goes through
// its single goroutine, which preserves I2C exclusivity without extra locks.
type worker struct {
	id    string
	dev   *pbhub.Device
	conn  *bus.Connection
	reqCh chan *bus.Message
	caps  []*capability
}

// addPort validates a port binding, applies its initial output state, and
// publishes the retained info document.
func (w *worker) addPort(pc config.Port) (*capability, error) {
	kind, ok := modeKinds[pc.Mode]
	if !ok {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "hub.port", Msg: "unknown mode " + pc.Mode}
	}
	port := pbhub.Port(pc.Port)
	pin := pbhub.Pin(pc.Pin)
	if _, err := pbhub.Register(port, pin, probeOps[kind]); err != nil {
		return nil, &errcode.E{C: errcode.MapDriverErr(err), Op: "hub.port", Msg: pc.Name, Err: err}
	}

	cap := &capability{kind: kind, name: pc.Name, port: port, pin: pin}

	var err error
	switch kind {
	case types.KindDigitalOut:
		level := pc.Initial != nil && *pc.Initial != 0
		if err = w.dev.DigitalWrite(port, pin, level); err == nil {
			w.publishValue(cap, types.DigitalValue{Level: level, TS: nowMS()})
		}
	case types.KindPWM:
		var duty uint8
		if pc.Initial != nil {
			duty = *pc.Initial
		}
		if err = w.dev.PWMWrite(port, pin, duty); err == nil {
			w.publishValue(cap, types.PWMValue{Duty: duty})
		}
	case types.KindServo:
		if pc.Initial != nil {
			if err = w.dev.SetServoAngle(port, pin, *pc.Initial); err == nil {
				w.publishValue(cap, types.ServoValue{Angle: *pc.Initial})
			}
		}
	case types.KindLEDStrip:
		cap.strip, err = w.dev.Strip(port)
		if err == nil && pc.Length > 0 {
			err = cap.strip.SetLength(pc.Length)
		}
		if err == nil && pc.Brightness != nil {
			err = cap.strip.SetBrightness(*pc.Brightness)
		}
	case types.KindEncoder:
		if pc.ResetOnStart {
			err = w.dev.EncoderReset(port)
		}
		cap.period = clampPoll(pc.PollMS)
	case types.KindDigitalIn, types.KindAnalog:
		cap.period = clampPoll(pc.PollMS)
	}
	if err != nil {
		return nil, &errcode.E{C: errcode.MapDriverErr(err), Op: "hub.port", Msg: pc.Name, Err: err}
	}

	ref := types.PortRef{Hub: w.id, Port: pc.Port, Pin: pc.Pin}
	detail := any(ref)
	if kind == types.KindLEDStrip {
		detail = types.StripDetail{PortRef: ref, LEDStripInfo: types.LEDStripInfo{Length: pc.Length}}
	}
	w.conn.Publish(w.conn.NewMessage(topicInfo(kind, pc.Name), types.Info{
		SchemaVersion: 1,
		Driver:        "pbhub",
		Detail:        detail,
	}, true))
	w.setLink(cap, types.LinkUp, nil)

	if cap.period > 0 {
		cap.due = time.Now().Add(cap.period)
	}
	w.caps = append(w.caps, cap)
	return cap, nil
}

// run is the worker loop: one timer for polled inputs, one queue for
// commands. Timer handling follows the usual stop/drain/reset dance.
func (w *worker) run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		next := w.minDue()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if next.IsZero() {
			timer.Reset(time.Hour)
		} else {
			d := time.Until(next)
			if d < 0 {
				d = 0
			}
			timer.Reset(d)
		}

		select {
		case <-ctx.Done():
			return
		case msg := <-w.reqCh:
			w.handleControl(ctx, msg)
		case <-timer.C:
			now := time.Now()
			for _, cap := range w.caps {
				if cap.period == 0 || now.Before(cap.due) {
					continue
				}
				w.sample(cap, false)
				cap.due = now.Add(cap.period)
			}
		}
	}
}

func (w *worker) minDue() time.Time {
	var min time.Time
	for _, cap := range w.caps {
		if cap.period == 0 {
			continue
		}
		if min.IsZero() || cap.due.Before(min) {
			min = cap.due
		}
	}
	return min
}

// sample reads one input capability and publishes its retained value.
// Digital inputs publish on change only unless forced. Read failures mark the
// capability degraded; the next successful sample marks it up again.
func (w *worker) sample(cap *capability, force bool) error {
	switch cap.kind {
	case types.KindDigitalIn:
		v, err := w.dev.DigitalRead(cap.port, cap.pin)
		if err != nil {
			w.setLink(cap, types.LinkDegraded, err)
			return err
		}
		w.setLink(cap, types.LinkUp, nil)
		packed := uint16(0)
		if v {
			packed = 1
		}
		if force || !cap.seeded || packed != cap.last {
			cap.last = packed
			cap.seeded = true
			w.publishValue(cap, types.DigitalValue{Level: v, TS: nowMS()})
		}
	case types.KindAnalog:
		v, err := w.dev.AnalogRead(cap.port)
		if err != nil {
			w.setLink(cap, types.LinkDegraded, err)
			return err
		}
		w.setLink(cap, types.LinkUp, nil)
		if force || !cap.seeded || v != cap.last {
			cap.last = v
			cap.seeded = true
			w.publishValue(cap, types.AnalogValue{Raw: v, TS: nowMS()})
		}
	case types.KindEncoder:
		v, err := w.dev.EncoderRead(cap.port)
		if err != nil {
			w.setLink(cap, types.LinkDegraded, err)
			return err
		}
		w.setLink(cap, types.LinkUp, nil)
		if force || !cap.seeded || v != cap.last {
			cap.last = v
			cap.seeded = true
			w.publishValue(cap, types.EncoderValue{Count: v, TS: nowMS()})
		}
	}
	return nil
}

// setLink publishes the retained capability status on link transitions.
func (w *worker) setLink(cap *capability, link types.Link, err error) {
	if cap.link == link {
		return
	}
	cap.link = link
	st := types.CapabilityStatus{Link: link, TS: nowMS()}
	if err != nil {
		st.Error = err.Error()
	}
	w.conn.Publish(w.conn.NewMessage(topicStatus(cap.kind, cap.name), st, true))
}

func (w *worker) findCap(kind types.Kind, name string) *capability {
	for _, c := range w.caps {
		if c.kind == kind && c.name == name {
			return c
		}
	}
	return nil
}

// handleControl executes one command message and replies with OKReply or an
// ErrorReply carrying a stable errcode string.
func (w *worker) handleControl(ctx context.Context, msg *bus.Message) {
	kind, name, ok := splitControlTopic(msg.Topic)
	if !ok {
		w.fail(msg, errcode.InvalidTopic)
		return
	}
	verb, _ := msg.Topic[5].(string)
	cap := w.findCap(kind, name)
	if cap == nil {
		w.fail(msg, errcode.UnknownCapability)
		return
	}

	switch verb {
	case "set":
		w.handleSet(msg, cap)
	case "read":
		if cap.period == 0 {
			w.fail(msg, errcode.Unsupported)
			return
		}
		if err := w.sample(cap, true); err != nil {
			w.fail(msg, errcode.MapDriverErr(err))
			return
		}
		w.ok(msg)
	case "ramp":
		w.handleRamp(ctx, msg, cap)
	case "reset":
		if cap.kind != types.KindEncoder {
			w.fail(msg, errcode.Unsupported)
			return
		}
		if err := w.dev.EncoderReset(cap.port); err != nil {
			w.fail(msg, errcode.MapDriverErr(err))
			return
		}
		cap.last = 0
		cap.seeded = true
		w.publishValue(cap, types.EncoderValue{Count: 0, TS: nowMS()})
		w.ok(msg)
	default:
		w.fail(msg, errcode.Unsupported)
	}
}

// handleRamp walks the duty cycle of a PWM capability to a target level over a
// duration. It runs on the worker goroutine, so the hub rejects further
// commands with Busy until the ramp finishes or the context is cancelled.
func (w *worker) handleRamp(ctx context.Context, msg *bus.Message, cap *capability) {
	if cap.kind != types.KindPWM {
		w.fail(msg, errcode.Unsupported)
		return
	}
	r, ok := asPWMRamp(msg.Payload)
	if !ok {
		w.fail(msg, errcode.InvalidPayload)
		return
	}
	cur, err := w.dev.PWMRead(cap.port, cap.pin)
	if err != nil {
		w.fail(msg, errcode.MapDriverErr(err))
		return
	}
	tick := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}
	var lastErr error
	final := cur
	ramp.StartLinear(uint16(cur), uint16(r.To), 255, r.DurationMS, r.Steps, tick, func(level uint16) {
		if err := w.dev.PWMWrite(cap.port, cap.pin, uint8(level)); err != nil {
			lastErr = err
			return
		}
		final = uint8(level)
	})
	if lastErr != nil {
		w.fail(msg, errcode.MapDriverErr(lastErr))
		return
	}
	w.publishValue(cap, types.PWMValue{Duty: final})
	w.ok(msg)
}

func (w *worker) handleSet(msg *bus.Message, cap *capability) {
	switch cap.kind {
	case types.KindDigitalOut:
		set, ok := asDigitalSet(msg.Payload)
		if !ok {
			w.fail(msg, errcode.InvalidPayload)
			return
		}
		if err := w.dev.DigitalWrite(cap.port, cap.pin, set.Level); err != nil {
			w.fail(msg, errcode.MapDriverErr(err))
			return
		}
		w.publishValue(cap, types.DigitalValue{Level: set.Level, TS: nowMS()})
		w.ok(msg)

	case types.KindPWM:
		set, ok := asPWMSet(msg.Payload)
		if !ok {
			w.fail(msg, errcode.InvalidPayload)
			return
		}
		if err := w.dev.PWMWrite(cap.port, cap.pin, set.Duty); err != nil {
			w.fail(msg, errcode.MapDriverErr(err))
			return
		}
		w.publishValue(cap, types.PWMValue{Duty: set.Duty})
		w.ok(msg)

	case types.KindServo:
		set, ok := asServoSet(msg.Payload)
		if !ok || (set.Angle == nil && set.PulseUS == nil) {
			w.fail(msg, errcode.InvalidPayload)
			return
		}
		var err error
		val := types.ServoValue{}
		if set.PulseUS != nil {
			err = w.dev.SetServoPulse(cap.port, cap.pin, *set.PulseUS)
			val.PulseUS = *set.PulseUS
		} else {
			err = w.dev.SetServoAngle(cap.port, cap.pin, *set.Angle)
			val.Angle = *set.Angle
		}
		if err != nil {
			w.fail(msg, errcode.MapDriverErr(err))
			return
		}
		w.publishValue(cap, val)
		w.ok(msg)

	case types.KindLEDStrip:
		set, ok := asLEDStripSet(msg.Payload)
		if !ok {
			w.fail(msg, errcode.InvalidPayload)
			return
		}
		if err := w.applyStrip(cap.strip, set); err != nil {
			w.fail(msg, errcode.MapDriverErr(err))
			return
		}
		w.ok(msg)

	default:
		w.fail(msg, errcode.Unsupported)
	}
}

func (w *worker) applyStrip(s *pbhub.Strip, set types.LEDStripSet) error {
	if set.Brightness != nil {
		if err := s.SetBrightness(*set.Brightness); err != nil {
			return err
		}
	}
	switch {
	case set.Fill:
		return s.Fill(set.Color)
	case set.Count == 1:
		return s.SetPixel(set.Start, set.Color)
	case set.Count > 1:
		return s.SetRange(set.Start, set.Count, set.Color)
	}
	return nil
}

func (w *worker) publishValue(cap *capability, payload any) {
	w.conn.Publish(w.conn.NewMessage(topicValue(cap.kind, cap.name), payload, true))
}

func (w *worker) ok(msg *bus.Message) {
	w.conn.Reply(msg, types.OKReply{OK: true}, false)
}

func (w *worker) fail(msg *bus.Message, code errcode.Code) {
	w.conn.Reply(msg, types.ErrorReply{Error: string(code)}, false)
}

func nowMS() int64 { return timex.NowMs() }

// ---- payload coercion ----
//
// Local publishers send typed structs; the bridge hands us decoded JSON
// objects. Both shapes are accepted.

func decodeMap[T any](m map[string]any) (T, bool) {
	var out T
	raw, err := json.Marshal(m)
	if err != nil {
		return out, false
	}
	if json.Unmarshal(raw, &out) != nil {
		return out, false
	}
	return out, true
}

func asDigitalSet(p any) (types.DigitalSet, bool) {
	switch v := p.(type) {
	case types.DigitalSet:
		return v, true
	case *types.DigitalSet:
		return *v, true
	case map[string]any:
		return decodeMap[types.DigitalSet](v)
	}
	return types.DigitalSet{}, false
}

func asPWMSet(p any) (types.PWMSet, bool) {
	switch v := p.(type) {
	case types.PWMSet:
		return v, true
	case *types.PWMSet:
		return *v, true
	case map[string]any:
		return decodeMap[types.PWMSet](v)
	}
	return types.PWMSet{}, false
}

func asPWMRamp(p any) (types.PWMRamp, bool) {
	switch v := p.(type) {
	case types.PWMRamp:
		return v, true
	case *types.PWMRamp:
		return *v, true
	case map[string]any:
		return decodeMap[types.PWMRamp](v)
	}
	return types.PWMRamp{}, false
}

func asServoSet(p any) (types.ServoSet, bool) {
	switch v := p.(type) {
	case types.ServoSet:
		return v, true
	case *types.ServoSet:
		return *v, true
	case map[string]any:
		return decodeMap[types.ServoSet](v)
	}
	return types.ServoSet{}, false
}

func asLEDStripSet(p any) (types.LEDStripSet, bool) {
	switch v := p.(type) {
	case types.LEDStripSet:
		return v, true
	case *types.LEDStripSet:
		return *v, true
	case map[string]any:
		return decodeMap[types.LEDStripSet](v)
	}
	return types.LEDStripSet{}, false
}
