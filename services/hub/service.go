// services/hub/service.go
package hub

import (
	"context"
	"time"

	"pbhub-go/bus"
	"pbhub-go/drivers/pbhub"
	"pbhub-go/errcode"
	"pbhub-go/services/hub/config"
	"pbhub-go/types"
	"pbhub-go/x/mathx"
	"pbhub-go/x/timex"

	"tinygo.org/x/drivers"
)

// I2CBusFactory injects configured I²C instances by id.
type I2CBusFactory interface {
	ByID(id string) (drivers.I2C, bool)
}

// Topic layout: hub/state, hub/cap/<kind>/<name>/{info,value,status}, and
// hub/cap/<kind>/<name>/control/<verb> for commands.

func topicState() bus.Topic { return bus.T("hub", "state") }

func topicInfo(kind types.Kind, name string) bus.Topic {
	return bus.T("hub", "cap", string(kind), name, "info")
}

func topicValue(kind types.Kind, name string) bus.Topic {
	return bus.T("hub", "cap", string(kind), name, "value")
}

func topicStatus(kind types.Kind, name string) bus.Topic {
	return bus.T("hub", "cap", string(kind), name, "status")
}

func topicControlAll() bus.Topic {
	return bus.T("hub", "cap", bus.WildcardOne, bus.WildcardOne, "control", bus.WildcardOne)
}

type capKey struct {
	kind types.Kind
	name string
}

// Service owns one worker per configured hub and routes bus commands to them.
type Service struct {
	conn    *bus.Connection
	buses   I2CBusFactory
	workers []*worker
	routes  map[capKey]*worker
}

func New(conn *bus.Connection, buses I2CBusFactory) *Service {
	return &Service{conn: conn, buses: buses, routes: map[capKey]*worker{}}
}

var modeKinds = map[string]types.Kind{
	"din":     types.KindDigitalIn,
	"dout":    types.KindDigitalOut,
	"pwm":     types.KindPWM,
	"adc":     types.KindAnalog,
	"servo":   types.KindServo,
	"rgb":     types.KindLEDStrip,
	"encoder": types.KindEncoder,
}

// probeOps validates a port/pin assignment before any bus traffic.
var probeOps = map[types.Kind]pbhub.Op{
	types.KindDigitalIn:  pbhub.OpDigitalRead,
	types.KindDigitalOut: pbhub.OpDigitalWrite,
	types.KindPWM:        pbhub.OpPWMWrite,
	types.KindAnalog:     pbhub.OpAnalogRead,
	types.KindServo:      pbhub.OpServoAngle,
	types.KindLEDStrip:   pbhub.OpLEDColor,
	types.KindEncoder:    pbhub.OpEncoderRead,
}

// Start builds all configured hubs, applies initial output state, publishes
// retained capability info, and launches the per-hub workers. It fails fast:
// a hub that cannot be reached at start is a configuration error.
func (s *Service) Start(ctx context.Context, cfg config.HubConfig) error {
	for _, hc := range cfg.Hubs {
		w, err := s.buildHub(hc)
		if err != nil {
			s.publishState("error", string(errcode.Of(err)))
			return err
		}
		s.workers = append(s.workers, w)
	}

	sub := s.conn.Subscribe(topicControlAll())
	go s.dispatch(ctx, sub)
	for _, w := range s.workers {
		go w.run(ctx)
	}

	s.publishState("ready", "")
	return nil
}

func (s *Service) buildHub(hc config.Hub) (*worker, error) {
	if hc.BusRef.Type != "" && hc.BusRef.Type != "i2c" {
		return nil, &errcode.E{C: errcode.UnknownBus, Op: "hub.build", Msg: hc.BusRef.Type}
	}
	i2c, ok := s.buses.ByID(hc.BusRef.ID)
	if !ok {
		return nil, &errcode.E{C: errcode.UnknownBus, Op: "hub.build", Msg: hc.BusRef.ID}
	}
	dcfg := pbhub.Config{Address: hc.Addr}
	if err := dcfg.Validate(); err != nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "hub.build", Err: err}
	}
	dev := pbhub.New(i2c, dcfg)
	if _, err := dev.FirmwareVersion(); err != nil {
		return nil, &errcode.E{C: errcode.IOError, Op: "hub.probe", Msg: hc.ID, Err: err}
	}

	w := &worker{
		id:    hc.ID,
		dev:   dev,
		conn:  s.conn,
		reqCh: make(chan *bus.Message, 8),
	}
	for _, pc := range hc.Ports {
		cap, err := w.addPort(pc)
		if err != nil {
			return nil, err
		}
		key := capKey{kind: cap.kind, name: cap.name}
		if _, dup := s.routes[key]; dup {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "hub.build", Msg: "duplicate capability " + cap.name}
		}
		s.routes[key] = w
	}
	return w, nil
}

// dispatch routes control messages to the owning worker without blocking the
// bus; a worker with a full queue replies busy.
func (s *Service) dispatch(ctx context.Context, sub *bus.Subscription) {
	defer s.conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			s.publishState("stopped", "")
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			kind, name, ok := splitControlTopic(msg.Topic)
			if !ok {
				s.conn.Reply(msg, types.ErrorReply{Error: string(errcode.InvalidTopic)}, false)
				continue
			}
			w, ok := s.routes[capKey{kind: kind, name: name}]
			if !ok {
				s.conn.Reply(msg, types.ErrorReply{Error: string(errcode.UnknownCapability)}, false)
				continue
			}
			select {
			case w.reqCh <- msg:
			default:
				s.conn.Reply(msg, types.ErrorReply{Error: string(errcode.Busy)}, false)
			}
		}
	}
}

func splitControlTopic(t bus.Topic) (types.Kind, string, bool) {
	// hub/cap/<kind>/<name>/control/<verb>
	if len(t) != 6 {
		return "", "", false
	}
	kind, ok1 := t[2].(string)
	name, ok2 := t[3].(string)
	if !ok1 || !ok2 {
		return "", "", false
	}
	return types.Kind(kind), name, true
}

func (s *Service) publishState(level, status string) {
	s.conn.Publish(s.conn.NewMessage(topicState(), types.HubState{
		Level:  level,
		Status: status,
		TS:     timex.NowMs(),
	}, true))
}

// clampPoll bounds a configured poll period to something the bus and the hub
// firmware can sustain.
func clampPoll(ms int) time.Duration {
	if ms == 0 {
		ms = 100
	}
	return time.Duration(mathx.Clamp(ms, 10, 10_000)) * time.Millisecond
}
