package events

import (
	"sync"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/example/foodorder/pkg/clock"
	"go.uber.org/zap"
)

const (
	TypeCreated = "created"
	TypeUpdated = "updated"
)

// Event is the frame every subscriber receives. Payload is informational;
// consumers refetch state instead of trusting it.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`
}

// Sink receives events for one subscriber, typically an open HTTP stream.
type Sink interface {
	Send(Event) error
}

type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error {
	return f(e)
}

// Notifier fans lifecycle events out to the sinks subscribed at publish
// time. Delivery is synchronous and best-effort: there is no buffer and no
// replay.
type Notifier struct {
	stream *eventstream.EventStream
	clock  clock.Clock
	logger *zap.Logger
}

func NewNotifier(clk clock.Clock, logger *zap.Logger) *Notifier {
	return &Notifier{
		stream: eventstream.NewEventStream(),
		clock:  clk,
		logger: logger,
	}
}

// Emit wraps payload and delivers it to every current subscriber before
// returning. Subscriber failures are logged and swallowed.
func (n *Notifier) Emit(eventType string, payload interface{}) {
	n.stream.Publish(Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: n.clock.Now().UnixMilli(),
	})
}

type Subscription struct {
	sub  *eventstream.Subscription
	once sync.Once
}

func (n *Notifier) Subscribe(sink Sink) *Subscription {
	sub := n.stream.Subscribe(func(evt interface{}) {
		e, ok := evt.(Event)
		if !ok {
			return
		}
		n.deliver(sink, e)
	})
	return &Subscription{sub: sub}
}

func (n *Notifier) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	s.once.Do(func() {
		n.stream.Unsubscribe(s.sub)
	})
}

func (n *Notifier) Subscribers() int {
	return int(n.stream.Length())
}

func (n *Notifier) deliver(sink Sink, e Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Event subscriber panicked",
				zap.String("type", e.Type),
				zap.Any("panic", r))
		}
	}()

	if err := sink.Send(e); err != nil {
		n.logger.Warn("Event subscriber write failed",
			zap.String("type", e.Type),
			zap.Error(err))
	}
}
