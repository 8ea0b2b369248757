package gateway

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/example/foodorder/pkg/events"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sseEventConnected = "connected"
	sseEventOrder     = "order"
)

var errStreamClosed = errors.New("stream closed")

// sseSink writes lifecycle events to one open event stream. Writes are
// serialized and bounded by a per-frame deadline where the transport
// supports one.
type sseSink struct {
	mu      sync.Mutex
	w       gin.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
	closed  bool
	done    chan struct{}
}

func newSSESink(w gin.ResponseWriter, timeout time.Duration) *sseSink {
	return &sseSink{
		w:       w,
		rc:      http.NewResponseController(w),
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

func (s *sseSink) Send(e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(sseEventOrder, e)
}

func (s *sseSink) write(event string, data interface{}) error {
	if s.closed {
		return errStreamClosed
	}
	if s.timeout > 0 {
		if err := s.rc.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			s.fail()
			return err
		}
	}
	if err := sse.Encode(s.w, sse.Event{Event: event, Data: data}); err != nil {
		s.fail()
		return err
	}
	s.w.Flush()
	return nil
}

// fail marks the sink closed and releases the handler waiting on done.
// Callers hold mu.
func (s *sseSink) fail() {
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

func (s *sseSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (g *Gateway) streamOrders(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sink := newSSESink(c.Writer, g.config.Gateway.StreamWriteTimeout)
	sink.mu.Lock()
	err := sink.write(sseEventConnected, gin.H{"ok": true})
	sink.mu.Unlock()
	if err != nil {
		g.logger.Debug("Order stream closed before connect", zap.Error(err))
		return
	}

	sub := g.deps.Events.Subscribe(sink)
	defer g.deps.Events.Unsubscribe(sub)

	g.logger.Debug("Order stream opened", zap.String("request_id", c.GetString(ctxRequestID)))
	select {
	case <-c.Request.Context().Done():
	case <-sink.done:
		g.logger.Debug("Order stream write failed", zap.String("request_id", c.GetString(ctxRequestID)))
	}
	sink.close()
	g.logger.Debug("Order stream closed", zap.String("request_id", c.GetString(ctxRequestID)))
}
