package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"PriceLens/internal/metrics"
	"PriceLens/internal/model"
	"PriceLens/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamRequest is one input snapshot sent by the client.
type streamRequest struct {
	Symbol string `json:"symbol"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// queuedRun is a snapshot whose trigger position is already reserved.
type queuedRun struct {
	seq uint64
	in  pipeline.Input
}

// streamConn is one websocket consumer with its own last-trigger-wins session.
// At most one run is in flight and one is pending; a newer snapshot replaces the pending one.
type streamConn struct {
	conn    *websocket.Conn
	send    chan model.Views
	pending chan queuedRun
	done    chan struct{}
	logger  *zap.Logger
}

// stream handles GET /api/v1/stream. Each received snapshot triggers a run;
// each applied triple is pushed back as JSON.
func (s *Server) stream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sc := &streamConn{
		conn:    ws,
		send:    make(chan model.Views, 16),
		pending: make(chan queuedRun, 1),
		done:    make(chan struct{}),
		logger:  s.logger.With(zap.String("conn_id", uuid.NewString())),
	}
	sc.logger.Info("stream connected", zap.String("remote_addr", ws.RemoteAddr().String()))

	session := pipeline.NewSession(s.opts.Runner, sc.deliver, s.opts.Metrics)
	ctx, cancel := context.WithCancel(context.Background())

	go sc.writePump()
	go sc.runPump(ctx, session)
	sc.readPump(s, session, cancel)
}

// deliver is the session sink. It runs under the session lock, so views are queued in trigger order.
func (sc *streamConn) deliver(v model.Views) {
	select {
	case sc.send <- v:
	case <-sc.done:
	}
}

// enqueue hands q to the run pump, replacing a pending snapshot that has not started.
// readPump is the only producer.
func (sc *streamConn) enqueue(q queuedRun, m *metrics.Metrics) {
	for {
		select {
		case sc.pending <- q:
			return
		case old := <-sc.pending:
			m.IncStale()
			sc.logger.Debug("pending snapshot superseded", zap.Uint64("seq", old.seq))
		}
	}
}

func (sc *streamConn) runPump(ctx context.Context, session *pipeline.Session) {
	for {
		select {
		case q := <-sc.pending:
			session.Complete(ctx, q.seq, q.in)
		case <-ctx.Done():
			return
		}
	}
}

func (sc *streamConn) readPump(s *Server, session *pipeline.Session, cancel context.CancelFunc) {
	defer func() {
		cancel()
		close(sc.done)
		sc.conn.Close()
		sc.logger.Info("stream disconnected")
	}()

	sc.conn.SetReadLimit(maxMessageSize)
	sc.conn.SetReadDeadline(time.Now().Add(pongWait))
	sc.conn.SetPongHandler(func(string) error { sc.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := sc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sc.logger.Warn("unexpected websocket close", zap.Error(err))
			}
			return
		}

		var req streamRequest
		if err := json.Unmarshal(message, &req); err != nil {
			sc.logger.Debug("ignoring malformed snapshot", zap.Error(err))
			continue
		}
		in, err := s.parseInput(req.Symbol, req.Start, req.End)
		if err != nil {
			// Zero bounds make the run fail as invalid input, in trigger order.
			sc.logger.Debug("malformed snapshot dates", zap.Error(err))
			in.Start, in.End = model.Date{}, model.Date{}
		}
		sc.enqueue(queuedRun{seq: session.Begin(), in: in}, s.opts.Metrics)
	}
}

func (sc *streamConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sc.conn.Close()
	}()
	for {
		select {
		case v := <-sc.send:
			sc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sc.conn.WriteJSON(v); err != nil {
				sc.logger.Warn("write views failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			sc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sc.logger.Debug("failed to send ping", zap.Error(err))
				return
			}
		case <-sc.done:
			return
		}
	}
}
