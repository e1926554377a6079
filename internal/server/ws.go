package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/meshpreview/internal/preview"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// Message types on the session websocket.
const (
	MsgView    = "view"
	MsgMetrics = "metrics"
	MsgCamera  = "camera"
	MsgRetry   = "retry"
	MsgError   = "error"
)

type wsMessage struct {
	Type    string                `json:"type"`
	View    *preview.View         `json:"view,omitempty"`
	Metrics *preview.SceneMetrics `json:"metrics,omitempty"`
	Error   string                `json:"error,omitempty"`

	cameraRequest
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sess.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	sess.log.Debug("websocket client connected")

	metrics, unsubscribe := sess.subscribe()
	replies := make(chan wsMessage, subscriberBuffer)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go s.readLoop(sess, conn, replies, done, stopped)
	s.writeLoop(sess, conn, metrics, replies, done)

	close(stopped)
	unsubscribe()
	conn.Close()
	sess.log.Debug("websocket client disconnected")
}

// readLoop applies client input until the connection fails.
func (s *Server) readLoop(sess *session, conn *websocket.Conn, replies chan<- wsMessage, done chan<- struct{}, stopped <-chan struct{}) {
	defer close(done)

	reply := func(msg wsMessage) {
		select {
		case replies <- msg:
		case <-stopped:
		}
	}

	conn.SetReadLimit(maxMessageSize)
	pongWait := s.pongWait()
	if pongWait > 0 {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.log.Debug("websocket read", zap.Error(err))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			reply(wsMessage{Type: MsgError, Error: err.Error()})
			continue
		}

		switch msg.Type {
		case MsgCamera:
			applyCamera(sess.panel, msg.cameraRequest)
			continue
		case MsgRetry:
			if err := sess.panel.Retry(); err != nil {
				reply(wsMessage{Type: MsgError, Error: err.Error()})
				continue
			}
		case MsgView:
		default:
			reply(wsMessage{Type: MsgError, Error: "unknown message type " + msg.Type})
			continue
		}
		v := sess.panel.Snapshot()
		reply(wsMessage{Type: MsgView, View: &v})
	}
}

// writeLoop is the only writer on conn.
func (s *Server) writeLoop(sess *session, conn *websocket.Conn, metrics <-chan preview.SceneMetrics, replies <-chan wsMessage, done <-chan struct{}) {
	var ping <-chan time.Time
	if s.opts.PingInterval > 0 {
		t := time.NewTicker(s.opts.PingInterval)
		defer t.Stop()
		ping = t.C
	}

	v := sess.panel.Snapshot()
	if err := writeMessage(conn, wsMessage{Type: MsgView, View: &v}); err != nil {
		return
	}

	for {
		var err error
		select {
		case <-done:
			return
		case sm, ok := <-metrics:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			err = writeMessage(conn, wsMessage{Type: MsgMetrics, Metrics: &sm})
		case msg := <-replies:
			err = writeMessage(conn, msg)
		case <-ping:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
		if err != nil {
			sess.log.Debug("websocket write", zap.Error(err))
			return
		}
	}
}

func (s *Server) pongWait() time.Duration {
	if s.opts.PingInterval <= 0 {
		return 0
	}
	return s.opts.PingInterval * 2
}

func writeMessage(conn *websocket.Conn, msg wsMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
