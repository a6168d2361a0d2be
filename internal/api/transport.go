package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"crewlink/internal/sessions"
)

const maxFrameBytes = 64 << 10

// wsTransport frames session events as JSON text messages.
type wsTransport struct {
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	conn.SetReadLimit(maxFrameBytes)
	return &wsTransport{conn: conn}
}

// Read returns the next envelope. Undecodable frames are reported with
// sessions.ErrMalformedFrame instead of closing the socket as wsjson.Read does.
func (t *wsTransport) Read(ctx context.Context) (sessions.Envelope, error) {
	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		if s := websocket.CloseStatus(err); s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway {
			return sessions.Envelope{}, errors.Join(errClientClosed, err)
		}
		return sessions.Envelope{}, err
	}
	if typ != websocket.MessageText {
		return sessions.Envelope{}, fmt.Errorf("%w: expected a text frame", sessions.ErrMalformedFrame)
	}
	var env sessions.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return sessions.Envelope{}, fmt.Errorf("%w: %v", sessions.ErrMalformedFrame, err)
	}
	return env, nil
}

func (t *wsTransport) Write(ctx context.Context, ev sessions.Outbound) error {
	return wsjson.Write(ctx, t.conn, ev)
}

func (t *wsTransport) Close(reason string) error {
	if len(reason) > 120 {
		reason = reason[:120]
	}
	return t.conn.Close(websocket.StatusNormalClosure, reason)
}

var errClientClosed = errors.New("client closed connection")
