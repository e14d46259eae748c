// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/geo"
	"github.com/jason-s-yu/geohunt/internal/middleware"
	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/jason-s-yu/geohunt/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	wsSubprotocol = "lobby"
	pingInterval  = 30 * time.Second
	writeTimeout  = 5 * time.Second
)

// lobbyConn is one client's socket. out carries direct replies; lobby
// snapshots come from the store subscription.
type lobbyConn struct {
	c      *websocket.Conn
	code   string
	userID uuid.UUID
	out    chan map[string]interface{}
	log    logrus.FieldLogger
}

// send queues a reply without blocking. Replies are dropped when the client
// is not keeping up.
func (conn *lobbyConn) send(msg map[string]interface{}) {
	select {
	case conn.out <- msg:
	default:
		conn.log.Warnf("outgoing buffer full, dropped %v message", msg["type"])
	}
}

func (conn *lobbyConn) sendError(msg string) {
	conn.send(map[string]interface{}{"type": "error", "message": msg})
}

type wsRequest struct {
	Type     string     `json:"type"`
	Position *geo.Point `json:"position"`
}

// LobbyWSHandler streams lobby_state snapshots to a member of the lobby and
// accepts location and ping messages. Dropping the connection marks the
// player offline.
func LobbyWSHandler(api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := lobbyCode(r)
		userID := middleware.UserID(r.Context())

		l, err := api.Lobbies.GetLobby(r.Context(), code)
		if err != nil {
			writeError(w, api.Log, err)
			return
		}
		if !l.HasPlayer(userID) {
			http.Error(w, "not a member of this lobby", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{wsSubprotocol},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			api.Log.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.CloseNow()

		if c.Subprotocol() != wsSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
			return
		}

		middleware.LogWebSocketConnect(api.Log, r.RemoteAddr, r.URL.Path)
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sub, err := api.Lobbies.Subscribe(ctx, code, userID)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrNotFound):
				c.Close(InvalidLobbyCodeError, "lobby does not exist")
			default:
				c.Close(websocket.StatusInternalError, "subscribe failed")
			}
			return
		}

		conn := &lobbyConn{
			c:      c,
			code:   code,
			userID: userID,
			out:    make(chan map[string]interface{}, 16),
			log:    api.Log.WithFields(logrus.Fields{"lobby": code, "user": userID.String()}),
		}

		go func() {
			writePump(ctx, conn, sub)
			cancel()
		}()
		err = readPump(ctx, api, conn)
		cancel()
		middleware.LogWebSocketDisconnect(api.Log, r.RemoteAddr, r.URL.Path, err)
	}
}

// readPump handles client messages until the socket closes. A normal close
// returns nil.
func readPump(ctx context.Context, api *API, conn *lobbyConn) error {
	limiter := rate.NewLimiter(api.LocationRate, api.LocationBurst)
	for {
		typ, data, err := conn.c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			conn.sendError("Invalid JSON format")
			continue
		}

		switch req.Type {
		case "ping":
			conn.send(map[string]interface{}{"type": "pong"})
		case "location":
			if !limiter.Allow() {
				conn.log.Debug("location sample throttled")
				continue
			}
			in, err := api.Lobbies.UpdateLocation(ctx, conn.code, conn.userID, req.Position)
			if errors.Is(err, models.ErrTransient) {
				// The next sample is the retry.
				conn.log.Warnf("location update skipped: %v", err)
				continue
			}
			if err != nil {
				conn.sendError(err.Error())
				continue
			}
			conn.send(map[string]interface{}{"type": "location_ack", "inRange": in})
		default:
			conn.sendError("unknown message type")
		}
	}
}

// writePump forwards snapshots and replies to the client and keeps the
// connection alive with pings.
func writePump(ctx context.Context, conn *lobbyConn, sub *store.Subscription) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			if snap == nil {
				_ = write(ctx, conn.c, map[string]interface{}{"type": "lobby_closed"})
				conn.c.Close(LobbyClosedError, "lobby closed")
				return
			}
			if !snap.HasPlayer(conn.userID) {
				conn.c.Close(NotAMemberError, "no longer a member of this lobby")
				return
			}
			if err := write(ctx, conn.c, map[string]interface{}{"type": "lobby_state", "lobby": snap}); err != nil {
				conn.log.Debugf("write failed: %v", err)
				return
			}

		case msg := <-conn.out:
			if err := write(ctx, conn.c, msg); err != nil {
				conn.log.Debugf("write failed: %v", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.c.Ping(pingCtx)
			cancel()
			if err != nil {
				conn.log.Debugf("ping failed: %v", err)
				return
			}
		}
	}
}

func write(ctx context.Context, c *websocket.Conn, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, v)
}
