package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"idlegate/internal/broadcast"
	"idlegate/internal/constants"
	"idlegate/internal/idle"
	"idlegate/internal/security"
	"idlegate/internal/session"
	"idlegate/internal/storage"
	"idlegate/internal/types"
)

// tab bridges one browser tab's socket to its idle coordinator. The
// coordinator only ever talks back through onChange and navigate, which
// never block; writeLoop is the socket's single writer.
type tab struct {
	s           *Server
	id          string
	sess        *session.Session
	remote      string
	connectedAt time.Time
	conn        *websocket.Conn
	limiter     *rate.Limiter
	channel     broadcast.Channel
	coord       *idle.Coordinator

	dirty chan struct{}
	nav   chan leave
	errs  chan string
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	route   string
	state   idle.State
	leaving string
}

// leave is the last thing a tab is told: where to go and why.
type leave struct {
	route  string
	reason string
}

const reasonIdle = "idle timeout"

func (s *Server) joinChannel(sessionID string) broadcast.Channel {
	name := constants.BroadcastChannel + ":" + sessionID
	if rs, ok := s.IdleStore.(*storage.RedisStore); ok {
		ctx, cancel := context.WithTimeout(context.Background(), constants.StorageTimeout)
		defer cancel()
		ch, err := broadcast.JoinRedis(ctx, rs.Client(), name)
		if err != nil {
			log.Printf("⚠️  Broadcast unavailable for %s, syncing through storage only: %v", sessionID, err)
			return broadcast.Noop()
		}
		return ch
	}
	return s.Hub.Join(name)
}

func (s *Server) HandleTab(w http.ResponseWriter, r *http.Request) {
	clientIP := security.GetClientIP(r)

	if !s.ConnLimiter.TryConnect(clientIP) {
		s.AuditLogger.LogConnectionLimit(clientIP)
		writeError(w, http.StatusTooManyRequests, constants.MsgConnectionLimit)
		return
	}
	defer s.ConnLimiter.Disconnect(clientIP)

	sess, ok := s.sessionFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, constants.MsgUnauthorized)
		return
	}

	route := r.URL.Query().Get("route")
	if route == "" {
		route = constants.DefaultRoute
	}
	if !security.ValidateRoute(route) {
		s.AuditLogger.LogInvalidRequest(clientIP, r.URL.Path, "bad route")
		writeError(w, http.StatusBadRequest, "Invalid route")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  constants.WSBufferSize,
		WriteBufferSize: constants.WSBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return security.ValidateOrigin(r, s.Config.Server.AllowedOrigins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade error: %v", err)
		return
	}

	t := &tab{
		s:           s,
		id:          uuid.New().String(),
		sess:        sess,
		remote:      clientIP,
		connectedAt: time.Now(),
		conn:        conn,
		limiter:     rate.NewLimiter(rate.Limit(constants.ActivityRate), constants.ActivityBurst),
		channel:     s.joinChannel(sess.ID),
		dirty:       make(chan struct{}, 1),
		nav:         make(chan leave, 1),
		errs:        make(chan string, 4),
		done:        make(chan struct{}),
		route:       route,
	}

	// The session clock was seeded at sign-in; opening a tab is not one.
	cfg := s.Config.IdleConfig()
	cfg.TouchOnSignIn = false

	t.coord, err = idle.New(cfg, idle.Deps{
		ID:        t.id,
		Store:     s.idleStateFor(sess.ID),
		Channel:   t.channel,
		Auth:      idle.AuthFunc(t.endSession),
		Navigator: idle.NavigatorFunc(func(route string) { t.navigate(route, reasonIdle) }),
		OnChange:  t.onChange,
	})
	if err != nil {
		log.Printf("❌ Idle coordinator for %s: %v", t.id, err)
		t.channel.Close()
		conn.Close()
		return
	}

	s.Tabs.Add(sess.ID, t.id, t)
	s.AuditLogger.LogTabConnect(clientIP, sess.ID, t.id)
	log.Printf("🔌 Tab connected: %s (%s) on %s", t.id, sess.UserID, route)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		t.writeLoop()
	}()

	t.coord.SetRoute(route)
	t.coord.SetUser(sess.UserID)
	// a tab opened on the exempt route never emits on its own
	t.onChange(t.coord.State())

	reason := t.readLoop()

	t.close()
	<-writerDone
	t.coord.Close()
	t.channel.Close()
	s.Tabs.Remove(sess.ID, t.id)
	s.AuditLogger.LogTabDisconnect(clientIP, sess.ID, t.id, reason)
	log.Printf("🔌 Tab disconnected: %s (%s)", t.id, reason)
}

func (t *tab) close() {
	t.once.Do(func() { close(t.done) })
}

func (t *tab) onChange(st idle.State) {
	t.mu.Lock()
	t.state = st
	t.mu.Unlock()

	select {
	case t.dirty <- struct{}{}:
	default:
	}
}

func (t *tab) navigate(route, reason string) {
	t.mu.Lock()
	t.route = route
	if t.leaving == "" {
		t.leaving = reason
	}
	t.mu.Unlock()

	select {
	case t.nav <- leave{route: route, reason: reason}:
	default:
	}
}

// endSession is the coordinator's sign-out: the session ends for every tab.
func (t *tab) endSession(ctx context.Context) error {
	t.s.Tabs.RecordForcedLogout(t.sess.ID, t.id, reasonIdle)
	t.s.AuditLogger.LogIdleLogout(t.sess.UserID, t.sess.ID, t.id, reasonIdle)
	t.s.endSession(t.sess.ID, t.sess.UserID, reasonIdle)
	return ctx.Err()
}

// SignOut ends the tab after an explicit logout or session expiry.
func (t *tab) SignOut(reason string) {
	t.mu.Lock()
	if t.leaving == "" {
		t.leaving = reason
	}
	t.mu.Unlock()

	t.coord.SetUser("")
	log.Printf("🚪 Tab %s leaving: %s", t.id, reason)
	t.navigate(t.s.Config.Idle.ExemptRoute, reason)
}

func (t *tab) Info() types.TabInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return types.TabInfo{
		ID:          t.id,
		Route:       t.route,
		Phase:       string(t.state.Phase),
		SecondsLeft: t.state.SecondsLeft,
		Hidden:      t.state.Hidden,
		ConnectedAt: t.connectedAt,
		RemoteAddr:  t.remote,
	}
}

func (t *tab) stateMessage() types.StateMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := types.StateMessage{
		Type:        types.TabMsgState,
		TabID:       t.id,
		Phase:       string(t.state.Phase),
		SecondsLeft: t.state.SecondsLeft,
		Active:      t.state.Active,
		Hidden:      t.state.Hidden,
		Route:       t.route,
		MsLeft:      t.state.MsBeforeLogout,
		IdleMaxMs:   t.state.IdleMax,
	}
	// a tab on its way out reports why, whatever the coordinator says
	if t.leaving != "" {
		msg.Phase = string(idle.PhaseLoggedOut)
		msg.SecondsLeft = 0
		msg.MsLeft = 0
	}
	if !t.state.LogoutAt.IsZero() {
		msg.LogoutAtMs = t.state.LogoutAt.UnixMilli()
	}
	return msg
}

func (t *tab) sendError(msg string) {
	select {
	case t.errs <- msg:
	default:
	}
}

func (t *tab) readLoop() string {
	t.conn.SetReadLimit(int64(constants.MaxWSMessageSize))
	t.conn.SetReadDeadline(time.Now().Add(constants.WSPongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(constants.WSPongWait))
	})

	for {
		var msg types.TabMessage
		if err := t.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "closed by client"
			}
			select {
			case <-t.done:
				return "signed out"
			default:
			}
			return err.Error()
		}
		t.conn.SetReadDeadline(time.Now().Add(constants.WSPongWait))
		t.handle(msg)
	}
}

func (t *tab) handle(msg types.TabMessage) {
	switch msg.Type {
	case types.TabMsgActivity:
		kind, ok := idle.ParseActivityKind(msg.Kind)
		if !ok {
			t.sendError("unknown activity kind")
			return
		}
		if !t.limiter.Allow() {
			return
		}
		t.coord.Activity(kind)
	case types.TabMsgVisibility:
		t.coord.SetHidden(msg.Hidden)
	case types.TabMsgRoute:
		if !security.ValidateRoute(msg.Route) {
			t.sendError("invalid route")
			return
		}
		t.mu.Lock()
		t.route = msg.Route
		t.mu.Unlock()
		t.coord.SetRoute(msg.Route)
	case types.TabMsgExtend:
		t.coord.ExtendSession()
	default:
		t.sendError("unknown message type")
	}
}

func (t *tab) write(v interface{}) error {
	t.conn.SetWriteDeadline(time.Now().Add(constants.WSWriteTimeout))
	return t.conn.WriteJSON(v)
}

func (t *tab) writeClose(text string) {
	deadline := time.Now().Add(constants.WSWriteTimeout)
	t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, text), deadline)
}

func (t *tab) writeLoop() {
	ticker := time.NewTicker(constants.WSPingInterval)
	defer ticker.Stop()
	defer t.conn.Close()

	for {
		select {
		case <-t.done:
			t.writeClose("bye")
			return

		case <-t.dirty:
			if err := t.write(t.stateMessage()); err != nil {
				return
			}

		case text := <-t.errs:
			if err := t.write(types.ErrorMessage{Type: types.TabMsgError, Message: text}); err != nil {
				return
			}

		case l := <-t.nav:
			// last state first, so the client sees why it is leaving
			select {
			case <-t.dirty:
			default:
			}
			if err := t.write(t.stateMessage()); err != nil {
				return
			}
			if err := t.write(types.NavigateMessage{Type: types.TabMsgNavigate, Route: l.route, Reason: l.reason}); err != nil {
				return
			}
			t.close()
			t.writeClose("signed out")
			return

		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(constants.WSWriteTimeout))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
