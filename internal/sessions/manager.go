// Package sessions owns live client connections: it authenticates them, joins
// them to rooms, routes their events to the chat and HSE services and fans the
// results out to every connection in the affected rooms.
package sessions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"

	"crewlink/infrastructure"
	"crewlink/internal/chat"
	"crewlink/internal/hse"
	"crewlink/internal/models"
	"crewlink/internal/presence"
)

var (
	ErrShuttingDown     = errors.New("session manager is shutting down")
	ErrConnectionClosed = errors.New("connection closed")
	// ErrMalformedFrame is returned by a Transport for a frame that is not a
	// valid envelope. The connection stays usable.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Verifier authenticates a bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

type Options struct {
	HeartbeatInterval time.Duration
	SendBuffer        int
	EventsPerSecond   float64
	EventBurst        int
	WriteTimeout      time.Duration
}

func (o *Options) defaults() {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.EventsPerSecond <= 0 {
		o.EventsPerSecond = 20
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 40
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
}

type Manager struct {
	verifier Verifier
	chat     *chat.Service
	hse      *hse.Service
	tracker  *presence.Tracker
	recorder presence.Recorder
	metrics  *Metrics
	logger   *slog.Logger
	opts     Options

	rooms        *roomRegistry
	channelLocks *keyedMutex
	userLocks    *keyedMutex
	handlers     map[string]handlerFunc

	mu      sync.RWMutex
	conns   map[string]*Conn
	closed  bool
	serveWG sync.WaitGroup
	now     func() time.Time
	newID   func() string
}

func NewManager(
	verifier Verifier,
	chatService *chat.Service,
	hseService *hse.Service,
	tracker *presence.Tracker,
	recorder presence.Recorder,
	metrics *Metrics,
	logger *slog.Logger,
	opts Options,
) *Manager {
	opts.defaults()
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	m := &Manager{
		verifier:     verifier,
		chat:         chatService,
		hse:          hseService,
		tracker:      tracker,
		recorder:     recorder,
		metrics:      metrics,
		logger:       logger,
		opts:         opts,
		rooms:        newRoomRegistry(),
		channelLocks: newKeyedMutex(),
		userLocks:    newKeyedMutex(),
		conns:        make(map[string]*Conn),
		now:          func() time.Time { return time.Now().UTC() },
		newID:        func() string { return uuid.NewString() },
	}
	m.handlers = m.handlerTable()
	return m
}

// Authenticate verifies token and returns a connection in the
// authenticating state. No transport is attached yet, so a failure here
// refuses the client before the handshake completes.
func (m *Manager) Authenticate(ctx context.Context, token string) (*Conn, error) {
	connCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ID:      m.newID(),
		send:    make(chan Outbound, m.opts.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(m.opts.EventsPerSecond), m.opts.EventBurst),
		ctx:     connCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.advance(StateAuthenticating)

	identity, err := m.verifier.Verify(ctx, token)
	if err != nil {
		c.close()
		m.logger.InfoContext(ctx, "connection refused", slog.String("conn_id", c.ID), slog.Any("error", err))
		if infrastructure.CodeOf(err) != codes.Unauthenticated {
			return nil, infrastructure.Authentication("authentication failed", err)
		}
		return nil, err
	}
	c.User = *identity
	return c, nil
}

// Release discards an authenticated connection that will not be served, for
// example when the protocol upgrade fails.
func (m *Manager) Release(c *Conn) {
	c.close()
}

// Serve runs an authenticated connection until its transport fails or the
// connection is torn down. It always tears the connection down before it
// returns.
func (m *Manager) Serve(ctx context.Context, c *Conn, t Transport) error {
	if c.State() != StateAuthenticating {
		return infrastructure.Authentication("connection is not authenticated", nil)
	}
	c.transport = t

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		c.close()
		_ = t.Close("server shutting down")
		return ErrShuttingDown
	}
	m.conns[c.ID] = c
	m.serveWG.Add(1)
	m.mu.Unlock()
	defer m.serveWG.Done()
	m.metrics.Connections.Inc()

	// Stop the connection when the caller's context ends.
	stop := context.AfterFunc(ctx, func() { m.teardown(c, "context done") })
	defer stop()

	if err := m.join(c); err != nil {
		m.teardown(c, "join failed")
		return err
	}

	c.writerWG.Add(1)
	go c.writeLoop(m.opts.WriteTimeout, func(err error) {
		m.logger.DebugContext(c.ctx, "write failed", slog.String("conn_id", c.ID), slog.Any("error", err))
		go m.teardown(c, "write failed")
	})

	m.setOnline(c)
	c.advance(StateActive)

	err := m.readLoop(c)
	m.teardown(c, "read closed")
	c.writerWG.Wait()
	return err
}

// join loads the user's channels and places the connection in its rooms.
func (m *Manager) join(c *Conn) error {
	channels, err := m.chat.AccessibleChannels(c.ctx, c.User)
	if err != nil {
		return err
	}
	rooms := scopeRooms(c.User)
	for _, ch := range channels {
		rooms = append(rooms, ChannelRoom(ch.ID))
	}
	m.rooms.join(c, rooms...)
	if !c.advance(StateJoined) {
		m.rooms.leaveAll(c)
		return ErrConnectionClosed
	}

	if channels == nil {
		channels = []*models.Channel{}
	}
	c.Send(Outbound{Event: EventConnected, Data: ConnectedData{
		UserID:       c.User.UserID,
		ConnectionID: c.ID,
		Channels:     channels,
	}})
	return nil
}

func (m *Manager) readLoop(c *Conn) error {
	for {
		env, err := c.transport.Read(c.ctx)
		malformed := errors.Is(err, ErrMalformedFrame)
		if err != nil && !malformed {
			if c.State() == StateDisconnected || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if c.State() != StateActive {
			return nil
		}
		if !c.limiter.Allow() {
			m.metrics.Events.WithLabelValues(m.eventLabel(env.Event), "rate_limited").Inc()
			m.deliver(c, errorEvent(env.Event, infrastructure.New(codes.ResourceExhausted, "too many events, slow down")))
			continue
		}
		if malformed {
			m.metrics.Events.WithLabelValues("unknown", "rejected").Inc()
			m.deliver(c, errorEvent("", infrastructure.Validation("invalid frame")))
			continue
		}
		m.dispatch(c, env)
	}
}

// setOnline registers the connection with the presence tracker and announces
// the user when this is their first connection.
func (m *Manager) setOnline(c *Conn) {
	unlock := m.userLocks.Lock(c.User.UserID)
	defer unlock()

	if c.State() == StateDisconnected || !m.tracker.Add(c.User.UserID, c.ID) {
		return
	}
	now := m.now()
	m.metrics.OnlineUsers.Inc()
	m.broadcast(Outbound{Event: EventPresenceUpdate, Data: PresenceData{
		UserID: c.User.UserID, Status: "online", LastSeen: now,
	}}, m.skipUser(c.User.UserID), m.rooms.roomsOf(c)...)
	m.record(c.ctx, c.User.UserID, true, now)
}

// teardown disconnects c exactly once. When c was the user's last
// connection, the offline transition is broadcast to every room it was in.
func (m *Manager) teardown(c *Conn, reason string) {
	if !c.close() {
		return
	}

	m.mu.Lock()
	_, registered := m.conns[c.ID]
	delete(m.conns, c.ID)
	m.mu.Unlock()

	unlock := m.userLocks.Lock(c.User.UserID)
	rooms := m.rooms.leaveAll(c)
	if m.tracker.Remove(c.User.UserID, c.ID) {
		now := m.now()
		m.metrics.OnlineUsers.Dec()
		m.broadcast(Outbound{Event: EventPresenceUpdate, Data: PresenceData{
			UserID: c.User.UserID, Status: "offline", LastSeen: now,
		}}, nil, rooms...)
		m.record(context.Background(), c.User.UserID, false, now)
	}
	unlock()

	if registered {
		m.metrics.Connections.Dec()
	}
	if c.transport != nil {
		if err := c.transport.Close(reason); err != nil {
			m.logger.Debug("transport close failed", slog.String("conn_id", c.ID), slog.Any("error", err))
		}
	}
	m.logger.Debug("connection closed", slog.String("conn_id", c.ID), slog.Int64("user_id", c.User.UserID), slog.String("reason", reason))
}

func (m *Manager) record(ctx context.Context, userID int64, online bool, at time.Time) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordStatus(ctx, userID, online, at); err != nil {
		m.logger.WarnContext(ctx, "failed to record presence", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

// Run refreshes lastSeen for online users every heartbeat interval until ctx
// is done. Missing heartbeats never mark a user offline.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.heartbeat(ctx)
		}
	}
}

func (m *Manager) heartbeat(ctx context.Context) {
	users := m.tracker.OnlineUsers()
	m.metrics.OnlineUsers.Set(float64(len(users)))
	if m.recorder == nil || len(users) == 0 {
		return
	}
	if err := m.recorder.RecordLastSeen(ctx, users, m.now()); err != nil {
		m.logger.WarnContext(ctx, "failed to refresh last seen", slog.Int("users", len(users)), slog.Any("error", err))
	}
}

// Shutdown disconnects every connection and waits for their Serve calls to
// return or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	conns := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		m.teardown(c, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		m.serveWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectionCount returns the number of registered connections.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// broadcast delivers ev to every connection in rooms once. A connection that
// cannot keep up is dropped and resynchronizes on reconnect; the others still
// receive the frame.
func (m *Manager) broadcast(ev Outbound, skip func(*Conn) bool, rooms ...Room) {
	for _, c := range m.rooms.conns(skip, rooms...) {
		m.deliver(c, ev)
	}
}

func (m *Manager) deliver(c *Conn, ev Outbound) {
	if c.Send(ev) {
		return
	}
	if c.State() == StateDisconnected {
		return
	}
	m.metrics.DroppedFrames.Inc()
	m.logger.Warn("dropping slow connection", slog.String("conn_id", c.ID), slog.Int64("user_id", c.User.UserID))
	go m.teardown(c, "send buffer full")
}

func (m *Manager) skipUser(userID int64) func(*Conn) bool {
	return func(c *Conn) bool { return c.User.UserID == userID }
}

// userConns returns the live connections of a user.
func (m *Manager) userConns(userID int64) []*Conn {
	return m.rooms.conns(nil, UserRoom(userID))
}
