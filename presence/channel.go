// Package presence delivers a live list of online users over a websocket,
// degrading to REST polling whenever the socket is down and reconnecting
// with exponential backoff. The socket is the source of truth while
// connected; periodic REST snapshots provide eventual convergence.
package presence

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/srinivas112004/go-employee-portal/credentials"
	"github.com/srinivas112004/go-employee-portal/endpoints"
	"github.com/srinivas112004/go-employee-portal/internal/config"
	"github.com/srinivas112004/go-employee-portal/internal/obs"
)

const (
	minBackoff    = 1 * time.Second
	maxBackoff    = 30 * time.Second
	backoffFactor = 1.8

	dialTimeout = 10 * time.Second

	// One-shot delay after Connect before the REST fallback kicks in when
	// the socket has not yet reported open.
	startupFallbackDelay = 900 * time.Millisecond
)

// Conn is the slice of *websocket.Conn the channel uses; injectable for
// tests.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens the presence socket.
type Dialer func(ctx context.Context, socketURL string) (Conn, error)

func defaultDialer(ctx context.Context, socketURL string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, socketURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Snapshot is the observable channel state handed to subscribers.
type Snapshot struct {
	Users     []Entry
	Connected bool
	LastErr   error
}

// Channel owns one presence socket plus its timers, and releases all of
// them on Close.
type Channel struct {
	wsURL        string
	store        *credentials.Store
	resolver     *endpoints.Resolver
	pollInterval time.Duration

	dial      Dialer
	afterFunc func(time.Duration, func()) *time.Timer

	mu             sync.Mutex
	users          []Entry
	connected      bool
	lastErr        error
	backoff        time.Duration
	closed         bool
	conn           Conn
	reconnectTimer *time.Timer
	fallbackTimer  *time.Timer
	pollStop       chan struct{}
	frameSeq       uint64
	subs           []func(Snapshot)
}

type Option func(*Channel)

// WithDialer replaces the websocket dialer (for testing).
func WithDialer(dial Dialer) Option {
	return func(c *Channel) {
		c.dial = dial
	}
}

// WithAfterFunc replaces timer scheduling (for testing backoff).
func WithAfterFunc(afterFunc func(time.Duration, func()) *time.Timer) Option {
	return func(c *Channel) {
		c.afterFunc = afterFunc
	}
}

// WithPollInterval overrides the REST polling cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Channel) {
		c.pollInterval = interval
	}
}

func NewChannel(cfg config.Config, store *credentials.Store, resolver *endpoints.Resolver, options ...Option) (*Channel, error) {
	if cfg == nil {
		return nil, errors.New("[presence.NewChannel] config is required")
	}
	if store == nil {
		return nil, errors.New("[presence.NewChannel] credential store is required")
	}
	if resolver == nil {
		return nil, errors.New("[presence.NewChannel] resolver is required")
	}

	wsURL, err := deriveSocketURL(cfg.GetBaseURL(), cfg.GetWSPath())
	if err != nil {
		return nil, err
	}

	c := &Channel{
		wsURL:        wsURL,
		store:        store,
		resolver:     resolver,
		pollInterval: cfg.GetPollInterval(),
		dial:         defaultDialer,
		afterFunc:    time.AfterFunc,
		backoff:      minBackoff,
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// deriveSocketURL upgrades the base URL scheme (http→ws, https→wss) and
// appends the socket path.
func deriveSocketURL(baseURL, wsPath string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", errors.Wrap(err, "[presence.deriveSocketURL] parse base URL")
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = wsPath
	u.RawQuery = ""
	return u.String(), nil
}

// Connect starts the socket and arms the one-shot REST fallback that
// begins polling if the socket is not open shortly after startup.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.fallbackTimer = c.afterFunc(startupFallbackDelay, c.startupFallback)
	c.mu.Unlock()

	go c.connect()
}

// Reconnect drops the backoff timer and dials immediately.
func (c *Channel) Reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.mu.Unlock()

	obs.ObservePresenceReconnect()
	go c.connect()
}

// Users returns a copy of the current online set.
func (c *Channel) Users() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.users))
	copy(out, c.users)
	return out
}

// Connected reports whether the socket is open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastErr returns the most recent socket or fetch error.
func (c *Channel) LastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Subscribe registers a callback invoked after every state change. No
// callbacks fire after Close.
func (c *Channel) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.subs = append(c.subs, fn)
}

// Refresh fetches the online set over REST and applies it as a full
// snapshot. A socket frame arriving during the fetch wins; the snapshot
// is then discarded.
func (c *Channel) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	seqBefore := c.frameSeq
	c.mu.Unlock()

	users, err := c.resolver.OnlineUsers(ctx)
	if err != nil {
		c.mu.Lock()
		if !c.closed {
			c.lastErr = err
		}
		c.mu.Unlock()
		return errors.Wrap(err, "[Channel.Refresh] online users fetch")
	}

	entries := make([]Entry, 0, len(users))
	for _, user := range users {
		if entry, ok := entryFromLoose(user); ok {
			entries = append(entries, entry)
		}
	}

	c.mu.Lock()
	if c.closed || c.frameSeq != seqBefore {
		c.mu.Unlock()
		return nil
	}
	c.users = entries
	c.mu.Unlock()

	c.notify()
	return nil
}

// Close tears the channel down: it neutralises subscriber callbacks
// before closing the socket, cancels both timers, and marks the instance
// so async callbacks in flight become no-ops. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.subs = nil
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.fallbackTimer != nil {
		c.fallbackTimer.Stop()
		c.fallbackTimer = nil
	}
	c.stopPollingLocked()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client closed")
	}
}

func (c *Channel) connect() {
	c.mu.Lock()
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, err := c.dial(ctx, c.socketURL())
	if err != nil {
		c.onClosed(nil, err)
		return
	}

	c.mu.Lock()
	// Another dial may have won while this one was pending; at most one
	// socket stays installed.
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "client closed")
		return
	}
	c.conn = conn
	c.connected = true
	c.lastErr = nil
	c.backoff = minBackoff
	c.stopPollingLocked()
	c.mu.Unlock()

	log.Debug().Msg("presence socket open")
	c.notify()

	go c.readLoop(conn)
}

func (c *Channel) readLoop(conn Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			c.onClosed(conn, err)
			return
		}
		if !c.owns(conn) {
			return
		}
		c.handleFrame(data)
	}
}

// owns reports whether conn is the installed socket. Frames and errors
// from a superseded socket are dropped.
func (c *Channel) owns(conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == conn
}

// onClosed records the failure, starts REST polling, and schedules a
// reconnect with exponential backoff. conn is nil when the dial itself
// failed; a stale conn is ignored.
func (c *Channel) onClosed(conn Conn, err error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.conn = nil
	c.lastErr = err
	delay := c.backoff
	next := time.Duration(float64(c.backoff) * backoffFactor)
	if next > maxBackoff {
		next = maxBackoff
	}
	c.backoff = next
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = c.afterFunc(delay, c.Reconnect)
	c.startPollingLocked()
	c.mu.Unlock()

	log.Debug().Dur("retry_in", delay).Msg("presence socket closed")
	c.notify()

	go func() {
		_ = c.Refresh(context.Background())
	}()
}

// handleFrame applies one inbound frame. Three shapes are recognised;
// anything else is ignored.
func (c *Channel) handleFrame(data []byte) {
	var asArray []map[string]any
	if err := json.Unmarshal(data, &asArray); err == nil {
		obs.ObservePresenceFrame("snapshot")
		c.applySnapshot(asArray)
		return
	}

	var frame struct {
		Type     string           `json:"type"`
		Users    []map[string]any `json:"users"`
		User     map[string]any   `json:"user"`
		IsOnline bool             `json:"is_online"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	switch frame.Type {
	case "online_users":
		obs.ObservePresenceFrame("online_users")
		c.applySnapshot(frame.Users)
	case "status_change":
		obs.ObservePresenceFrame("status_change")
		c.applyStatusChange(frame.User, frame.IsOnline)
	}
}

func (c *Channel) applySnapshot(users []map[string]any) {
	entries := make([]Entry, 0, len(users))
	for _, user := range users {
		if entry, ok := entryFromLoose(user); ok {
			entries = append(entries, entry)
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.frameSeq++
	c.users = entries
	c.mu.Unlock()

	c.notify()
}

// applyStatusChange inserts or removes one entry. Insertion is a no-op
// when the id is already present; removal deletes every entry with the id.
func (c *Channel) applyStatusChange(user map[string]any, online bool) {
	entry, ok := entryFromLoose(user)
	if !ok {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.frameSeq++

	changed := false
	if online {
		exists := false
		for _, existing := range c.users {
			if existing.ID == entry.ID {
				exists = true
				break
			}
		}
		if !exists {
			c.users = append(c.users, entry)
			changed = true
		}
	} else {
		kept := c.users[:0]
		for _, existing := range c.users {
			if existing.ID == entry.ID {
				changed = true
				continue
			}
			kept = append(kept, existing)
		}
		c.users = kept
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// startupFallback runs once shortly after Connect: if the socket has not
// reported open, seed the set over REST and begin polling.
func (c *Channel) startupFallback() {
	c.mu.Lock()
	if c.closed || c.connected {
		c.mu.Unlock()
		return
	}
	c.startPollingLocked()
	c.mu.Unlock()

	go func() {
		_ = c.Refresh(context.Background())
	}()
}

func (c *Channel) startPollingLocked() {
	if c.pollStop != nil {
		return
	}
	stop := make(chan struct{})
	c.pollStop = stop

	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = c.Refresh(context.Background())
			case <-stop:
				return
			}
		}
	}()
}

func (c *Channel) stopPollingLocked() {
	if c.pollStop != nil {
		close(c.pollStop)
		c.pollStop = nil
	}
}

func (c *Channel) notify() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snapshot := Snapshot{
		Users:     make([]Entry, len(c.users)),
		Connected: c.connected,
		LastErr:   c.lastErr,
	}
	copy(snapshot.Users, c.users)
	subs := make([]func(Snapshot), len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// socketURL appends the bare access token as a query parameter; the
// resulting URL is never logged.
func (c *Channel) socketURL() string {
	token := credentials.StripScheme(c.store.Read())
	if token == "" {
		return c.wsURL
	}
	sep := "?"
	if strings.Contains(c.wsURL, "?") {
		sep = "&"
	}
	return c.wsURL + sep + "token=" + url.QueryEscape(token)
}
