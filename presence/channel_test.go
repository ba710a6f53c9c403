package presence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/srinivas112004/go-employee-portal/credentials"
	"github.com/srinivas112004/go-employee-portal/credentials/storefake"
	"github.com/srinivas112004/go-employee-portal/endpoints"
	"github.com/srinivas112004/go-employee-portal/internal/config"
	"github.com/srinivas112004/go-employee-portal/rest"
)

type testConfig struct {
	config.EnvVars
	baseURL string
}

func (c testConfig) GetBaseURL() string { return c.baseURL }

// deadServerURL fails fast on every REST call.
const deadServerURL = "http://127.0.0.1:1"

// inertAfterFunc never fires its callback; tests drive timers explicitly.
func inertAfterFunc(time.Duration, func()) *time.Timer {
	return time.NewTimer(time.Hour)
}

type fakeConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case frame := <-c.frames:
		return websocket.MessageText, frame, nil
	case <-c.done:
		return 0, nil, errors.New("connection closed")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *fakeConn) Close(code websocket.StatusCode, reason string) error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func setupChannel(t *testing.T, serverURL string, options ...Option) (*Channel, *credentials.Store) {
	t.Helper()

	store := credentials.NewStore(storefake.NewFakeStorage())
	client, err := rest.New(testConfig{baseURL: serverURL}, store)
	require.NoError(t, err)
	resolver, err := endpoints.NewResolver(client)
	require.NoError(t, err)

	channel, err := NewChannel(testConfig{baseURL: serverURL}, store, resolver, options...)
	require.NoError(t, err)
	t.Cleanup(channel.Close)
	return channel, store
}

func TestDeriveSocketURL(t *testing.T) {
	tests := []struct {
		baseURL string
		wsPath  string
		want    string
	}{
		{"http://portal.local:8000", "/ws/online/", "ws://portal.local:8000/ws/online/"},
		{"https://portal.example.com", "/ws/online/", "wss://portal.example.com/ws/online/"},
		{"http://portal.local?stale=1", "/ws/online/", "ws://portal.local/ws/online/"},
	}
	for _, tt := range tests {
		got, err := deriveSocketURL(tt.baseURL, tt.wsPath)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestSocketURLCarriesBareToken(t *testing.T) {
	channel, store := setupChannel(t, "http://portal.local")

	require.Equal(t, "ws://portal.local/ws/online/", channel.socketURL())

	store.Write("Bearer abc123", "")
	require.Equal(t, "ws://portal.local/ws/online/?token=abc123", channel.socketURL())
}

func TestHandleFrameShapes(t *testing.T) {
	channel, _ := setupChannel(t, deadServerURL, WithAfterFunc(inertAfterFunc))

	var notifies int
	channel.Subscribe(func(Snapshot) { notifies++ })

	// Bare array snapshot.
	channel.handleFrame([]byte(`[{"id": 1, "full_name": "Ann"}, {"id": 2, "full_name": "Ben"}]`))
	require.Len(t, channel.Users(), 2)
	require.Equal(t, 1, notifies)

	// Typed snapshot replaces the whole set.
	channel.handleFrame([]byte(`{"type": "online_users", "users": [{"id": 3}]}`))
	users := channel.Users()
	require.Len(t, users, 1)
	require.Equal(t, "3", users[0].ID)
	require.Equal(t, 2, notifies)

	// Status change inserts.
	channel.handleFrame([]byte(`{"type": "status_change", "user": {"id": 4, "username": "dana"}, "is_online": true}`))
	require.Len(t, channel.Users(), 2)
	require.Equal(t, 3, notifies)

	// Duplicate insert is a no-op and does not notify.
	channel.handleFrame([]byte(`{"type": "status_change", "user": {"id": 4}, "is_online": true}`))
	require.Len(t, channel.Users(), 2)
	require.Equal(t, 3, notifies)

	// Going offline removes the entry.
	channel.handleFrame([]byte(`{"type": "status_change", "user": {"id": 4}, "is_online": false}`))
	users = channel.Users()
	require.Len(t, users, 1)
	require.Equal(t, "3", users[0].ID)
	require.Equal(t, 4, notifies)

	// Unknown types and garbage are ignored.
	channel.handleFrame([]byte(`{"type": "ping"}`))
	channel.handleFrame([]byte(`not json`))
	require.Len(t, channel.Users(), 1)
	require.Equal(t, 4, notifies)
}

func TestEntryFromLoose(t *testing.T) {
	tests := []struct {
		name string
		user map[string]any
		want Entry
		ok   bool
	}{
		{
			name: "user_id wins over id",
			user: map[string]any{"user_id": float64(7), "id": float64(9), "full_name": "Ann Lee"},
			want: Entry{ID: "7", DisplayName: "Ann Lee"},
			ok:   true,
		},
		{
			name: "username when full name missing",
			user: map[string]any{"pk": float64(3), "username": "blee"},
			want: Entry{ID: "3", DisplayName: "blee"},
			ok:   true,
		},
		{
			name: "email local part as last resort name",
			user: map[string]any{"_id": "abc", "email": "carol@example.com"},
			want: Entry{ID: "abc", DisplayName: "carol"},
			ok:   true,
		},
		{
			name: "generic fallback name",
			user: map[string]any{"id": float64(12)},
			want: Entry{ID: "12", DisplayName: "User 12"},
			ok:   true,
		},
		{
			name: "no id field",
			user: map[string]any{"email": "nobody@example.com"},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := entryFromLoose(tt.user)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			require.Equal(t, tt.want.ID, entry.ID)
			require.Equal(t, tt.want.DisplayName, entry.DisplayName)
		})
	}
}

func TestConnectDeliversFrames(t *testing.T) {
	conn := newFakeConn()
	channel, _ := setupChannel(t, deadServerURL,
		WithAfterFunc(inertAfterFunc),
		WithDialer(func(ctx context.Context, socketURL string) (Conn, error) {
			return conn, nil
		}),
	)

	snapshots := make(chan Snapshot, 16)
	channel.Subscribe(func(s Snapshot) { snapshots <- s })

	channel.Connect()

	// First notification is the socket opening.
	s := waitSnapshot(t, snapshots)
	require.True(t, s.Connected)
	require.Empty(t, s.Users)

	conn.frames <- []byte(`[{"id": 5, "full_name": "Eve"}]`)
	s = waitSnapshot(t, snapshots)
	require.Len(t, s.Users, 1)
	require.Equal(t, "Eve", s.Users[0].DisplayName)

	// The server dropping the socket surfaces as a disconnected snapshot.
	conn.Close(websocket.StatusNormalClosure, "")
	s = waitSnapshot(t, snapshots)
	require.False(t, s.Connected)
	require.Error(t, s.LastErr)
}

func waitSnapshot(t *testing.T, snapshots chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-snapshots:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestReconnectBackoffSchedule(t *testing.T) {
	var delays []time.Duration
	channel, _ := setupChannel(t, deadServerURL,
		WithAfterFunc(func(d time.Duration, fn func()) *time.Timer {
			delays = append(delays, d)
			return time.NewTimer(time.Hour)
		}),
		WithDialer(func(ctx context.Context, socketURL string) (Conn, error) {
			return nil, errors.New("dial failed")
		}),
	)

	attempts := 10
	for i := 0; i < attempts; i++ {
		channel.connect()
	}

	require.Len(t, delays, attempts)
	expected := minBackoff
	for i, delay := range delays {
		require.Equal(t, expected, delay, "attempt %d", i)
		expected = time.Duration(float64(expected) * backoffFactor)
		if expected > maxBackoff {
			expected = maxBackoff
		}
	}
	require.Equal(t, maxBackoff, delays[attempts-1])
}

func TestBackoffResetsOnOpen(t *testing.T) {
	var dialOK atomic.Bool
	var delays []time.Duration
	var mu sync.Mutex

	channel, _ := setupChannel(t, deadServerURL,
		WithAfterFunc(func(d time.Duration, fn func()) *time.Timer {
			mu.Lock()
			delays = append(delays, d)
			mu.Unlock()
			return time.NewTimer(time.Hour)
		}),
		WithDialer(func(ctx context.Context, socketURL string) (Conn, error) {
			if dialOK.Load() {
				return newFakeConn(), nil
			}
			return nil, errors.New("dial failed")
		}),
	)

	channel.connect()
	channel.connect()
	mu.Lock()
	require.Equal(t, []time.Duration{minBackoff, 1800 * time.Millisecond}, delays)
	mu.Unlock()

	dialOK.Store(true)
	channel.connect()
	require.True(t, channel.Connected())

	// Drop the socket again: the backoff restarts from the minimum.
	channel.mu.Lock()
	conn := channel.conn
	channel.mu.Unlock()
	conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delays) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, minBackoff, delays[2])
	mu.Unlock()
}

func TestConcurrentDialsKeepOneSocket(t *testing.T) {
	dialed := make(chan *fakeConn, 2)
	release := make(chan struct{})
	channel, _ := setupChannel(t, deadServerURL,
		WithAfterFunc(inertAfterFunc),
		WithDialer(func(ctx context.Context, socketURL string) (Conn, error) {
			conn := newFakeConn()
			dialed <- conn
			<-release
			return conn, nil
		}),
	)

	snapshots := make(chan Snapshot, 16)
	channel.Subscribe(func(s Snapshot) { snapshots <- s })

	// Two dials in flight at once; both return a healthy socket.
	go channel.connect()
	go channel.connect()
	c1 := <-dialed
	c2 := <-dialed
	close(release)

	require.Eventually(t, channel.Connected, 2*time.Second, 10*time.Millisecond)

	// Exactly one socket stays installed; the loser is closed.
	var kept, leaked *fakeConn
	require.Eventually(t, func() bool {
		select {
		case <-c1.done:
			kept, leaked = c2, c1
			return true
		case <-c2.done:
			kept, leaked = c1, c2
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	select {
	case <-kept.done:
		t.Fatal("both sockets were closed")
	default:
	}

	kept.frames <- []byte(`[{"id": 1, "full_name": "Live"}]`)
	require.Eventually(t, func() bool {
		return len(channel.Users()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// A frame offered to the discarded socket never reaches the set.
	select {
	case leaked.frames <- []byte(`[{"id": 99, "full_name": "Ghost"}]`):
	default:
	}
	time.Sleep(50 * time.Millisecond)
	users := channel.Users()
	require.Len(t, users, 1)
	require.Equal(t, "Live", users[0].DisplayName)
}

func TestRefreshAppliesRestSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/online-users/" {
			w.Write([]byte(`[{"id": 4, "full_name": "Dana"}]`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	channel, _ := setupChannel(t, server.URL, WithAfterFunc(inertAfterFunc))

	var notified atomic.Bool
	channel.Subscribe(func(Snapshot) { notified.Store(true) })

	require.NoError(t, channel.Refresh(context.Background()))
	users := channel.Users()
	require.Len(t, users, 1)
	require.Equal(t, "Dana", users[0].DisplayName)
	require.True(t, notified.Load())
}

func TestSocketFrameWinsOverConcurrentRefresh(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.Write([]byte(`[{"id": 1, "full_name": "Stale"}]`))
	}))
	defer server.Close()

	channel, _ := setupChannel(t, server.URL, WithAfterFunc(inertAfterFunc))

	done := make(chan error, 1)
	go func() {
		done <- channel.Refresh(context.Background())
	}()

	<-entered
	channel.applySnapshot([]map[string]any{{"id": float64(2), "full_name": "Fresh"}})
	close(release)
	require.NoError(t, <-done)

	// The REST snapshot was fetched before the frame arrived; the frame wins.
	users := channel.Users()
	require.Len(t, users, 1)
	require.Equal(t, "Fresh", users[0].DisplayName)
}

func TestRefreshErrorRecordsLastErr(t *testing.T) {
	channel, _ := setupChannel(t, deadServerURL, WithAfterFunc(inertAfterFunc))

	require.Error(t, channel.Refresh(context.Background()))
	require.Error(t, channel.LastErr())
	require.Empty(t, channel.Users())
}

func TestStartupFallbackSkippedWhenConnected(t *testing.T) {
	channel, _ := setupChannel(t, deadServerURL, WithAfterFunc(inertAfterFunc))

	channel.mu.Lock()
	channel.connected = true
	channel.mu.Unlock()

	channel.startupFallback()

	channel.mu.Lock()
	defer channel.mu.Unlock()
	require.Nil(t, channel.pollStop)
}

func TestCloseIsIdempotentAndSilencesCallbacks(t *testing.T) {
	conn := newFakeConn()
	channel, _ := setupChannel(t, deadServerURL,
		WithAfterFunc(inertAfterFunc),
		WithDialer(func(ctx context.Context, socketURL string) (Conn, error) {
			return conn, nil
		}),
	)

	snapshots := make(chan Snapshot, 16)
	channel.Subscribe(func(s Snapshot) { snapshots <- s })
	channel.Connect()
	waitSnapshot(t, snapshots)

	channel.Close()
	channel.Close()

	select {
	case <-conn.done:
	default:
		t.Fatal("socket was not closed")
	}

	// Late frames and refreshes after Close are no-ops.
	channel.handleFrame([]byte(`[{"id": 9}]`))
	require.NoError(t, channel.Refresh(context.Background()))
	require.Empty(t, channel.Users())
	require.False(t, channel.Connected())

	select {
	case <-snapshots:
		t.Fatal("subscriber fired after Close")
	case <-time.After(50 * time.Millisecond):
	}

	// Reconnect after Close never dials.
	channel.Reconnect()
	time.Sleep(20 * time.Millisecond)
	require.False(t, channel.Connected())
}
