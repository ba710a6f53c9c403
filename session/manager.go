// Package session owns the process-wide authentication state: the stored
// credential's lifecycle, the cached identity, and the sign-in state
// machine. Exactly one Manager exists per application; consumers read
// state through State and Subscribe and never touch credential storage
// directly.
package session

import (
	"context"
	"net/url"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/srinivas112004/go-employee-portal/credentials"
	"github.com/srinivas112004/go-employee-portal/endpoints"
	"github.com/srinivas112004/go-employee-portal/rest"
)

var (
	// TwoFactorRequiredErr signals that the sign-in endpoint issued a
	// second-factor challenge; the caller transitions to a verification
	// step and completes with SignInWithTwoFactor.
	TwoFactorRequiredErr = errors.New("two-factor verification required")

	NotAuthenticatedErr = errors.New("not authenticated")

	NoProfileEndpointErr = errors.New("no profile endpoint responded")
)

const (
	signInPath  = "/api/auth/login/"
	signOutPath = "/api/auth/logout/"
)

// Ranked probe list for the current-user profile; which one the backend
// serves is server-defined.
var profilePaths = []string{
	"/api/auth/profile/",
	"/api/auth/me/",
	"/api/users/me/",
}

// Response-body markers indicating a second factor is required.
var twoFactorMarkers = []string{"requires_2fa", "two_factor_required", "otp_required"}

// Phase is the sign-in state machine position.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseSubmitting        Phase = "submitting"
	PhaseTwoFactorRequired Phase = "two_factor_required"
	PhaseVerifying         Phase = "verifying"
	PhaseLoadingProfile    Phase = "loading_profile"
	PhaseAuthenticated     Phase = "authenticated"
	PhaseFailed            Phase = "failed"
)

// State is the observable session surface.
type State struct {
	Phase         Phase
	Authenticated bool
	Loading       bool
	User          *Identity
}

// Manager is the auth context. It owns the identity; mutations originate
// only here.
type Manager struct {
	client   *rest.Client
	resolver *endpoints.Resolver
	store    *credentials.Store

	mu    sync.RWMutex
	phase Phase
	user  *Identity
	subs  []func(State)
}

func NewManager(client *rest.Client, resolver *endpoints.Resolver, store *credentials.Store) (*Manager, error) {
	if client == nil {
		return nil, errors.New("[session.NewManager] client is required")
	}
	if resolver == nil {
		return nil, errors.New("[session.NewManager] resolver is required")
	}
	if store == nil {
		return nil, errors.New("[session.NewManager] credential store is required")
	}
	return &Manager{
		client:   client,
		resolver: resolver,
		store:    store,
		phase:    PhaseIdle,
	}, nil
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

// Subscribe registers a callback invoked after every state transition.
func (m *Manager) Subscribe(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Start restores the session from a stored credential. With no credential
// the session stays idle; with one, the profile is loaded and a failure
// clears the credential.
func (m *Manager) Start(ctx context.Context) error {
	if m.store.Read() == "" {
		m.transition(PhaseIdle, nil)
		return nil
	}

	m.transition(PhaseLoadingProfile, nil)
	if _, err := m.Profile(ctx); err != nil {
		m.store.Clear()
		m.transition(PhaseIdle, nil)
		return errors.Wrap(err, "[Manager.Start] profile load failed")
	}
	return nil
}

// SignIn authenticates with email and password, stores the credential
// pair, and loads the profile. Returns TwoFactorRequiredErr when the
// server issues a second-factor challenge.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	return m.signIn(ctx, map[string]string{
		"email":    email,
		"password": password,
	})
}

// SignInWithTwoFactor completes a sign-in that required a second factor.
func (m *Manager) SignInWithTwoFactor(ctx context.Context, email, password, code string) (*Identity, error) {
	m.transition(PhaseVerifying, nil)
	return m.signIn(ctx, map[string]string{
		"email":    email,
		"password": password,
		"otp":      code,
		"code":     code,
	})
}

func (m *Manager) signIn(ctx context.Context, body map[string]string) (*Identity, error) {
	m.transitionIfNot(PhaseVerifying, PhaseSubmitting)

	var resp map[string]any
	if err := m.client.PostJSON(ctx, signInPath, body, &resp); err != nil {
		m.transition(PhaseFailed, nil)
		return nil, errors.Wrap(err, "[Manager.signIn] sign-in request")
	}

	for _, marker := range twoFactorMarkers {
		if truthy(resp[marker]) {
			m.transition(PhaseTwoFactorRequired, nil)
			return nil, TwoFactorRequiredErr
		}
	}

	access, refresh := extractTokens(resp)
	if access == "" {
		m.transition(PhaseFailed, nil)
		return nil, errors.New("[Manager.signIn] response carried no access token")
	}
	m.store.Write(access, refresh)

	m.transition(PhaseLoadingProfile, nil)
	user, err := m.Profile(ctx)
	if err != nil {
		m.store.Clear()
		m.transition(PhaseFailed, nil)
		return nil, errors.Wrap(err, "[Manager.signIn] profile load")
	}

	log.Info().Int64("user_id", user.ID).Msg("signed in")
	return user, nil
}

// SignOut notifies the server best-effort, then clears the credential and
// identity unconditionally.
func (m *Manager) SignOut(ctx context.Context) {
	if refresh := m.store.ReadRefresh(); refresh != "" {
		if err := m.client.PostJSON(ctx, signOutPath, map[string]string{"refresh": refresh}, nil); err != nil {
			log.Debug().Msg("server sign-out notification failed")
		}
	}
	m.store.Clear()
	m.transition(PhaseIdle, nil)
	log.Info().Msg("signed out")
}

// Profile fetches and caches the user profile. The cached profile is the
// source of truth for the role.
func (m *Manager) Profile(ctx context.Context) (*Identity, error) {
	var lastErr error
	for _, path := range profilePaths {
		var user Identity
		err := m.client.GetJSON(ctx, path, nil, &user)
		if err == nil {
			m.transition(PhaseAuthenticated, &user)
			return &user, nil
		}
		if rest.IsAuthStatus(err) || errors.Is(err, rest.AuthExpiredErr) {
			return nil, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = NoProfileEndpointErr
	}
	return nil, lastErr
}

// Users lists users through the drift resolver.
func (m *Manager) Users(ctx context.Context, filters url.Values) ([]map[string]any, error) {
	return m.resolver.Users(ctx, filters)
}

func (m *Manager) stateLocked() State {
	return State{
		Phase:         m.phase,
		Authenticated: m.phase == PhaseAuthenticated,
		Loading:       m.phase == PhaseLoadingProfile || m.phase == PhaseSubmitting || m.phase == PhaseVerifying,
		User:          m.user,
	}
}

func (m *Manager) transition(phase Phase, user *Identity) {
	m.mu.Lock()
	m.phase = phase
	if phase == PhaseAuthenticated {
		m.user = user
	} else if phase == PhaseIdle || phase == PhaseFailed {
		m.user = nil
	}
	state := m.stateLocked()
	subs := make([]func(State), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// transitionIfNot keeps an in-progress verification phase instead of
// regressing it to submitting.
func (m *Manager) transitionIfNot(skip, phase Phase) {
	m.mu.RLock()
	current := m.phase
	m.mu.RUnlock()
	if current == skip {
		return
	}
	m.transition(phase, nil)
}

func extractTokens(resp map[string]any) (access, refresh string) {
	for _, key := range []string{"access", "access_token", "token"} {
		if v, ok := resp[key].(string); ok && v != "" {
			access = v
			break
		}
	}
	for _, key := range []string{"refresh", "refresh_token"} {
		if v, ok := resp[key].(string); ok && v != "" {
			refresh = v
			break
		}
	}
	return access, refresh
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true" || val == "1"
	case float64:
		return val != 0
	}
	return false
}
