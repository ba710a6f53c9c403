package session

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Device is a remembered sign-in device.
type Device struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LastSeen string `json:"last_seen"`
	Trusted  bool   `json:"trusted"`
}

// RemoteSession is an active server-side session for the account.
type RemoteSession struct {
	ID        int64  `json:"id"`
	UserAgent string `json:"user_agent"`
	IPAddress string `json:"ip_address"`
	CreatedAt string `json:"created_at"`
	Current   bool   `json:"current"`
}

// UpdateProfile submits changed profile fields and refreshes the cached
// identity.
func (m *Manager) UpdateProfile(ctx context.Context, fields map[string]any) (*Identity, error) {
	if err := m.client.PostJSON(ctx, "/api/auth/profile/update/", fields, nil); err != nil {
		return nil, errors.Wrap(err, "[Manager.UpdateProfile] update request")
	}
	return m.Profile(ctx)
}

// RequestPasswordReset asks the server to mail a reset token.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	return m.client.PostJSON(ctx, "/api/auth/password-reset/request/", map[string]string{"email": email}, nil)
}

// ConfirmPasswordReset exchanges a reset token for a new password.
func (m *Manager) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return m.client.PostJSON(ctx, "/api/auth/password-reset/confirm/", map[string]string{
		"token":    token,
		"password": newPassword,
	}, nil)
}

// SendOTP asks the server to issue a one-time code.
func (m *Manager) SendOTP(ctx context.Context, email string) error {
	return m.client.PostJSON(ctx, "/api/auth/send-otp/", map[string]string{"email": email}, nil)
}

// VerifyOTP validates a one-time code.
func (m *Manager) VerifyOTP(ctx context.Context, email, code string) error {
	return m.client.PostJSON(ctx, "/api/auth/verify-otp/", map[string]string{
		"email": email,
		"otp":   code,
	}, nil)
}

// ToggleTwoFactor enables or disables the second factor and refreshes the
// cached identity so TwoFactorEnabled stays accurate.
func (m *Manager) ToggleTwoFactor(ctx context.Context, enabled bool, code string) error {
	body := map[string]any{"enabled": enabled}
	if code != "" {
		body["otp"] = code
	}
	if err := m.client.PostJSON(ctx, "/api/auth/2fa/toggle/", body, nil); err != nil {
		return errors.Wrap(err, "[Manager.ToggleTwoFactor] toggle request")
	}
	_, err := m.Profile(ctx)
	return err
}

// Devices lists remembered devices.
func (m *Manager) Devices(ctx context.Context) ([]Device, error) {
	result, err := m.client.GetRaw(ctx, "/api/auth/devices/", nil)
	if err != nil {
		return nil, err
	}
	var devices []Device
	if err := result.DecodeList(&devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// TrustDevice marks a device as trusted.
func (m *Manager) TrustDevice(ctx context.Context, deviceID int64) error {
	return m.client.PostJSON(ctx, "/api/auth/devices/trust/", map[string]int64{"device": deviceID}, nil)
}

// DeleteDevice forgets a device.
func (m *Manager) DeleteDevice(ctx context.Context, deviceID int64) error {
	return m.client.DeleteJSON(ctx, fmt.Sprintf("/api/auth/devices/%d/", deviceID))
}

// Sessions lists the account's active server-side sessions.
func (m *Manager) Sessions(ctx context.Context) ([]RemoteSession, error) {
	result, err := m.client.GetRaw(ctx, "/api/auth/sessions/", nil)
	if err != nil {
		return nil, err
	}
	var sessions []RemoteSession
	if err := result.DecodeList(&sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// LogoutSession terminates one server-side session.
func (m *Manager) LogoutSession(ctx context.Context, sessionID int64) error {
	return m.client.PostJSON(ctx, fmt.Sprintf("/api/auth/sessions/%d/logout/", sessionID), nil, nil)
}

// LogoutAllSessions terminates every session for the account, then clears
// local state the same way SignOut does.
func (m *Manager) LogoutAllSessions(ctx context.Context) error {
	if err := m.client.PostJSON(ctx, "/api/auth/sessions/logout-all/", nil, nil); err != nil {
		return errors.Wrap(err, "[Manager.LogoutAllSessions] logout-all request")
	}
	m.store.Clear()
	m.transition(PhaseIdle, nil)
	return nil
}
