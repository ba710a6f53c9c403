package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/srinivas112004/go-employee-portal/internal/obs"
)

const defaultRefreshPath = "/api/auth/token/refresh/"

// refreshResult is the shared outcome of the single in-flight refresh.
// Callers hitting a 401 while a refresh is running wait on done instead of
// starting their own.
type refreshResult struct {
	done  chan struct{}
	token string
	err   error
}

// awaitRefresh refreshes the access token, guaranteeing at most one
// in-flight refresh per client.
func (c *Client) awaitRefresh(ctx context.Context) (string, error) {
	c.refreshLock.Lock()
	if c.inflight != nil {
		r := c.inflight
		c.refreshLock.Unlock()
		select {
		case <-r.done:
			return r.token, r.err
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), "[Client.awaitRefresh] cancelled")
		}
	}

	r := &refreshResult{done: make(chan struct{})}
	c.inflight = r
	c.refreshLock.Unlock()

	r.token, r.err = c.doRefresh(ctx)

	c.refreshLock.Lock()
	c.inflight = nil
	c.refreshLock.Unlock()
	close(r.done)

	return r.token, r.err
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	refreshToken := c.store.ReadRefresh()
	if refreshToken == "" {
		obs.ObserveTokenRefresh("missing")
		c.expireSession()
		return "", errors.Wrap(AuthExpiredErr, "[Client.doRefresh] no refresh token")
	}

	spec, err := c.buildSpec(http.MethodPost, c.refreshPath, &RequestOptions{
		Body: map[string]string{"refresh": refreshToken},
	})
	if err != nil {
		return "", err
	}

	result, err := c.send(ctx, spec)
	if err != nil {
		obs.ObserveTokenRefresh("failed")
		c.expireSession()
		return "", errors.Wrap(AuthExpiredErr, "[Client.doRefresh] refresh request failed")
	}

	var body struct {
		Access      string `json:"access"`
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
		Refresh     string `json:"refresh"`
	}
	if err := result.Decode(&body); err != nil {
		obs.ObserveTokenRefresh("failed")
		c.expireSession()
		return "", errors.Wrap(AuthExpiredErr, "[Client.doRefresh] malformed refresh response")
	}

	access := body.Access
	if access == "" {
		access = body.AccessToken
	}
	if access == "" {
		access = body.Token
	}
	if access == "" {
		obs.ObserveTokenRefresh("failed")
		c.expireSession()
		return "", errors.Wrap(AuthExpiredErr, "[Client.doRefresh] refresh response carried no access token")
	}

	// body.Refresh is empty when the server does not rotate refresh tokens;
	// Write keeps the existing one in that case.
	c.store.Write(access, body.Refresh)
	obs.ObserveTokenRefresh("ok")

	event := log.Debug()
	if expiry, ok := tokenExpiry(access); ok {
		event = event.Time("expires_at", expiry)
	}
	event.Msg("access token refreshed")

	return access, nil
}

func (c *Client) expireSession() {
	c.store.Clear()
	if c.onAuthExpired != nil {
		c.onAuthExpired()
	}
}

// tokenExpiry inspects the exp claim of a JWT access token without
// verifying its signature. Opaque tokens report no expiry.
func tokenExpiry(raw string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, false
	}
	return expiry.Time, true
}

func tokenExpired(raw string) bool {
	expiry, ok := tokenExpiry(raw)
	if !ok {
		return false
	}
	return time.Now().After(expiry)
}
