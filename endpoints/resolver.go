// Package endpoints absorbs backend API drift. List operations consult a
// ranked candidate table of query-key names and value shapes and return
// the first response that succeeds, so the portal keeps working as long
// as some equivalent endpoint exists.
package endpoints

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/srinivas112004/go-employee-portal/internal/obs"
	"github.com/srinivas112004/go-employee-portal/rest"
)

var (
	NoUsersEndpointErr = errors.New("no user listing endpoint responded with a list")
)

// Alternate query-key names for the employee filter, probed in order.
var employeeKeys = []string{
	"employee",
	"employee_id",
	"user",
	"user__email",
	"employee_profile",
	"employee_email",
}

// Ranked candidate endpoints for listing users.
var userListPaths = []string{
	"/api/auth/users/",
	"/api/users/",
	"/api/auth/user/",
}

// Ranked candidate endpoints for the online-users REST fallback.
var onlineUserPaths = []string{
	"/api/auth/online-users/",
	"/api/auth/users/online/",
	"/api/users/online/",
}

// probeContinues reports whether an error leaves room for an alternate
// candidate. Only a missing endpoint or a server failure does; auth
// errors, validation errors, and transport failures abort probing.
func probeContinues(err error) bool {
	status := rest.StatusOf(err)
	return status == http.StatusNotFound || status >= 500
}

var trailingIDPattern = regexp.MustCompile(`/(\d+)/?$`)

var numericPattern = regexp.MustCompile(`^\d+$`)

// Resolver probes candidate endpoints through the REST client. Probes
// after the primary are paced so a drifting backend is not hammered.
type Resolver struct {
	client  *rest.Client
	limiter *rate.Limiter
}

func NewResolver(client *rest.Client) (*Resolver, error) {
	if client == nil {
		return nil, errors.New("[endpoints.NewResolver] client is required")
	}
	return &Resolver{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(75*time.Millisecond), 3),
	}, nil
}

// ListForEmployee fetches path filtered by employee, absorbing drift in
// the filter key and value shape. Employee may be a numeric id, an email,
// or a resource URL with a trailing id. The first 2xx wins; only 404 and
// 5xx fall through to the next candidate, anything else aborts
// immediately. If every probe fails and the value looks like an email,
// the email is resolved to a numeric id through the user-listing
// endpoints and the primary key retried once.
func (r *Resolver) ListForEmployee(ctx context.Context, path, employee string, extra url.Values) (*rest.Result, error) {
	values := valueCandidates(r.client.BaseURL(), employee)

	var firstErr error
	first := true
	for _, key := range employeeKeys {
		for _, value := range values {
			if !first {
				obs.ObserveEndpointFallback()
				if err := r.limiter.Wait(ctx); err != nil {
					return nil, errors.Wrap(err, "[Resolver.ListForEmployee] limiter")
				}
			}
			result, err := r.client.GetRaw(ctx, path, withParam(extra, key, value))
			if err == nil {
				return result, nil
			}
			if !probeContinues(err) {
				return nil, err
			}
			if first {
				firstErr = err
				first = false
			}
		}
	}

	if looksLikeEmail(employee) {
		if id, err := r.resolveEmailToID(ctx, employee); err == nil {
			log.Debug().Str("path", path).Msg("resolved employee email to id, retrying")
			result, err := r.client.GetRaw(ctx, path, withParam(extra, "employee", id))
			if err == nil {
				return result, nil
			}
			if rest.IsAuthStatus(err) {
				return nil, err
			}
		}
	}

	return nil, firstErr
}

// Users lists users through the ranked candidate endpoints, returning the
// first response that yields a list.
func (r *Resolver) Users(ctx context.Context, filters url.Values) ([]map[string]any, error) {
	return r.firstList(ctx, userListPaths, filters)
}

// OnlineUsers lists currently online users through the presence REST
// fallback endpoints.
func (r *Resolver) OnlineUsers(ctx context.Context) ([]map[string]any, error) {
	return r.firstList(ctx, onlineUserPaths, nil)
}

func (r *Resolver) firstList(ctx context.Context, paths []string, filters url.Values) ([]map[string]any, error) {
	var lastErr error
	for i, path := range paths {
		if i > 0 {
			obs.ObserveEndpointFallback()
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, errors.Wrap(err, "[Resolver.firstList] limiter")
			}
		}
		result, err := r.client.GetRaw(ctx, path, filters)
		if err != nil {
			if !probeContinues(err) {
				return nil, err
			}
			lastErr = err
			continue
		}
		if list, ok := AsList(result.Parsed); ok {
			return list, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, NoUsersEndpointErr
}

func (r *Resolver) resolveEmailToID(ctx context.Context, email string) (string, error) {
	users, err := r.firstList(ctx, userListPaths, url.Values{"email": {email}})
	if err != nil {
		return "", err
	}
	for _, user := range users {
		if id := IDString(user); id != "" {
			return id, nil
		}
	}
	return "", errors.Errorf("[Resolver.resolveEmailToID] no user found for email")
}

// AsList accepts both a bare array and a {results: [...]} envelope and
// returns the entries as loose maps.
func AsList(parsed any) ([]map[string]any, bool) {
	switch v := parsed.(type) {
	case []any:
		return looseMaps(v), true
	case map[string]any:
		if results, ok := v["results"].([]any); ok {
			return looseMaps(results), true
		}
	}
	return nil, false
}

// IDString extracts an entity id from a loose map, accepting id or pk.
func IDString(entry map[string]any) string {
	for _, key := range []string{"id", "pk"} {
		if id := scalarString(entry[key]); id != "" {
			return id
		}
	}
	return ""
}

func looseMaps(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return ""
}

// valueCandidates derives the alternate value shapes for an employee
// filter: the id extracted from a trailing-id resource URL, the raw value,
// and, for numeric ids, a resource-URL wrapper for servers that expect
// hyperlinked values.
func valueCandidates(baseURL, employee string) []string {
	employee = strings.TrimSpace(employee)

	var candidates []string
	if m := trailingIDPattern.FindStringSubmatch(employee); m != nil && strings.Contains(employee, "/") {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, employee)
	if numericPattern.MatchString(employee) {
		candidates = append(candidates, baseURL+"/api/auth/users/"+employee+"/")
	}
	return dedupe(candidates)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func withParam(extra url.Values, key, value string) url.Values {
	query := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	query.Set(key, value)
	return query
}

func looksLikeEmail(value string) bool {
	at := strings.Index(value, "@")
	return at > 0 && strings.Contains(value[at:], ".")
}
