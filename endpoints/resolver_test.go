package endpoints

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srinivas112004/go-employee-portal/credentials"
	"github.com/srinivas112004/go-employee-portal/credentials/storefake"
	"github.com/srinivas112004/go-employee-portal/internal/config"
	"github.com/srinivas112004/go-employee-portal/rest"
)

type testConfig struct {
	config.EnvVars
	baseURL string
}

func (c testConfig) GetBaseURL() string { return c.baseURL }

func setupResolver(t *testing.T, serverURL string) *Resolver {
	t.Helper()
	store := credentials.NewStore(storefake.NewFakeStorage())
	client, err := rest.New(testConfig{baseURL: serverURL}, store)
	require.NoError(t, err)
	resolver, err := NewResolver(client)
	require.NoError(t, err)
	return resolver
}

func TestListForEmployeeFallsBackAcrossFilterKeys(t *testing.T) {
	var queries []url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query())
		if r.URL.Query().Get("employee_id") == "42" {
			w.Write([]byte(`[{"id": 1, "status": "present"}]`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	resolver := setupResolver(t, server.URL)
	result, err := resolver.ListForEmployee(context.Background(), "/api/attendance/records/", "42", nil)
	require.NoError(t, err)

	list, ok := AsList(result.Parsed)
	require.True(t, ok)
	require.Len(t, list, 1)

	// The primary key is probed with every value shape before the next
	// key is tried.
	require.Equal(t, "42", queries[0].Get("employee"))
	last := queries[len(queries)-1]
	require.Equal(t, "42", last.Get("employee_id"))
}

func TestListForEmployeeExtractsTrailingResourceID(t *testing.T) {
	var firstQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if firstQuery == nil {
			firstQuery = r.URL.Query()
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	resolver := setupResolver(t, server.URL)
	_, err := resolver.ListForEmployee(context.Background(), "/api/leave/requests/", server.URL+"/api/auth/users/42/", nil)
	require.NoError(t, err)
	require.Equal(t, "42", firstQuery.Get("employee"))
}

func TestListForEmployeeAbortsOnAuthError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	resolver := setupResolver(t, server.URL)
	_, err := resolver.ListForEmployee(context.Background(), "/api/attendance/records/", "42", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, rest.StatusOf(err))
	require.Equal(t, 1, calls)
}

func TestListForEmployeeResolvesEmailToID(t *testing.T) {
	var retryQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/auth/users/" && r.URL.Query().Get("email") == "jane@example.com":
			w.Write([]byte(`[{"id": 7, "email": "jane@example.com"}]`))
		case r.URL.Path == "/api/attendance/records/" && r.URL.Query().Get("employee") == "7":
			retryQuery = r.URL.Query()
			w.Write([]byte(`{"results": [{"id": 3}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	resolver := setupResolver(t, server.URL)
	result, err := resolver.ListForEmployee(context.Background(), "/api/attendance/records/", "jane@example.com", nil)
	require.NoError(t, err)
	require.Equal(t, "7", retryQuery.Get("employee"))

	list, ok := AsList(result.Parsed)
	require.True(t, ok)
	require.Len(t, list, 1)
}

func TestListForEmployeeStopsOnValidationError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"employee": ["Invalid filter."]}`))
	}))
	defer server.Close()

	resolver := setupResolver(t, server.URL)
	_, err := resolver.ListForEmployee(context.Background(), "/api/attendance/records/", "42", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, rest.StatusOf(err))
	require.Equal(t, 1, calls)
}

func TestUsersStopsOnTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	resolver := setupResolver(t, server.URL)
	_, err := resolver.Users(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, 0, rest.StatusOf(err))
}

func TestListForEmployeeReportsFirstError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resolver := setupResolver(t, server.URL)
	_, err := resolver.ListForEmployee(context.Background(), "/api/attendance/records/", "42", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, rest.StatusOf(err))
}

func TestUsersTriesRankedPaths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/users/" {
			w.Write([]byte(`{"results": [{"id": 1, "email": "a@example.com"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resolver := setupResolver(t, server.URL)
	users, err := resolver.Users(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "a@example.com", users[0]["email"])
}

func TestOnlineUsersSkipsNonListResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/online-users/" {
			w.Write([]byte(`{"detail": "use the websocket"}`))
			return
		}
		w.Write([]byte(`[{"id": 4}]`))
	}))
	defer server.Close()

	resolver := setupResolver(t, server.URL)
	users, err := resolver.OnlineUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "4", IDString(users[0]))
}

func TestValueCandidates(t *testing.T) {
	base := "http://portal.local"

	tests := []struct {
		name     string
		employee string
		want     []string
	}{
		{
			name:     "numeric id gains a resource url wrapper",
			employee: "42",
			want:     []string{"42", base + "/api/auth/users/42/"},
		},
		{
			name:     "resource url yields the trailing id first",
			employee: base + "/api/auth/users/42/",
			want:     []string{"42", base + "/api/auth/users/42/"},
		},
		{
			name:     "email stays as-is",
			employee: "jane@example.com",
			want:     []string{"jane@example.com"},
		},
		{
			name:     "whitespace is trimmed",
			employee: "  42  ",
			want:     []string{"42", base + "/api/auth/users/42/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, valueCandidates(base, tt.employee))
		})
	}
}

func TestLooksLikeEmail(t *testing.T) {
	require.True(t, looksLikeEmail("jane@example.com"))
	require.False(t, looksLikeEmail("42"))
	require.False(t, looksLikeEmail("@example.com"))
	require.False(t, looksLikeEmail("jane@localhost"))
}
