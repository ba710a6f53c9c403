package portal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srinivas112004/go-employee-portal/credentials"
	"github.com/srinivas112004/go-employee-portal/credentials/storefake"
	"github.com/srinivas112004/go-employee-portal/endpoints"
	"github.com/srinivas112004/go-employee-portal/internal/config"
	"github.com/srinivas112004/go-employee-portal/portal"
	"github.com/srinivas112004/go-employee-portal/rest"
)

type testConfig struct {
	config.EnvVars
	baseURL string
}

func (c testConfig) GetBaseURL() string { return c.baseURL }

func setupService(t *testing.T, serverURL string) *portal.Service {
	t.Helper()

	store := credentials.NewStore(storefake.NewFakeStorage())
	client, err := rest.New(testConfig{baseURL: serverURL}, store)
	require.NoError(t, err)
	resolver, err := endpoints.NewResolver(client)
	require.NoError(t, err)
	service, err := portal.NewService(client, resolver)
	require.NoError(t, err)
	return service
}

func TestLeaveRequestsWithoutEmployeeSkipsResolver(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"results": [{"id": 1, "status": "pending"}]}`))
	}))
	defer server.Close()

	service := setupService(t, server.URL)
	requests, err := service.LeaveRequests(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, "pending", requests[0].Status)
	require.Empty(t, gotQuery)
}

func TestPayslipsAbsorbFilterKeyDrift(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("employee_id") == "42" {
			w.Write([]byte(`[{"id": 1, "month": "2026-08", "net": "4200.00"}]`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	service := setupService(t, server.URL)
	payslips, err := service.Payslips(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, payslips, 1)
	require.Equal(t, "2026-08", payslips[0].Month)
}

func TestUploadDocumentSendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "Handbook", r.FormValue("title"))
		require.Equal(t, "3", r.FormValue("category"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "handbook.pdf", header.Filename)

		w.Write([]byte(`{"id": 10, "title": "Handbook", "version": 1}`))
	}))
	defer server.Close()

	service := setupService(t, server.URL)
	doc, err := service.UploadDocument(context.Background(), "Handbook", 3, "handbook.pdf", []byte("content"), nil)
	require.NoError(t, err)
	require.Equal(t, int64(10), doc.ID)
	require.Equal(t, 1, doc.Version)
}

func TestDownloadPayslipUsesDefaultName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/payroll/payslips/7/download/", r.URL.Path)
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	service := setupService(t, server.URL)
	download, err := service.DownloadPayslip(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "payslip-7.pdf", download.Filename)
}

func TestCheckInReturnsRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/attendance/check-in/", r.URL.Path)
		w.Write([]byte(`{"id": 5, "date": "2026-08-31", "check_in": "09:02"}`))
	}))
	defer server.Close()

	service := setupService(t, server.URL)
	record, err := service.CheckIn(context.Background())
	require.NoError(t, err)
	require.Equal(t, "09:02", record.CheckIn)
}

func TestSubmitQuizPostsAnswersByQuestionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/lms/quizzes/2/submit/", r.URL.Path)
		var body map[string]map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "b", body["answers"]["11"])
		w.Write([]byte(`{"score": 80, "passed": true}`))
	}))
	defer server.Close()

	service := setupService(t, server.URL)
	result, err := service.SubmitQuiz(context.Background(), 2, map[int64]string{11: "b"})
	require.NoError(t, err)
	require.Equal(t, true, result["passed"])
}
