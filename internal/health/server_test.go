package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type stubDBChecker struct {
	err error
}

func (s stubDBChecker) Ping(context.Context) error {
	return s.err
}

type stubStats struct {
	accounts int64
	fines    int64
	tickets  int64
	err      error
}

func (s stubStats) CountAccounts(context.Context) (int64, error) {
	return s.accounts, s.err
}

func (s stubStats) CountOutstandingFines(context.Context) (int64, error) {
	return s.fines, s.err
}

func (s stubStats) CountOpenTickets(context.Context) (int64, error) {
	return s.tickets, s.err
}

func TestHealthHandlerOK(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	server := NewServer(0, stubDBChecker{err: nil}, nil, logrus.NewEntry(logger))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	server.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}

	body := strings.TrimSpace(rr.Body.String())
	if body != `{"status":"ok"}` {
		t.Fatalf("unexpected body: %s", body)
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}
}

func TestHealthHandlerDatabaseError(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	server := NewServer(0, stubDBChecker{err: errors.New("db down")}, nil, logrus.NewEntry(logger))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	server.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}

	body := strings.TrimSpace(rr.Body.String())
	if body != `{"status":"degraded","database":"error"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestHealthHandlerMissingDatabaseChecker(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	server := NewServer(0, nil, nil, logrus.NewEntry(logger))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	server.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}

	body := strings.TrimSpace(rr.Body.String())
	if body != `{"status":"degraded","database":"error"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestStatsHandlerReportsCounts(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	server := NewServer(0, stubDBChecker{}, stubStats{accounts: 12, fines: 3, tickets: 1}, logrus.NewEntry(logger))

	req := httptest.NewRequest(http.MethodGet, "/statsz", nil)
	rr := httptest.NewRecorder()

	server.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}

	body := strings.TrimSpace(rr.Body.String())
	if body != `{"accounts":12,"outstanding_fines":3,"open_tickets":1}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestStatsHandlerUnavailableOnError(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	server := NewServer(0, stubDBChecker{}, stubStats{err: errors.New("db down")}, logrus.NewEntry(logger))

	req := httptest.NewRequest(http.MethodGet, "/statsz", nil)
	rr := httptest.NewRecorder()

	server.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTP 503, got %d", rr.Code)
	}
}

func TestStatsHandlerMissingProvider(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	server := NewServer(0, stubDBChecker{}, nil, logrus.NewEntry(logger))

	req := httptest.NewRequest(http.MethodGet, "/statsz", nil)
	rr := httptest.NewRecorder()

	server.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected HTTP 404, got %d", rr.Code)
	}
}
