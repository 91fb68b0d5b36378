// Integration tests for the VersionService gRPC server
package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nainya/grantdraft/internal/logger"
	"github.com/nainya/grantdraft/internal/metrics"
	"github.com/nainya/grantdraft/pkg/version"
)

const bufSize = 1024 * 1024

type testEnv struct {
	server  *Server
	client  *Client
	metrics *metrics.Metrics
	logs    *bytes.Buffer
	path    string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "versions.json")
	m := metrics.NewMetrics(prometheus.NewRegistry())
	var logs bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: "debug", Output: &logs})

	store := version.Open(path, version.Options{Observer: m})
	server := NewServer(store, log)

	lis := bufconn.Listen(bufSize)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(GrpcMetricsInterceptor(m, log)))
	RegisterVersionServiceServer(grpcServer, server)

	go func() {
		// Serve returns once the listener closes during cleanup
		_ = grpcServer.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial bufnet: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		grpcServer.Stop()
		lis.Close()
		server.Close()
	})

	return &testEnv{server: server, client: NewClient(conn), metrics: m, logs: &logs, path: path}
}

func TestSaveAndGet(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	proposal := version.Snapshot{
		"topic":  "Water quality",
		"goals":  "Monitor rivers",
		"budget": map[string]any{"equipment": 1200.5},
	}

	n, err := env.client.Save(ctx, proposal, "Updated project details")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected version 1, got %d", n)
	}

	entry, err := env.client.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Rationale != "Updated project details" {
		t.Errorf("Unexpected rationale %q", entry.Rationale)
	}
	if entry.Proposal["topic"] != "Water quality" {
		t.Errorf("Unexpected topic %v", entry.Proposal["topic"])
	}
	budget, ok := entry.Proposal["budget"].(map[string]any)
	if !ok || budget["equipment"] != 1200.5 {
		t.Errorf("Unexpected budget %v", entry.Proposal["budget"])
	}

	local, _ := env.server.Store().Get(1)
	if entry.Timestamp != local.Timestamp {
		t.Errorf("Timestamp changed over the wire: %v vs %v", entry.Timestamp, local.Timestamp)
	}
	if entry.CreatedAt != local.CreatedAt || entry.UpdatedAt != entry.CreatedAt {
		t.Errorf("Unexpected save times %q / %q", entry.CreatedAt, entry.UpdatedAt)
	}
}

func TestSaveRequiresProposal(t *testing.T) {
	env := setupTestServer(t)

	_, err := env.client.Save(context.Background(), nil, "nothing")
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Expected InvalidArgument, got %v", err)
	}
	if env.server.Store().Len() != 0 {
		t.Errorf("Rejected save must not record a version")
	}
}

func TestLookupMisses(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	if _, err := env.client.GetLatest(ctx); status.Code(err) != codes.NotFound {
		t.Errorf("GetLatest on empty store: expected NotFound, got %v", err)
	}

	env.client.Save(ctx, version.Snapshot{"topic": "a"}, "one")

	for _, n := range []int{0, -1, 2, 100} {
		if _, err := env.client.Get(ctx, n); status.Code(err) != codes.NotFound {
			t.Errorf("Get(%d): expected NotFound, got %v", n, err)
		}
	}

	if _, err := env.client.Compare(ctx, 1, 5); status.Code(err) != codes.NotFound {
		t.Errorf("Compare(1, 5): expected NotFound, got %v", err)
	}
}

func TestHistoryLatestAndCompare(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	rationales := []string{"Updated project details", "Generated outline", "Edited outline"}
	for i, r := range rationales {
		n, err := env.client.Save(ctx, version.Snapshot{"step": i}, r)
		if err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
		if n != i+1 {
			t.Errorf("Expected version %d, got %d", i+1, n)
		}
	}

	all, err := env.client.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != len(rationales) {
		t.Fatalf("Expected %d versions, got %d", len(rationales), len(all))
	}
	for i, e := range all {
		if e.Rationale != rationales[i] {
			t.Errorf("Version %d rationale %q, want %q", i+1, e.Rationale, rationales[i])
		}
	}

	latest, err := env.client.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.Rationale != "Edited outline" {
		t.Errorf("Unexpected latest rationale %q", latest.Rationale)
	}

	cmp, err := env.client.Compare(ctx, 1, 3)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if cmp.Version1 != 1 || cmp.Version2 != 3 {
		t.Errorf("Unexpected versions %d, %d", cmp.Version1, cmp.Version2)
	}
	if cmp.Rationale1 != "Updated project details" || cmp.Rationale2 != "Edited outline" {
		t.Errorf("Unexpected rationales %q, %q", cmp.Rationale1, cmp.Rationale2)
	}
	if cmp.Timestamp1 > cmp.Timestamp2 {
		t.Errorf("Timestamps out of order: %v > %v", cmp.Timestamp1, cmp.Timestamp2)
	}
}

func TestSavesArePersisted(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	env.client.Save(ctx, version.Snapshot{"topic": "a"}, "one")
	env.client.Save(ctx, version.Snapshot{"topic": "b"}, "two")

	reopened := version.Open(env.path, version.Options{})
	if reopened.Len() != 2 {
		t.Fatalf("Expected 2 persisted versions, got %d", reopened.Len())
	}
	latest, _ := reopened.GetLatest()
	if latest.Rationale != "two" {
		t.Errorf("Unexpected persisted rationale %q", latest.Rationale)
	}
}

func TestInterceptorRecordsRequests(t *testing.T) {
	env := setupTestServer(t)

	var header metadata.MD
	ctx := metadata.AppendToOutgoingContext(context.Background(), RequestIDHeader, "req-42")
	env.client.Save(ctx, version.Snapshot{"topic": "a"}, "one", grpc.Header(&header))
	env.client.Get(context.Background(), 9)

	if ids := header.Get(RequestIDHeader); len(ids) != 1 || ids[0] != "req-42" {
		t.Errorf("Expected request id echoed, got %v", ids)
	}

	if got := testutil.ToFloat64(env.metrics.GrpcRequestsTotal.WithLabelValues(fullMethod("Save"), "OK")); got != 1 {
		t.Errorf("Expected 1 OK Save, got %v", got)
	}
	if got := testutil.ToFloat64(env.metrics.GrpcRequestsTotal.WithLabelValues(fullMethod("Get"), "NotFound")); got != 1 {
		t.Errorf("Expected 1 NotFound Get, got %v", got)
	}
	if got := testutil.ToFloat64(env.metrics.VersionsSavedTotal); got != 1 {
		t.Errorf("Expected store observer to count 1 save, got %v", got)
	}
	if got := testutil.ToFloat64(env.metrics.GrpcRequestsInFlight); got != 0 {
		t.Errorf("Expected no requests in flight, got %v", got)
	}

	if !strings.Contains(env.logs.String(), `"request_id":"req-42"`) {
		t.Errorf("Expected request id in logs, got %s", env.logs.String())
	}
}

func TestObservabilityHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.Saved()

	var notReady error
	handler := NewObservabilityHandler(reg, func() error { return notReady })

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/health", http.StatusOK, `"service":"grantdraft"`},
		{"/ready", http.StatusOK, `"status":"ready"`},
		{"/metrics", http.StatusOK, "grantdraft_versions_saved_total 1"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.wantStatus {
			t.Errorf("%s: status %d, want %d", tt.path, rec.Code, tt.wantStatus)
		}
		if !strings.Contains(rec.Body.String(), tt.wantBody) {
			t.Errorf("%s: body %q missing %q", tt.path, rec.Body.String(), tt.wantBody)
		}
	}

	notReady = errors.New("shutting down")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 while not ready, got %d", rec.Code)
	}
}

type failingBackend struct{}

func (failingBackend) Load() ([]version.Entry, error) { return nil, nil }
func (failingBackend) Persist([]version.Entry) error  { return errors.New("disk full") }
func (failingBackend) Close() error                   { return nil }

func TestSaveReportsItsOwnPersistFailure(t *testing.T) {
	var logs bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: "warn", Output: &logs})
	srv := NewServer(version.NewStore(version.Options{Backend: failingBackend{}}), log)

	req, err := toStruct(map[string]any{"proposal": map[string]any{"topic": "a"}, "rationale": "one"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Save(context.Background(), req)
	if err != nil {
		t.Fatalf("Save must succeed when persistence fails: %v", err)
	}
	if got := resp.GetFields()["version"].GetNumberValue(); got != 1 {
		t.Errorf("Expected version 1, got %v", got)
	}
	if !strings.Contains(logs.String(), "version saved in memory only") || !strings.Contains(logs.String(), `"version":1`) {
		t.Errorf("Expected a warning naming version 1, got %s", logs.String())
	}
}
