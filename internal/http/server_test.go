package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caja/internal/cache"
	"caja/internal/core"
	"caja/internal/log"
	"caja/internal/records"
	"caja/internal/records/memory"
	"caja/internal/services"
)

func jan(day int) time.Time {
	return time.Date(2024, 1, day, 10, 0, 0, 0, time.UTC)
}

func seededStore() *memory.Store {
	d := decimal.RequireFromString
	return memory.New(memory.Seed{
		Accounts: []core.Account{
			{ID: "efectivo", Name: "Efectivo", Balance: decimal.NewNullDecimal(d("1000"))},
			{ID: "billetera", Name: "Billetera virtual", Balance: decimal.NewNullDecimal(d("250.50"))},
		},
		Clients: []core.Client{{ID: "c1", Name: "Ana"}, {ID: "c2", Name: "Beto"}},
		Transactions: []core.Transaction{
			{ID: "t1", Category: core.CategoryIncome, Amount: d("100"), OccurredAt: jan(5), AccountID: "efectivo"},
			{ID: "t2", Category: core.CategoryIncome, Amount: d("50"), OccurredAt: jan(20), AccountID: "billetera"},
			{ID: "t3", Category: core.CategoryReinvestment, Amount: d("-30"), OccurredAt: jan(7), AccountID: "efectivo"},
			{ID: "t4", Category: core.CategorySalary, Amount: d("40"), OccurredAt: jan(28), AccountID: "efectivo"},
		},
		Orders: []core.Order{
			{ID: "o1", ClientID: "c1", Date: jan(3), TotalBilled: d("100"), GramsCharged: decimal.NewNullDecimal(d("5"))},
			{ID: "o2", ClientID: "c1", Date: jan(9), TotalBilled: d("80")},
			{ID: "o3", ClientID: "c2", Date: jan(11), TotalBilled: d("500"), GramsActual: decimal.NewNullDecimal(d("2.5"))},
			{ID: "o4", Date: jan(12), TotalBilled: d("10")},
		},
	})
}

type testServerOption func(*Options)

func newTestServer(t *testing.T, store records.Store, opts ...testServerOption) *Server {
	t.Helper()
	agg := services.NewAggregator(store, time.UTC)
	dashboards := services.NewDashboardService(agg,
		services.WithDashboardCache(cache.NewLRUCache[core.YearMonth, core.Dashboard](12, time.Minute)))

	o := Options{
		Addr:           ":0",
		Dashboards:     dashboards,
		Logger:         log.New(log.Config{Output: &bytes.Buffer{}}),
		WriteRateLimit: 100,
		Location:       time.UTC,
	}
	if w, ok := store.(records.MovementWriter); ok {
		o.Cash = services.NewCashService(w, nil, dashboards)
	}
	if p, ok := store.(Pinger); ok {
		o.Store = p
	}
	for _, opt := range opts {
		opt(&o)
	}

	srv := NewServer(o)
	srv.now = func() time.Time { return jan(15) }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestDashboardEndpoint(t *testing.T) {
	srv := newTestServer(t, seededStore())

	rec := do(t, srv, http.MethodGet, "/api/dashboard?month=0&year=2024", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, float64(2024), body["year"])
	assert.Equal(t, float64(0), body["month"])
	assert.Equal(t, "150", body["income"])
	assert.Equal(t, "30", body["reinvestment"])
	assert.Equal(t, "120", body["net_profit"])
	assert.Equal(t, "40", body["salary"])
	assert.Equal(t, "7.5", body["grams_sold"])
	assert.Equal(t, "1250.5", body["total_balance"])

	top, ok := body["most_active_client"].(map[string]any)
	require.True(t, ok, "most_active_client should be an object")
	assert.Equal(t, "c1", top["client_id"])
	assert.Equal(t, "Ana", top["name"])
	assert.Equal(t, float64(2), top["order_count"])
	assert.Equal(t, "180", top["total_billed"])

	breakdown := body["breakdown"].(map[string]any)
	assert.Equal(t, "1000", breakdown["cash"])
	assert.Equal(t, "250.5", breakdown["wallet"])
}

func TestDashboardEndpointEmptyMonth(t *testing.T) {
	srv := newTestServer(t, seededStore())

	rec := do(t, srv, http.MethodGet, "/api/dashboard?month=5&year=2023", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)

	assert.Equal(t, "0", body["income"])
	v, present := body["most_active_client"]
	assert.True(t, present)
	assert.Nil(t, v, "no attributed orders renders null")
}

func TestDashboardEndpointDefaultsAndRollover(t *testing.T) {
	srv := newTestServer(t, seededStore())

	body := decode(t, do(t, srv, http.MethodGet, "/api/dashboard", ""))
	assert.Equal(t, float64(2024), body["year"])
	assert.Equal(t, float64(0), body["month"], "defaults to the current month")

	body = decode(t, do(t, srv, http.MethodGet, "/api/dashboard?month=12&year=2023", ""))
	assert.Equal(t, float64(2024), body["year"])
	assert.Equal(t, float64(0), body["month"])
	assert.Equal(t, "150", body["income"])
}

func TestDashboardEndpointBadParams(t *testing.T) {
	srv := newTestServer(t, seededStore())

	for _, q := range []string{"month=abc", "year=20x4"} {
		rec := do(t, srv, http.MethodGet, "/api/dashboard?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Contains(t, decode(t, rec)["error"], "invalid")
	}
}

type downStore struct{}

var errDown = errors.New("connection refused")

func (downStore) ListTransactions(context.Context, records.TransactionFilter) ([]core.Transaction, error) {
	return nil, core.Unavailable("list movements", errDown)
}
func (downStore) ListOrders(context.Context, core.Period) ([]core.Order, error) {
	return nil, core.Unavailable("list orders", errDown)
}
func (downStore) GetClient(context.Context, string) (core.Client, error) {
	return core.Client{}, core.Unavailable("get client", errDown)
}
func (downStore) ListAccounts(context.Context) ([]core.Account, error) {
	return nil, core.Unavailable("list accounts", errDown)
}
func (downStore) Ping(context.Context) error { return core.Unavailable("ping", errDown) }

func TestUnavailableStoreMapsTo503(t *testing.T) {
	srv := newTestServer(t, downStore{})

	for _, path := range []string{"/api/dashboard?month=0&year=2024", "/api/accounts", "/readyz"} {
		rec := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "connection refused", "cause must not leak")
	}
}

func TestAccountsEndpoint(t *testing.T) {
	srv := newTestServer(t, seededStore())

	rec := do(t, srv, http.MethodGet, "/api/accounts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "1250.5", body["total_balance"])
	assert.Len(t, body["accounts"], 2)
}

func TestCreateMovementInvalidatesDashboard(t *testing.T) {
	srv := newTestServer(t, seededStore())

	before := decode(t, do(t, srv, http.MethodGet, "/api/dashboard?month=0&year=2024", ""))
	require.Equal(t, "150", before["income"])

	rec := do(t, srv, http.MethodPost, "/api/movements",
		`{"category":"ingreso","amount":"25,50","account_id":"efectivo","reference":"venta","occurred_at":"2024-01-16"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, "25.5", created["amount"])
	assert.Equal(t, "ingreso", created["category"])

	after := decode(t, do(t, srv, http.MethodGet, "/api/dashboard?month=0&year=2024", ""))
	assert.Equal(t, "175.5", after["income"])
	assert.Equal(t, "1276", after["total_balance"])
}

func TestCreateMovementFormBody(t *testing.T) {
	srv := newTestServer(t, seededStore())

	rec := do(t, srv, http.MethodPost, "/api/movements", "category=sueldo&amount=10&account_id=billetera")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, do(t, srv, http.MethodGet, "/api/accounts", ""))
	assert.Equal(t, "240.5", body["breakdown"].(map[string]any)["wallet"])
}

func TestCreateMovementErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"zero amount", `{"category":"ingreso","amount":"0","account_id":"efectivo"}`, http.StatusBadRequest},
		{"negative amount", `{"category":"ingreso","amount":-5,"account_id":"efectivo"}`, http.StatusBadRequest},
		{"bad category", `{"category":"gasto","amount":"5","account_id":"efectivo"}`, http.StatusBadRequest},
		{"missing account", `{"category":"ingreso","amount":"5"}`, http.StatusBadRequest},
		{"bad date", `{"category":"ingreso","amount":"5","account_id":"efectivo","occurred_at":"yesterday"}`, http.StatusBadRequest},
		{"malformed json", `{"category":`, http.StatusBadRequest},
		{"unknown account", `{"category":"ingreso","amount":"5","account_id":"banco"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, seededStore())
			rec := do(t, srv, http.MethodPost, "/api/movements", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

type readOnlyStore struct{ *memory.Store }

// RecordMovement refuses writes the way the spreadsheet backend does.
func (readOnlyStore) RecordMovement(context.Context, core.Transaction) (string, error) {
	return "", core.ErrReadOnly
}

func TestCreateMovementOnReadOnlyBackend(t *testing.T) {
	srv := newTestServer(t, seededStore(), func(o *Options) { o.Cash = nil })

	rec := do(t, srv, http.MethodPost, "/api/movements", `{"category":"ingreso","amount":"5","account_id":"efectivo"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	srv = newTestServer(t, readOnlyStore{seededStore()})
	rec = do(t, srv, http.MethodPost, "/api/movements", `{"category":"ingreso","amount":"5","account_id":"efectivo"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestCreateMovementRateLimited(t *testing.T) {
	srv := newTestServer(t, seededStore(), func(o *Options) { o.WriteRateLimit = 1 })
	body := `{"category":"ingreso","amount":"5","account_id":"efectivo"}`

	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/movements", body).Code)
	rec := do(t, srv, http.MethodPost, "/api/movements", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/accounts", "").Code)
}

type fakeSnapshots struct {
	snaps []core.MonthSnapshot
	limit int
}

func (f *fakeSnapshots) UpsertMonthSnapshot(context.Context, core.MonthSnapshot) error { return nil }
func (f *fakeSnapshots) ListMonthSnapshots(_ context.Context, limit int) ([]core.MonthSnapshot, error) {
	f.limit = limit
	return f.snaps, nil
}

func TestSnapshotsEndpoint(t *testing.T) {
	srv := newTestServer(t, seededStore())
	assert.Equal(t, http.StatusNotImplemented, do(t, srv, http.MethodGet, "/api/snapshots", "").Code)

	snaps := &fakeSnapshots{snaps: []core.MonthSnapshot{{
		Month:       core.YearMonth{Year: 2024, Month: 0},
		Income:      decimal.NewFromInt(150),
		NetProfit:   decimal.NewFromInt(120),
		TopClientID: "c1",
		ComputedAt:  jan(31),
	}}}
	srv = newTestServer(t, seededStore(), func(o *Options) { o.Snapshots = snaps })

	rec := do(t, srv, http.MethodGet, "/api/snapshots", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultSnapshotLimit, snaps.limit)
	list := decode(t, rec)["snapshots"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "150", list[0].(map[string]any)["income"])

	do(t, srv, http.MethodGet, "/api/snapshots?limit=1000", "")
	assert.Equal(t, maxSnapshotLimit, snaps.limit)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/snapshots?limit=-1", "").Code)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	srv := newTestServer(t, seededStore())

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)

	rec := do(t, srv, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total 2")
	assert.Contains(t, rec.Body.String(), "movements_recorded_total 0")
}

type stubBroker struct{ healthy bool }

func (b stubBroker) Healthy() bool { return b.healthy }

func TestReadyReportsBroker(t *testing.T) {
	srv := newTestServer(t, seededStore())
	checks := decode(t, do(t, srv, http.MethodGet, "/readyz", ""))["checks"].(map[string]any)
	assert.Equal(t, "not_configured", checks["broker"])

	srv = newTestServer(t, seededStore(), func(o *Options) { o.Broker = stubBroker{healthy: false} })
	rec := do(t, srv, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "down", decode(t, rec)["checks"].(map[string]any)["broker"])

	srv = newTestServer(t, seededStore(), func(o *Options) { o.Broker = stubBroker{healthy: true} })
	checks = decode(t, do(t, srv, http.MethodGet, "/readyz", ""))["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["broker"])
}

func TestRouterFallbacksAndHeaders(t *testing.T) {
	srv := newTestServer(t, seededStore())

	rec := do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decode(t, rec)["error"])

	rec = do(t, srv, http.MethodDelete, "/api/accounts", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/accounts", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
