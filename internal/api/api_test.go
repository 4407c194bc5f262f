package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/auth"
	"dispatch-service/internal/coordination"
	"dispatch-service/internal/db/memdb"
	"dispatch-service/internal/errs"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/models"
	"dispatch-service/internal/notification"
)

const jwtSecret = "api-test-secret"

type env struct {
	t      *testing.T
	store  *memdb.Store
	engine *coordination.Engine
	hub    *notification.Hub
	router *gin.Engine
	owner  uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logging.NewWithWriter(io.Discard, "error")
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	store := memdb.New()
	hub := notification.NewHub(logger)
	engine := coordination.New(store, logger,
		coordination.WithMetrics(m),
		coordination.WithNotifier(syncNotifier{hub}),
	)
	owner := uuid.New()
	store.PutOwner(models.Owner{ID: owner, FullName: "Mara Lopez"})

	router := NewRouter(logger, RouterConfig{
		Validator: auth.NewJWTValidator(jwtSecret, ""),
		Metrics:   m,
		Gatherer:  reg,
	}, NewHandler(engine, hub, logger))
	return &env{t: t, store: store, engine: engine, hub: hub, router: router, owner: owner}
}

// syncNotifier delivers straight to the hub so tests need no worker pool.
type syncNotifier struct{ hub *notification.Hub }

func (n syncNotifier) Notify(ctx context.Context, ev models.Event) { _ = n.hub.Send(ctx, ev) }

func (e *env) responder(badge string) uuid.UUID {
	e.t.Helper()
	id := uuid.New()
	require.NoError(e.t, e.store.PutResponder(models.Responder{
		ID: id, Type: models.ResponderPolice, BadgeNumber: badge, Status: models.Available, Active: true,
	}))
	return id
}

func (e *env) alert() uuid.UUID {
	e.t.Helper()
	a := models.NewAlert(e.owner, decimal.RequireFromString("10.3157"), decimal.RequireFromString("123.8854"), models.TriggerManual, time.Now())
	require.NoError(e.t, e.engine.RaiseAlert(context.Background(), a))
	return a.ID
}

func (e *env) token(id uuid.UUID, role models.Role) string {
	e.t.Helper()
	tok, err := auth.Sign(jwtSecret, "", auth.Identity{UserID: id, Role: role}, time.Hour, time.Now())
	require.NoError(e.t, err)
	return tok
}

func (e *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestAcceptRace(t *testing.T) {
	e := newEnv(t)
	r1 := e.responder("R-1")
	r2 := e.responder("R-2")
	a := e.alert()

	w := e.do(http.MethodPut, "/responder/accept-alert", e.token(r1, models.RoleResponder), gin.H{"alertId": a})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored, _ := e.store.Alert(a)
	assert.Equal(t, models.AlertAccepted, stored.Status)

	w = e.do(http.MethodPut, "/responder/accept-alert", e.token(r2, models.RoleResponder), gin.H{"alertId": a})
	assert.Equal(t, http.StatusNotFound, w.Code)
	for _, entry := range e.store.Assignments(a) {
		assert.NotEqual(t, r2, entry.ResponderID)
	}

	w = e.do(http.MethodGet, "/responder/accepted-alerts", e.token(r1, models.RoleResponder), nil)
	require.Equal(t, http.StatusOK, w.Code)
	held := decode[[]models.AcceptedAlert](t, w)
	require.Len(t, held, 1)
	assert.Equal(t, a, held[0].AlertID)
}

func TestForwardVisibility(t *testing.T) {
	e := newEnv(t)
	r1 := e.responder("R-1")
	r2 := e.responder("R-2")
	b := e.alert()
	t1, t2 := e.token(r1, models.RoleResponder), e.token(r2, models.RoleResponder)

	w := e.do(http.MethodPut, "/responder/forward-alert", t1, gin.H{"alertId": b, "badgeNumber": "R-2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode[map[string]string](t, w)["message"], "R-2")

	w = e.do(http.MethodGet, "/responder/pending-alerts", t2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[[]models.PendingAlert](t, w)
	require.Len(t, pending, 1)
	assert.Equal(t, b, pending[0].ID)
	assert.True(t, pending[0].Forwarded)

	w = e.do(http.MethodGet, "/responder/pending-alerts", t1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.PendingAlert](t, w))
}

func TestForwardErrors(t *testing.T) {
	e := newEnv(t)
	r1 := e.responder("R-1")
	a := e.alert()
	tok := e.token(r1, models.RoleResponder)

	w := e.do(http.MethodPut, "/responder/forward-alert", tok, gin.H{"alertId": a, "badgeNumber": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPut, "/responder/forward-alert", tok, gin.H{"alertId": a, "badgeNumber": "NOBODY"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "responder not found", decode[map[string]string](t, w)["error"])
}

func TestAuthorization(t *testing.T) {
	e := newEnv(t)
	user := uuid.New()

	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"missing token", "", "", http.StatusUnauthorized},
		{"garbage token", "", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "", "Basic " + e.token(user, models.RoleResponder), http.StatusUnauthorized},
		{"user role on responder route", e.token(user, models.RoleUser), "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/responder/pending-alerts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			} else if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			e.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
			}
		})
	}
}

func TestCancelAlert(t *testing.T) {
	e := newEnv(t)
	a := e.alert()

	w := e.do(http.MethodPut, "/user/cancel-alert", e.token(uuid.New(), models.RoleUser), gin.H{"alertId": a})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPut, "/user/cancel-alert", e.token(e.owner, models.RoleUser), gin.H{"alertId": a})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored, _ := e.store.Alert(a)
	assert.Equal(t, models.AlertCanceled, stored.Status)
}

func TestBadRequests(t *testing.T) {
	e := newEnv(t)
	tok := e.token(e.responder("R-1"), models.RoleResponder)

	w := e.do(http.MethodPut, "/responder/accept-alert", tok, gin.H{"alertId": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPut, "/responder/reject-alert", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w = e.do(http.MethodGet, "/responder/alert-details/xyz", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/responder/alert-details/"+uuid.NewString(), tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAvailability(t *testing.T) {
	e := newEnv(t)
	r := e.responder("R-1")
	tok := e.token(r, models.RoleResponder)

	for _, path := range []string{"/responder/status", "/responder/availability"} {
		w := e.do(http.MethodPut, path, tok, gin.H{"status": "busy"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w := e.do(http.MethodGet, "/responder/profile", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	p := decode[models.Responder](t, w)
	assert.Equal(t, models.Busy, p.Status)

	w = e.do(http.MethodPut, "/responder/status", tok, gin.H{"status": "sleeping"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "AVAILABLE, BUSY, OFF_DUTY")
}

func TestDetailResolveAndHistory(t *testing.T) {
	e := newEnv(t)
	r := e.responder("R-1")
	tok := e.token(r, models.RoleResponder)
	a := e.alert()

	w := e.do(http.MethodGet, "/responder/alert-details/"+a.String(), tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[models.AlertDetail](t, w)
	require.NotNil(t, detail.Owner)
	assert.Equal(t, "Mara Lopez", detail.Owner.FullName)
	require.NotNil(t, detail.Assignment)
	assert.Equal(t, models.AssignmentPending, detail.Assignment.Status)

	w = e.do(http.MethodGet, "/responder/active-alerts", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.AlertSummary](t, w), 1)

	require.Equal(t, http.StatusOK, e.do(http.MethodPut, "/responder/accept-alert", tok, gin.H{"alertId": a}).Code)
	w = e.do(http.MethodPut, "/responder/arrival", tok, gin.H{"alertId": a, "eta": "5 min", "arrived": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	entry := decode[models.Assignment](t, w)
	assert.NotNil(t, entry.ArrivedAt)

	require.Equal(t, http.StatusOK, e.do(http.MethodPut, "/responder/resolve-alert", tok, gin.H{"alertId": a}).Code)

	w = e.do(http.MethodGet, "/responder/my-alerts", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]models.HistoryEntry](t, w)
	require.Len(t, history, 1)
	assert.Equal(t, models.AlertResolved, history[0].Alert.Status)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestPublicMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("forward alert x: %w: badge number is required", errs.ErrInvalidArgument), "invalid argument: badge number is required"},
		{fmt.Errorf("accept alert x: %w", errs.ErrNotFoundOrInactive), "alert not found or not active"},
		{fmt.Errorf("cancel alert x: %w", errs.ErrNotFoundOrUnauthorized), "alert not found or not owned by caller"},
		{fmt.Errorf("set availability: %w", errs.ErrConflict), "conflict"},
		{errors.New("boom"), "request failed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, publicMessage(tt.err))
	}
}

func TestWebSocketPush(t *testing.T) {
	e := newEnv(t)
	r1 := e.responder("R-1")
	r2 := e.responder("R-2")
	a := e.alert()

	srv := httptest.NewServer(e.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/responder/ws?access_token=" + e.token(r2, models.RoleResponder)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return e.hub.Connected(r2) == 1 }, 2*time.Second, 5*time.Millisecond)

	var (
		got models.Event
		wg  sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_ = conn.ReadJSON(&got)
	}()

	w := e.do(http.MethodPut, "/responder/forward-alert", e.token(r1, models.RoleResponder), gin.H{"alertId": a, "badgeNumber": "R-2"})
	require.Equal(t, http.StatusOK, w.Code)
	wg.Wait()

	assert.Equal(t, models.EventAlertForwarded, got.Type)
	assert.Equal(t, a, got.AlertID)
	require.NotNil(t, got.TargetResponderID)
	assert.Equal(t, r2, *got.TargetResponderID)
}
