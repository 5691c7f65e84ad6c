package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campusride/campus/internal/command"
	"github.com/campusride/campus/internal/feed"
	"github.com/campusride/campus/internal/query"
	"github.com/campusride/campus/internal/repository"
	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/internal/store/memory"
	"github.com/campusride/campus/shared/cqrs"
	"github.com/campusride/campus/shared/events"
	"github.com/campusride/campus/shared/models"
	sharedredis "github.com/campusride/campus/shared/redis"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type liveFixture struct {
	server *httptest.Server
	ledger *command.LedgerCommandService
}

func newLiveFixture(t *testing.T, userID string) *liveFixture {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })

	users := repository.NewUserRepository(st, sharedredis.NewViewCache[models.UserView](nil, 0))
	txs := repository.NewTransactionRepository(st)
	f := feed.New(st,
		query.NewLedgerQueryService(users, txs),
		query.NewRideQueryService(repository.NewRideRepository(st)),
		query.NewRentalQueryService(repository.NewScootyRepository(st)),
	)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(userID))
	r.GET("/v1/live", NewLiveHandler(f, nil).Stream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &liveFixture{server: srv, ledger: command.NewLedgerCommandService(users, txs, events.Discard{})}
}

func (f *liveFixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/live" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v (resp=%v)", err, resp)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type wireSnapshot struct {
	Topic feed.Topic `json:"topic"`
	Data  struct {
		Balance float64 `json:"balance"`
	} `json:"data"`
}

func readSnapshot(t *testing.T, conn *websocket.Conn) wireSnapshot {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var snap wireSnapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	return snap
}

func TestLiveStreamPushesBalanceChanges(t *testing.T) {
	f := newLiveFixture(t, "usr-001")
	conn := f.dial(t, "?topics=balance")

	first := readSnapshot(t, conn)
	if first.Topic != feed.TopicBalance || first.Data.Balance != 0 {
		t.Fatalf("unexpected initial snapshot %+v", first)
	}

	_, err := f.ledger.TopUp(context.Background(), cqrs.TopUpCommand{
		Identity: cqrs.Identity{UserID: "usr-001", Email: "usr-001@campus.edu"},
		Amount:   decimal.NewFromInt(75),
	})
	if err != nil {
		t.Fatalf("top up: %v", err)
	}

	// Opening the account may surface as its own snapshot before the credit.
	for i := 0; i < 3; i++ {
		snap := readSnapshot(t, conn)
		if snap.Topic != feed.TopicBalance {
			t.Fatalf("unexpected topic %q", snap.Topic)
		}
		if snap.Data.Balance == 75 {
			return
		}
	}
	t.Error("balance 75 never pushed after top-up")
}

func TestLiveStreamRejectsUnknownTopic(t *testing.T) {
	f := newLiveFixture(t, "usr-001")
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/live?topics=balance,weather"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", resp)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://campus.example"})
	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"no origin header", "", true},
		{"allowed origin", "https://campus.example", true},
		{"foreign origin", "https://evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/v1/live", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := check(req); got != tt.want {
			t.Errorf("[%s] expected %v got %v", tt.name, tt.want, got)
		}
	}
	if !originChecker(nil)(httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Error("empty allow-list should accept every origin")
	}
}

type fixedMode store.Mode

func (m fixedMode) Mode() store.Mode { return store.Mode(m) }

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", NewHealthHandler(fixedMode(store.ModeFallback)).Health)
	w := doRequest(r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), string(store.ModeFallback)) {
		t.Errorf("unexpected health response %d %s", w.Code, w.Body.String())
	}
}
