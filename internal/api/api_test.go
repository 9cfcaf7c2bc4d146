package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dialflow/floorwatch/internal/channel"
	"github.com/dialflow/floorwatch/internal/heartbeat"
	"github.com/dialflow/floorwatch/internal/ledger"
	"github.com/dialflow/floorwatch/internal/models"
	"github.com/dialflow/floorwatch/internal/status"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubConn satisfies channel.Conn for registry setup in tests.
type stubConn struct {
	events []channel.ServerEvent
}

func (s *stubConn) Send(evt channel.ServerEvent) error {
	s.events = append(s.events, evt)
	return nil
}

func (s *stubConn) Close() error { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, StartOpts) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.AgentSession{}, &models.StatusSlice{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	hb := heartbeat.NewStore()
	l := ledger.New(db)
	opts := StartOpts{
		Hub:        channel.NewHub(hb, l, nil),
		Ledger:     l,
		Heartbeats: hb,
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	registerRoutes(router, opts)
	return router, opts
}

func doJSON(t *testing.T, router *gin.Engine, method, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
	}
	return w.Code, body
}

func TestPresence_NoSession(t *testing.T) {
	router, _ := newTestRouter(t)

	code, body := doJSON(t, router, http.MethodGet, "/api/agents/agent-7/presence")
	if code != http.StatusOK {
		t.Fatalf("code = %d, want 200", code)
	}
	if body["live"] != false || body["connected"] != false {
		t.Errorf("body = %v, want offline", body)
	}
}

func TestPresence_LiveSession(t *testing.T) {
	router, opts := newTestRouter(t)

	if _, err := opts.Hub.Register("agent-7", &stubConn{}, status.Available); err != nil {
		t.Fatalf("Register: %v", err)
	}

	code, body := doJSON(t, router, http.MethodGet, "/api/agents/agent-7/presence")
	if code != http.StatusOK {
		t.Fatalf("code = %d, want 200", code)
	}
	if body["live"] != true || body["status"] != status.Available || body["connected"] != true {
		t.Errorf("body = %v, want live available connected", body)
	}
}

func TestRangeTotals_Validation(t *testing.T) {
	router, _ := newTestRouter(t)

	code, _ := doJSON(t, router, http.MethodGet, "/api/agents/agent-7/totals?from=bad&to=2026-08-28")
	if code != http.StatusBadRequest {
		t.Errorf("bad from: code = %d, want 400", code)
	}
	code, _ = doJSON(t, router, http.MethodGet, "/api/agents/agent-7/totals?from=2026-08-28&to=2026-08-01")
	if code != http.StatusBadRequest {
		t.Errorf("inverted range: code = %d, want 400", code)
	}
}

func TestRangeTotals(t *testing.T) {
	router, opts := newTestRouter(t)
	day := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	if _, err := opts.Ledger.Open("agent-7", status.Available, day); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := opts.Ledger.Close("agent-7", day.Add(time.Hour), ledger.ReasonLogout); err != nil {
		t.Fatalf("Close: %v", err)
	}

	code, body := doJSON(t, router, http.MethodGet, "/api/agents/agent-7/totals?from=2026-08-25&to=2026-08-25")
	if code != http.StatusOK {
		t.Fatalf("code = %d, want 200", code)
	}
	totals := body["totals"].(map[string]any)
	if totals[status.Available].(float64) != 3600 {
		t.Errorf("Available = %v, want 3600", totals[status.Available])
	}
}

func TestOnlineRoster(t *testing.T) {
	router, opts := newTestRouter(t)

	if _, err := opts.Hub.Register("agent-1", &stubConn{}, status.Available); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := opts.Hub.Register("agent-2", &stubConn{}, status.Meeting); err != nil {
		t.Fatalf("Register: %v", err)
	}

	code, body := doJSON(t, router, http.MethodGet, "/api/agents/online")
	if code != http.StatusOK {
		t.Fatalf("code = %d, want 200", code)
	}
	if body["count"].(float64) != 2 {
		t.Errorf("count = %v, want 2", body["count"])
	}
	agents := body["agents"].([]any)
	first := agents[0].(map[string]any)
	if first["connected"] != true {
		t.Errorf("agent = %v, want connected", first)
	}
	if _, ok := first["last_seen"]; !ok {
		t.Errorf("agent = %v, want last_seen", first)
	}
}

func TestAdminDisconnect(t *testing.T) {
	router, opts := newTestRouter(t)

	conn := &stubConn{}
	if _, err := opts.Hub.Register("agent-7", conn, status.Available); err != nil {
		t.Fatalf("Register: %v", err)
	}

	code, body := doJSON(t, router, http.MethodPost, "/api/agents/agent-7/disconnect")
	if code != http.StatusOK {
		t.Fatalf("code = %d, want 200 (%v)", code, body)
	}

	// Session closed with reason "forced" and the client was told.
	if _, err := opts.Ledger.OpenSession("agent-7"); err == nil {
		t.Error("session still open after admin disconnect")
	}
	var forced bool
	for _, evt := range conn.events {
		if evt.Type == channel.EventForcedDisconnect && evt.Reason == channel.ReasonForced {
			forced = true
		}
	}
	if !forced {
		t.Error("client got no forced_disconnect")
	}
}

func TestAdminDisconnect_NoSession(t *testing.T) {
	router, _ := newTestRouter(t)
	code, _ := doJSON(t, router, http.MethodPost, "/api/agents/ghost/disconnect")
	if code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", code)
	}
}

func TestStart_Validation(t *testing.T) {
	if err := Start(nil, StartOpts{}); err == nil || !strings.Contains(err.Error(), "hub is required") {
		t.Errorf("err = %v, want hub required", err)
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	writeSSE(&buf, "presence", presenceEvent{AgentID: "agent-7", Kind: "connected", Count: 1})
	out := buf.String()
	if !strings.HasPrefix(out, "event: presence\ndata: ") || !strings.HasSuffix(out, "\n\n") {
		t.Errorf("sse frame = %q", out)
	}
	if !strings.Contains(out, `"agent_id":"agent-7"`) {
		t.Errorf("sse frame = %q", out)
	}
}
