package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/repositories"
	"github.com/desertthunder/ytlearn/internal/services"
	"github.com/desertthunder/ytlearn/internal/shared"
	"github.com/desertthunder/ytlearn/internal/streak"
	"github.com/desertthunder/ytlearn/internal/tasks"
	"github.com/go-chi/chi/v5/middleware"
)

var now = time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)

func setupServer(t *testing.T) (*Server, *sql.DB) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := shared.NewLogger(io.Discard)
	source := services.NewStaticSource(map[string][]models.Video{
		"PL-go": {
			{ID: "go-1", Title: "Tour", Duration: "10:00", Position: 0},
			{ID: "go-2", Title: "Slices", Duration: "12:30", Position: 1},
		},
	})

	engine := tasks.NewEngine(tasks.EngineOpts{
		DB:          db,
		Source:      source,
		Clock:       streak.FixedClock(now),
		Logger:      logger,
		ApplyInline: true,
	})

	return New(Opts{Engine: engine, Logger: logger}), db
}

func do(t *testing.T, h http.Handler, method, path, principal string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if principal != "" {
		req.Header.Set(DefaultIdentityHeader, principal)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func linkedUser(t *testing.T, srv *Server, principal string) string {
	t.Helper()

	rec := do(t, srv, http.MethodPost, "/api/setup/playlist", principal, map[string]string{"playlistId": "PL-go"})
	if rec.Code != http.StatusOK {
		t.Fatalf("playlist setup failed: %d %s", rec.Code, rec.Body.String())
	}

	body := decodeBody[struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}](t, rec)
	return body.User.ID
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := setupServer(t)

	rec := do(t, srv, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody[map[string]string](t, rec); got["status"] != "ok" {
		t.Errorf("unexpected health body %v", got)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON content type, got %q", rec.Header().Get("Content-Type"))
	}

	rec = do(t, srv, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ytlearn_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := setupServer(t)

	rec := do(t, srv, http.MethodGet, "/api/video/complete", "ext-1", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodPost {
		t.Errorf("expected Allow: POST, got %q", rec.Header().Get("Allow"))
	}
}

func TestCompleteVideo(t *testing.T) {
	t.Run("completes and reverses", func(t *testing.T) {
		srv, db := setupServer(t)
		userID := linkedUser(t, srv, "ext-1")

		rec := do(t, srv, http.MethodPost, "/api/video/complete", "ext-1",
			map[string]any{"userId": userID, "videoId": "go-1", "completed": true})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if p := decodeBody[models.VideoProgress](t, rec); !p.Completed || p.VideoID != "go-1" {
			t.Errorf("unexpected record %+v", p)
		}

		user, err := repositories.NewUserRepository(db).Get(context.Background(), userID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if l := user.Ledger(); l.TotalVideosCompleted != 1 || l.CurrentStreak != 1 {
			t.Errorf("expected 1/1, got %+v", l)
		}

		rec = do(t, srv, http.MethodPost, "/api/video/complete", "ext-1",
			map[string]any{"userId": userID, "videoId": "go-1", "completed": false})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		user, _ = repositories.NewUserRepository(db).Get(context.Background(), userID)
		if l := user.Ledger(); l.TotalVideosCompleted != 0 || l.CurrentStreak != 1 {
			t.Errorf("expected counter 0 with streak 1, got %+v", l)
		}
	})

	t.Run("rejects bad requests", func(t *testing.T) {
		srv, _ := setupServer(t)
		userID := linkedUser(t, srv, "ext-1")
		linkedUser(t, srv, "ext-2")

		tests := []struct {
			name      string
			principal string
			body      any
			want      int
		}{
			{"no principal", "", map[string]any{"userId": userID, "videoId": "go-1", "completed": true}, http.StatusUnauthorized},
			{"principal mismatch", "ext-2", map[string]any{"userId": userID, "videoId": "go-1", "completed": true}, http.StatusUnauthorized},
			{"unknown principal", "ext-ghost", map[string]any{"userId": userID, "videoId": "go-1", "completed": true}, http.StatusUnauthorized},
			{"malformed json", "ext-1", `{"userId":`, http.StatusBadRequest},
			{"unknown field", "ext-1", map[string]any{"userId": userID, "videoId": "go-1", "completed": true, "extra": 1}, http.StatusBadRequest},
			{"missing completed", "ext-1", map[string]any{"userId": userID, "videoId": "go-1"}, http.StatusBadRequest},
			{"missing video", "ext-1", map[string]any{"userId": userID, "completed": true}, http.StatusBadRequest},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := do(t, srv, http.MethodPost, "/api/video/complete", tt.principal, tt.body)
				if rec.Code != tt.want {
					t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
				}
			})
		}
	})

	t.Run("validation errors name the json field", func(t *testing.T) {
		srv, _ := setupServer(t)

		rec := do(t, srv, http.MethodPost, "/api/video/complete", "ext-1", map[string]any{"videoId": "go-1", "completed": true})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}

		body := decodeBody[ErrorResponse](t, rec)
		if len(body.Fields) != 1 || body.Fields[0] != "userId is required" {
			t.Errorf("unexpected field errors %v", body.Fields)
		}
	})
}

func TestSavePosition(t *testing.T) {
	srv, _ := setupServer(t)
	linkedUser(t, srv, "ext-1")

	rec := do(t, srv, http.MethodPost, "/api/video/position", "ext-1", map[string]any{"videoId": "go-2", "currentTime": 42.5})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if p := decodeBody[models.VideoProgress](t, rec); p.WatchPosition != 42.5 || p.Completed {
		t.Errorf("unexpected record %+v", p)
	}

	rec = do(t, srv, http.MethodPost, "/api/video/position", "ext-1", map[string]any{"videoId": "go-2", "currentTime": -3})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative time, got %d", rec.Code)
	}
}

func TestLinkPlaylist(t *testing.T) {
	srv, _ := setupServer(t)

	rec := do(t, srv, http.MethodPost, "/api/setup/playlist", "ext-1", map[string]string{"playlistId": "PL-missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown playlist, got %d", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/setup/playlist", "", map[string]string{"playlistId": "PL-go"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without principal, got %d", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/setup/playlist", "ext-1", map[string]string{"playlistId": "PL-go"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody[struct {
		Videos int  `json:"videos"`
		Reset  bool `json:"reset"`
	}](t, rec)
	if body.Videos != 2 || body.Reset {
		t.Errorf("unexpected link result %+v", body)
	}
}

func TestDashboardAndLedger(t *testing.T) {
	srv, db := setupServer(t)
	userID := linkedUser(t, srv, "ext-1")

	users := repositories.NewUserRepository(db)
	err := users.SaveStreak(context.Background(), userID, models.Ledger{
		CurrentStreak: 4, BestStreak: 4, LastActiveAt: models.Some(now.Add(-72 * time.Hour)),
	})
	if err != nil {
		t.Fatalf("SaveStreak failed: %v", err)
	}

	rec := do(t, srv, http.MethodGet, "/api/ledger?userId="+userID, "ext-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	ledger := decodeBody[models.Ledger](t, rec)
	if ledger.CurrentStreak != 0 || ledger.BestStreak != 4 {
		t.Errorf("expected decayed 0/4, got %+v", ledger)
	}

	rec = do(t, srv, http.MethodGet, "/api/ledger?userId="+userID, "ext-2", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for another principal, got %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/api/dashboard", "ext-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	dash := decodeBody[struct {
		TotalVideos int `json:"totalVideos"`
		NextVideo   *struct {
			ID string `json:"id"`
		} `json:"nextVideo"`
		Achievements []struct {
			Key string `json:"key"`
		} `json:"achievements"`
	}](t, rec)
	if dash.TotalVideos != 2 || dash.NextVideo == nil || dash.NextVideo.ID != "go-1" {
		t.Errorf("unexpected dashboard %+v", dash)
	}
	if len(dash.Achievements) != 3 {
		t.Errorf("expected 3 achievements, got %d", len(dash.Achievements))
	}

	rec = do(t, srv, http.MethodGet, "/api/dashboard", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without principal, got %d", rec.Code)
	}
}

func TestIdentity(t *testing.T) {
	var got models.Optional[string]
	h := Identity("X-Learner")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Learner", "  ext-9 ")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if p, ok := got.Get(); !ok || p != "ext-9" {
		t.Errorf("expected principal ext-9, got %v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DefaultIdentityHeader, "ext-9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.IsSome() {
		t.Error("expected no principal when the configured header is absent")
	}
}

func TestRecoverer(t *testing.T) {
	router := NewBasicRouter()
	router.Use(Instrument, middleware.Recoverer)
	router.HandleFunc(http.MethodGet, "/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := do(t, router, http.MethodGet, "/boom", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after panic, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", shared.ErrInvalidInput), http.StatusBadRequest},
		{shared.ErrNotFound, http.StatusNotFound},
		{shared.ErrPlaylistNotFound, http.StatusNotFound},
		{shared.ErrSourceRequest, http.StatusBadGateway},
		{shared.Classify(context.DeadlineExceeded), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
