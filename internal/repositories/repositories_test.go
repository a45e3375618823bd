package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
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
	return db
}

func createUser(t *testing.T, db *sql.DB, externalID string) *models.User {
	t.Helper()

	user := models.NewUser(0, externalID, externalID+"@example.com", "Test User")
	if err := NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "ext-1")

		if user.ID() == "" {
			t.Error("user ID should be set after creation")
		}
		if user.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", user.Sequence())
		}

		second := createUser(t, db, "ext-2")
		if second.Sequence() != 2 {
			t.Errorf("expected sequence 2, got %d", second.Sequence())
		}
	})

	t.Run("Create rejects duplicate external id", func(t *testing.T) {
		db := setupTestDB(t)
		createUser(t, db, "ext-1")

		dup := models.NewUser(0, "ext-1", "", "")
		if err := NewUserRepository(db).Create(ctx, dup); err == nil {
			t.Fatal("expected error for duplicate external id")
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "ext-1")

		retrieved, err := NewUserRepository(db).Get(ctx, user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}

		if retrieved.ExternalID() != "ext-1" {
			t.Errorf("expected external id ext-1, got %s", retrieved.ExternalID())
		}
		if retrieved.Ledger().LastActiveAt.IsSome() {
			t.Error("new user should have no lastActiveAt")
		}
		if retrieved.PlaylistID().IsSome() {
			t.Error("new user should have no playlist")
		}
	})

	t.Run("Get missing is ErrNotFound", func(t *testing.T) {
		db := setupTestDB(t)

		_, err := NewUserRepository(db).Get(ctx, "nonexistent-id")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetByExternalID and Ensure", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)

		found, err := repo.GetByExternalID(ctx, "ext-9")
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if found.IsSome() {
			t.Fatal("expected no user yet")
		}

		first, err := repo.Ensure(ctx, "ext-9", "", "")
		if err != nil {
			t.Fatalf("ensure failed: %v", err)
		}
		again, err := repo.Ensure(ctx, "ext-9", "", "")
		if err != nil {
			t.Fatalf("second ensure failed: %v", err)
		}
		if first.ID() != again.ID() {
			t.Error("Ensure should return the existing user")
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := createUser(t, db, "ext-1")

		user.SetName("Renamed")
		user.SetPlaylistID(models.Some("PL1"))
		if err := repo.Update(ctx, user); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}

		retrieved, _ := repo.Get(ctx, user.ID())
		if retrieved.Name() != "Renamed" || retrieved.PlaylistID().OrElse("") != "PL1" {
			t.Errorf("update not persisted: %s %v", retrieved.Name(), retrieved.PlaylistID())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := createUser(t, db, "ext-1")

		if err := repo.Delete(ctx, user.ID()); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}
		if _, err := repo.Get(ctx, user.ID()); err == nil {
			t.Error("expected error when getting deleted user")
		}
		if err := repo.Delete(ctx, user.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting twice, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		createUser(t, db, "a")
		b := createUser(t, db, "b")

		l := models.Ledger{CurrentStreak: 1, BestStreak: 1, LastActiveAt: models.Some(time.Now())}
		if err := repo.SaveStreak(ctx, b.ID(), l); err != nil {
			t.Fatalf("failed to save streak: %v", err)
		}

		all, err := repo.List(ctx, nil)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 2 || all[0].ExternalID() != "a" {
			t.Errorf("expected 2 users ordered by sequence, got %d", len(all))
		}

		active, err := repo.List(ctx, map[string]any{"active": true})
		if err != nil {
			t.Fatalf("failed to list active: %v", err)
		}
		if len(active) != 1 || active[0].ID() != b.ID() {
			t.Errorf("expected only user b to be active, got %d users", len(active))
		}
	})

	t.Run("AdjustCompleted never goes negative", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := createUser(t, db, "ext-1")

		for _, delta := range []int{1, 1, -1, -1, -1} {
			if err := repo.AdjustCompleted(ctx, user.ID(), delta); err != nil {
				t.Fatalf("adjust %d failed: %v", delta, err)
			}
		}

		retrieved, _ := repo.Get(ctx, user.ID())
		if got := retrieved.Ledger().TotalVideosCompleted; got != 0 {
			t.Errorf("expected total 0, got %d", got)
		}
	})

	t.Run("SaveStreak round trips lastActiveAt", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := createUser(t, db, "ext-1")

		at := time.Date(2025, 7, 1, 12, 30, 0, 0, time.UTC)
		if err := repo.SaveStreak(ctx, user.ID(), models.Ledger{CurrentStreak: 2, BestStreak: 5, LastActiveAt: models.Some(at)}); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		l := mustLedger(t, repo, user.ID())
		got, ok := l.LastActiveAt.Get()
		if !ok || !got.Equal(at) {
			t.Errorf("expected lastActiveAt %v, got %v", at, l.LastActiveAt)
		}
		if l.CurrentStreak != 2 || l.BestStreak != 5 {
			t.Errorf("unexpected streaks %d/%d", l.CurrentStreak, l.BestStreak)
		}
	})

	t.Run("SaveStreak rejects best below current", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "ext-1")

		err := NewUserRepository(db).SaveStreak(ctx, user.ID(), models.Ledger{CurrentStreak: 3, BestStreak: 1})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("ResetForPlaylist keeps best streak", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := createUser(t, db, "ext-1")

		repo.AdjustCompleted(ctx, user.ID(), 3)
		repo.SaveStreak(ctx, user.ID(), models.Ledger{CurrentStreak: 4, BestStreak: 7, LastActiveAt: models.Some(time.Now())})

		if err := repo.ResetForPlaylist(ctx, user.ID(), "PL2"); err != nil {
			t.Fatalf("reset failed: %v", err)
		}

		l := mustLedger(t, repo, user.ID())
		if l.TotalVideosCompleted != 0 || l.CurrentStreak != 0 || l.BestStreak != 7 {
			t.Errorf("unexpected ledger after reset %+v", l)
		}
	})
}

func mustLedger(t *testing.T, repo *UserRepository, id string) models.Ledger {
	t.Helper()

	user, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}
	return user.Ledger()
}

func TestProgressRepository(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Get missing is empty", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "ext-1")

		found, err := NewProgressRepository(db).Get(ctx, user.ID(), "vid")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if found.IsSome() {
			t.Error("expected no record")
		}
	})

	t.Run("SetCompleted reports the prior flag", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewProgressRepository(db)
		user := createUser(t, db, "ext-1")

		was, p, err := repo.SetCompleted(ctx, user.ID(), "vid", true, at)
		if err != nil {
			t.Fatalf("complete failed: %v", err)
		}
		if was || !p.Completed || !p.Persisted() {
			t.Errorf("unexpected first completion: was=%v %+v", was, p)
		}

		was, _, err = repo.SetCompleted(ctx, user.ID(), "vid", true, at.Add(time.Minute))
		if err != nil {
			t.Fatalf("second complete failed: %v", err)
		}
		if !was {
			t.Error("second completion should see the prior flag")
		}

		was, p, _ = repo.SetCompleted(ctx, user.ID(), "vid", false, at.Add(2*time.Minute))
		if !was || p.Completed {
			t.Errorf("uncomplete should flip the flag: was=%v completed=%v", was, p.Completed)
		}
	})

	t.Run("SavePosition keeps completion", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewProgressRepository(db)
		user := createUser(t, db, "ext-1")

		repo.SetCompleted(ctx, user.ID(), "vid", true, at)
		p, err := repo.SavePosition(ctx, user.ID(), "vid", 93.5, at.Add(time.Minute))
		if err != nil {
			t.Fatalf("save position failed: %v", err)
		}
		if !p.Completed || p.WatchPosition != 93.5 {
			t.Errorf("unexpected record %+v", p)
		}

		if _, err := repo.SavePosition(ctx, user.ID(), "vid", -1, at); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for negative position, got %v", err)
		}
	})

	t.Run("RecentCompletions and counts", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewProgressRepository(db)
		user := createUser(t, db, "ext-1")

		for i, vid := range []string{"a", "b", "c"} {
			repo.SetCompleted(ctx, user.ID(), vid, true, at.Add(time.Duration(i)*time.Hour))
		}
		repo.SavePosition(ctx, user.ID(), "d", 10, at)

		recent, err := repo.RecentCompletions(ctx, user.ID(), 2)
		if err != nil {
			t.Fatalf("recent failed: %v", err)
		}
		if len(recent) != 2 || recent[0].VideoID != "c" || recent[1].VideoID != "b" {
			t.Errorf("unexpected recent completions %+v", recent)
		}

		n, _ := repo.CountCompleted(ctx, user.ID())
		if n != 3 {
			t.Errorf("expected 3 completed, got %d", n)
		}

		all, _ := repo.ListForUser(ctx, user.ID())
		if len(all) != 4 || all["d"].Completed {
			t.Errorf("unexpected list %v", all)
		}

		deleted, err := repo.DeleteForUser(ctx, user.ID())
		if err != nil || deleted != 4 {
			t.Errorf("expected 4 deleted, got %d (%v)", deleted, err)
		}
	})
}

func TestPlaylistRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewPlaylistRepository(db)
	user := createUser(t, db, "ext-1")

	videos := []models.Video{
		{ID: "v2", Title: "Second", Position: 1},
		{ID: "v1", Title: "First", Position: 0},
		{ID: "", Title: "Deleted video", Position: 2},
	}
	if err := repo.ReplaceVideos(ctx, user.ID(), "PL1", videos); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	list, err := repo.ListVideos(ctx, user.ID())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "v1" {
		t.Errorf("expected ordered snapshot without blank ids, got %+v", list)
	}

	if err := repo.ReplaceVideos(ctx, user.ID(), "PL2", []models.Video{{ID: "x", Position: 0}}); err != nil {
		t.Fatalf("second replace failed: %v", err)
	}
	if n, _ := repo.CountVideos(ctx, user.ID()); n != 1 {
		t.Errorf("expected snapshot to be replaced, got %d videos", n)
	}
}

func TestOutboxRepository(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Enqueue and Due", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewOutboxRepository(db)
		user := createUser(t, db, "ext-1")

		first := models.NewOutboxEvent(user.ID(), "a", models.VideoCompleted, at)
		second := models.NewOutboxEvent(user.ID(), "b", models.VideoCompleted, at.Add(time.Second))
		later := models.NewOutboxEvent(user.ID(), "c", models.VideoCompleted, at.Add(time.Hour))

		for _, e := range []*models.OutboxEvent{first, second, later} {
			if err := repo.Enqueue(ctx, e); err != nil {
				t.Fatalf("enqueue failed: %v", err)
			}
		}

		due, err := repo.Due(ctx, at.Add(time.Minute), 10)
		if err != nil {
			t.Fatalf("due failed: %v", err)
		}
		if len(due) != 2 || due[0].ID != first.ID || due[1].ID != second.ID {
			t.Errorf("expected first two events in order, got %d", len(due))
		}
		if !due[0].OccurredAt.Equal(at) || due[0].Kind != models.VideoCompleted {
			t.Errorf("event did not round trip: %+v", due[0])
		}
	})

	t.Run("MarkFailed delays and kills", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewOutboxRepository(db)
		user := createUser(t, db, "ext-1")

		e := models.NewOutboxEvent(user.ID(), "a", models.VideoCompleted, at)
		repo.Enqueue(ctx, e)

		if err := repo.MarkFailed(ctx, e.ID, 1, at.Add(time.Minute), errors.New("busy"), false); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		if due, _ := repo.Due(ctx, at, 10); len(due) != 0 {
			t.Error("backed-off event should not be due yet")
		}
		if due, _ := repo.Due(ctx, at.Add(2*time.Minute), 10); len(due) != 1 || due[0].LastError != "busy" {
			t.Error("event should be due after backoff with its error recorded")
		}

		if err := repo.MarkFailed(ctx, e.ID, 2, at, errors.New("still busy"), true); err != nil {
			t.Fatalf("mark dead failed: %v", err)
		}
		stats, _ := repo.Stats(ctx)
		if stats.Dead != 1 || stats.Pending != 0 {
			t.Errorf("unexpected stats %+v", stats)
		}

		n, err := repo.Requeue(ctx, at)
		if err != nil || n != 1 {
			t.Fatalf("requeue: %d, %v", n, err)
		}
		got, _ := repo.Get(ctx, e.ID)
		if got.Status != models.EventPending || got.Attempts != 0 {
			t.Errorf("requeued event should be fresh, got %+v", got)
		}
	})

	t.Run("MarkProcessed only once", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewOutboxRepository(db)
		user := createUser(t, db, "ext-1")

		e := models.NewOutboxEvent(user.ID(), "a", models.VideoCompleted, at)
		repo.Enqueue(ctx, e)

		if err := repo.MarkProcessed(ctx, e.ID, at); err != nil {
			t.Fatalf("mark processed failed: %v", err)
		}
		if err := repo.MarkProcessed(ctx, e.ID, at); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("second mark should find no pending event, got %v", err)
		}

		got, _ := repo.Get(ctx, e.ID)
		if !got.ProcessedAt.IsSome() {
			t.Error("processed_at should be set")
		}
	})

	t.Run("DeletePendingForUser", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewOutboxRepository(db)
		user := createUser(t, db, "ext-1")
		other := createUser(t, db, "ext-2")

		repo.Enqueue(ctx, models.NewOutboxEvent(user.ID(), "a", models.VideoCompleted, at))
		repo.Enqueue(ctx, models.NewOutboxEvent(other.ID(), "a", models.VideoCompleted, at))

		n, err := repo.DeletePendingForUser(ctx, user.ID())
		if err != nil || n != 1 {
			t.Fatalf("expected 1 deleted, got %d (%v)", n, err)
		}
		if pending, _ := repo.PendingForUser(ctx, other.ID()); len(pending) != 1 {
			t.Error("other user's events must survive")
		}
	})

	t.Run("BlockingForUser counts pending and dead", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewOutboxRepository(db)
		user := createUser(t, db, "ext-1")

		done := models.NewOutboxEvent(user.ID(), "a", models.VideoCompleted, at)
		dead := models.NewOutboxEvent(user.ID(), "b", models.VideoCompleted, at)
		for _, e := range []*models.OutboxEvent{done, dead} {
			repo.Enqueue(ctx, e)
		}
		repo.MarkProcessed(ctx, done.ID, at)

		if n, err := repo.BlockingForUser(ctx, user.ID()); err != nil || n != 1 {
			t.Fatalf("expected 1 pending event, got %d (%v)", n, err)
		}

		if err := repo.MarkFailed(ctx, dead.ID, 1, at, errors.New("corrupt"), true); err != nil {
			t.Fatalf("mark dead failed: %v", err)
		}
		if pending, _ := repo.PendingForUser(ctx, user.ID()); len(pending) != 0 {
			t.Errorf("dead event should not be pending, got %d", len(pending))
		}
		if n, _ := repo.BlockingForUser(ctx, user.ID()); n != 1 {
			t.Errorf("dead event should still block, got %d", n)
		}

		repo.Requeue(ctx, at)
		repo.MarkProcessed(ctx, dead.ID, at)
		if n, _ := repo.BlockingForUser(ctx, user.ID()); n != 0 {
			t.Errorf("expected nothing blocking, got %d", n)
		}
	})
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	user := createUser(t, db, "ext-1")

	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		if err := NewUserRepository(tx).AdjustCompleted(ctx, user.ID(), 5); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if !errors.Is(err, shared.ErrUnexpected) {
		t.Errorf("expected classified error, got %v", err)
	}

	if l := mustLedger(t, NewUserRepository(db), user.ID()); l.TotalVideosCompleted != 0 {
		t.Errorf("rolled back change leaked: %d", l.TotalVideosCompleted)
	}
}
