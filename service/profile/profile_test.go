package profile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/commitly/commitly/db"
	"github.com/commitly/commitly/models"
)

func setupTestDB(t *testing.T) *db.DB {
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	// single connection so every query sees the same in-memory database
	database.SetMaxOpenConns(1)

	if err := database.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	return database
}

type fakeWelcome struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeWelcome) DispatchWelcome(userID, username, pushToken string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
}

func (f *fakeWelcome) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func strPtr(s string) *string { return &s }

func TestGetOrCreateProfile_Idempotent(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	svc := NewService(database, nil)
	ctx := context.Background()

	first, err := svc.GetOrCreateProfile(ctx, "user-1", nil)
	if err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}
	if first.DailyGoal != models.DefaultDailyGoal {
		t.Errorf("Expected default goal %d, got %d", models.DefaultDailyGoal, first.DailyGoal)
	}

	second, err := svc.GetOrCreateProfile(ctx, "user-1", nil)
	if err != nil {
		t.Fatalf("Failed to fetch profile: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected same document, got %q then %q", first.ID, second.ID)
	}
}

func TestAddPoints_Accumulates(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	svc := NewService(database, nil)
	ctx := context.Background()

	if _, err := svc.GetOrCreateProfile(ctx, "user-1", nil); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	if _, err := svc.AddPoints(ctx, "user-1", 10, nil); err != nil {
		t.Fatalf("Failed to add points: %v", err)
	}
	p, err := svc.AddPoints(ctx, "user-1", 15, nil)
	if err != nil {
		t.Fatalf("Failed to add points: %v", err)
	}

	if p.Points != 25 {
		t.Errorf("Expected 25 points, got %d", p.Points)
	}
	if got := svc.GetPoints(ctx, "user-1"); got != 25 {
		t.Errorf("GetPoints: expected 25, got %d", got)
	}
}

func TestAddPoints_FloorsAtZero(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	svc := NewService(database, nil)
	ctx := context.Background()

	if _, err := svc.GetOrCreateProfile(ctx, "user-1", nil); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}
	if _, err := svc.AddPoints(ctx, "user-1", 10, nil); err != nil {
		t.Fatalf("Failed to add points: %v", err)
	}

	p, err := svc.AddPoints(ctx, "user-1", -50, nil)
	if err != nil {
		t.Fatalf("Failed to subtract points: %v", err)
	}
	if p.Points != 0 {
		t.Errorf("Expected points floored at 0, got %d", p.Points)
	}
}

func TestAddPoints_CreatesProfileWhenAbsent(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	svc := NewService(database, nil)
	ctx := context.Background()

	p, err := svc.AddPoints(ctx, "user-1", 30, &AwardContext{
		LastCommitAt: "2026-08-30T10:00:00Z",
		CommitSHA:    "abc123",
	})
	if err != nil {
		t.Fatalf("Failed to add points: %v", err)
	}

	if p.Points != 30 {
		t.Errorf("Expected 30 points on fresh profile, got %d", p.Points)
	}
	// the create path seeds the balance only; the award context is dropped
	if p.LastCommitAt != nil {
		t.Errorf("Expected no last commit timestamp on create path, got %v", *p.LastCommitAt)
	}
	if p.TodaysCommits != 0 {
		t.Errorf("Expected daily counter untouched on create path, got %d", p.TodaysCommits)
	}

	p, err = svc.AddPoints(ctx, "user-2", -5, nil)
	if err != nil {
		t.Fatalf("Failed to add negative points: %v", err)
	}
	if p.Points != 0 {
		t.Errorf("Expected fresh profile with 0 points on negative delta, got %d", p.Points)
	}
}

func TestGetPoints_MissingProfile(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	svc := NewService(database, nil)
	if got := svc.GetPoints(context.Background(), "nobody"); got != 0 {
		t.Errorf("Expected 0 points for missing profile, got %d", got)
	}
}

func TestUpdateDailyGoal_Validation(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	svc := NewService(database, nil)
	ctx := context.Background()

	if _, err := svc.GetOrCreateProfile(ctx, "user-1", nil); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	for _, goal := range []int{0, 51, -3} {
		if _, err := svc.UpdateDailyGoal(ctx, "user-1", goal); err != ErrGoalOutOfRange {
			t.Errorf("Goal %d: expected ErrGoalOutOfRange, got %v", goal, err)
		}
	}

	p, err := database.GetProfileByUserID("user-1")
	if err != nil {
		t.Fatalf("Failed to read profile: %v", err)
	}
	if p.DailyGoal != models.DefaultDailyGoal {
		t.Errorf("Rejected goals must not be written, got %d", p.DailyGoal)
	}

	updated, err := svc.UpdateDailyGoal(ctx, "user-1", 12)
	if err != nil {
		t.Fatalf("Failed to update goal: %v", err)
	}
	if updated.DailyGoal != 12 {
		t.Errorf("Expected goal 12, got %d", updated.DailyGoal)
	}
}

func TestUpdateDailyGoal_MissingProfile(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	svc := NewService(database, nil)
	if _, err := svc.UpdateDailyGoal(context.Background(), "nobody", 10); err != ErrNoProfile {
		t.Errorf("Expected ErrNoProfile, got %v", err)
	}
}

func TestUpdateGitHubUsername(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	svc := NewService(database, nil)
	ctx := context.Background()

	// missing profile is a no-op
	p, err := svc.UpdateGitHubUsername(ctx, "nobody", "octocat")
	if err != nil || p != nil {
		t.Errorf("Expected (nil, nil) for missing profile, got (%v, %v)", p, err)
	}

	if _, err := svc.GetOrCreateProfile(ctx, "user-1", nil); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	p, err = svc.UpdateGitHubUsername(ctx, "user-1", "octocat")
	if err != nil {
		t.Fatalf("Failed to link username: %v", err)
	}
	if p.Username == nil || *p.Username != "octocat" {
		t.Errorf("Expected username octocat, got %v", p.Username)
	}
}

func TestWelcome_FiredOnceOnCreate(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	welcome := &fakeWelcome{}
	svc := NewService(database, welcome)
	ctx := context.Background()

	if _, err := svc.GetOrCreateProfile(ctx, "user-1", &models.Profile{Username: strPtr("octocat")}); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}
	if welcome.count() != 1 {
		t.Fatalf("Expected 1 welcome on create, got %d", welcome.count())
	}

	// later registrations must not fire again
	if _, err := svc.UpdatePushToken(ctx, "user-1", "ExponentPushToken[a]"); err != nil {
		t.Fatalf("Failed to update push token: %v", err)
	}
	if _, err := svc.UpdatePushToken(ctx, "user-1", "ExponentPushToken[b]"); err != nil {
		t.Fatalf("Failed to update push token: %v", err)
	}

	if welcome.count() != 1 {
		t.Errorf("Expected welcome fired exactly once, got %d", welcome.count())
	}
}

func TestWelcome_FiredOnFirstTokenForLegacyProfile(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	welcome := &fakeWelcome{}
	svc := NewService(database, welcome)
	ctx := context.Background()

	// a profile that predates welcome tracking: no token, flag unset
	legacy := &models.Profile{
		ID:                "doc-legacy",
		UserID:            "user-1",
		TodaysCommitsDate: time.Now().UTC().Format("2006-01-02"),
		DailyGoal:         models.DefaultDailyGoal,
	}
	if err := database.CreateProfile(ctx, legacy); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	p, err := svc.UpdatePushToken(ctx, "user-1", "ExponentPushToken[a]")
	if err != nil {
		t.Fatalf("Failed to update push token: %v", err)
	}
	if welcome.count() != 1 {
		t.Fatalf("Expected welcome on first registration, got %d", welcome.count())
	}
	if !p.WelcomeSent {
		t.Error("Expected welcome flag set after first registration")
	}

	if _, err := svc.UpdatePushToken(ctx, "user-1", "ExponentPushToken[b]"); err != nil {
		t.Fatalf("Failed to update push token: %v", err)
	}
	if welcome.count() != 1 {
		t.Errorf("Expected no second welcome, got %d", welcome.count())
	}
}

func TestDailyCounterRollsOverOnRead(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	svc := NewService(database, nil)
	ctx := context.Background()

	stale := &models.Profile{
		ID:                "doc-stale",
		UserID:            "user-1",
		TodaysCommits:     4,
		TodaysCommitsDate: "2020-01-01",
		DailyGoal:         models.DefaultDailyGoal,
	}
	if err := database.CreateProfile(ctx, stale); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	p, err := svc.GetOrCreateProfile(ctx, "user-1", nil)
	if err != nil {
		t.Fatalf("Failed to fetch profile: %v", err)
	}
	if p.TodaysCommits != 0 {
		t.Errorf("Expected stale daily counter reset on read, got %d", p.TodaysCommits)
	}
	if p.TodaysCommitsDate != time.Now().UTC().Format("2006-01-02") {
		t.Errorf("Expected counter date advanced to today, got %q", p.TodaysCommitsDate)
	}
}
