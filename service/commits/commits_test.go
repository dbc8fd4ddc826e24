package commits

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/commitly/commitly/db"
	"github.com/commitly/commitly/models"
	"github.com/commitly/commitly/service/github"
	"github.com/commitly/commitly/service/profile"
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

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) SendAchievementNotification(ctx context.Context, userID, achievement string, data map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, achievement)
}

func (f *fakeNotifier) achievements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

const eventsJSON = `[
	{
		"type": "PushEvent",
		"created_at": "2026-08-30T12:00:00Z",
		"payload": {
			"commits": [
				{"sha": "c3", "url": "https://api.github.com/c3", "author": {"name": "Octo"}, "message": "fix: third"},
				{"sha": "c2", "url": "https://api.github.com/c2", "author": {"name": "Octo"}, "message": "fix: second"},
				{"sha": "c1", "url": "https://api.github.com/c1", "author": {"name": "Octo"}, "message": "fix: first"}
			]
		}
	},
	{
		"type": "WatchEvent",
		"created_at": "2026-08-30T11:00:00Z",
		"payload": {}
	},
	{
		"type": "PushEvent",
		"created_at": "2026-08-30T10:00:00Z",
		"payload": {
			"commits": [
				{"sha": "b1", "url": "https://api.github.com/b1", "author": {"name": "Octo"}, "message": "docs: older"}
			]
		}
	}
]`

func setupServices(t *testing.T, notifier AchievementNotifier) (*db.DB, *profile.Service, *Service) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/octocat/events" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(eventsJSON))
	}))
	t.Cleanup(srv.Close)

	database := setupTestDB(t)
	t.Cleanup(func() { database.Close() })

	gh := github.NewService(srv.URL, srv.URL, srv.URL, "")
	profiles := profile.NewService(database, nil)
	svc := NewService(database, gh, profiles, notifier, 25)

	return database, profiles, svc
}

func TestCheckAndAwardCommits_NoMarker(t *testing.T) {
	database, profiles, svc := setupServices(t, nil)
	ctx := context.Background()

	if _, err := profiles.GetOrCreateProfile(ctx, "user-1", nil); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	awarded := svc.CheckAndAwardCommits(ctx, "user-1", "octocat", "")
	if len(awarded) != 4 {
		t.Fatalf("Expected 4 new commits, got %d", len(awarded))
	}

	p, err := database.GetProfileByUserID("user-1")
	if err != nil {
		t.Fatalf("Failed to read profile: %v", err)
	}
	if p.Points != 100 {
		t.Errorf("Expected 100 points for 4 commits, got %d", p.Points)
	}
	if p.TodaysCommits != 4 {
		t.Errorf("Expected 4 commits counted today, got %d", p.TodaysCommits)
	}
	if p.LastCommitSHA == nil || *p.LastCommitSHA != "c3" {
		t.Errorf("Expected marker advanced to newest commit c3, got %v", p.LastCommitSHA)
	}
}

func TestCheckAndAwardCommits_MarkerStopsPerEvent(t *testing.T) {
	database, profiles, svc := setupServices(t, nil)
	ctx := context.Background()

	if _, err := profiles.GetOrCreateProfile(ctx, "user-1", nil); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	// c2 is the known commit: c3 is newer inside the same event, and the
	// older push event is still walked in full
	awarded := svc.CheckAndAwardCommits(ctx, "user-1", "octocat", "c2")
	if len(awarded) != 2 {
		t.Fatalf("Expected 2 new commits, got %d: %+v", len(awarded), awarded)
	}
	if awarded[0].SHA != "c3" || awarded[1].SHA != "b1" {
		t.Errorf("Expected commits c3 and b1, got %+v", awarded)
	}

	p, err := database.GetProfileByUserID("user-1")
	if err != nil {
		t.Fatalf("Failed to read profile: %v", err)
	}
	if p.Points != 50 {
		t.Errorf("Expected 50 points, got %d", p.Points)
	}
	if p.LastCommitSHA == nil || *p.LastCommitSHA != "c3" {
		t.Errorf("Expected marker advanced to c3, got %v", p.LastCommitSHA)
	}
}

func TestCheckAndAwardCommits_CleansMessages(t *testing.T) {
	_, profiles, svc := setupServices(t, nil)
	ctx := context.Background()

	if _, err := profiles.GetOrCreateProfile(ctx, "user-1", nil); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	awarded := svc.CheckAndAwardCommits(ctx, "user-1", "octocat", "c2")
	if len(awarded) == 0 {
		t.Fatal("Expected awarded commits")
	}
	if awarded[0].Message != "third" {
		t.Errorf("Expected conventional prefix stripped, got %q", awarded[0].Message)
	}
}

func TestCheckAndAwardCommits_FetchFailure(t *testing.T) {
	_, profiles, svc := setupServices(t, nil)
	ctx := context.Background()

	if _, err := profiles.GetOrCreateProfile(ctx, "user-1", nil); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	// unknown login hits the test server's 404
	awarded := svc.CheckAndAwardCommits(ctx, "user-1", "ghost", "")
	if len(awarded) != 0 {
		t.Errorf("Expected empty award list on fetch failure, got %d", len(awarded))
	}
}

func TestAwardPointsForContributionIncrease(t *testing.T) {
	database, profiles, svc := setupServices(t, nil)
	ctx := context.Background()

	if _, err := profiles.GetOrCreateProfile(ctx, "user-1", nil); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	if svc.AwardPointsForContributionIncrease(ctx, "user-1", 10, 10) {
		t.Error("Expected no award without an increase")
	}
	if svc.AwardPointsForContributionIncrease(ctx, "user-1", 12, 10) {
		t.Error("Expected no award on a decrease")
	}

	if !svc.AwardPointsForContributionIncrease(ctx, "user-1", 10, 13) {
		t.Error("Expected award on increase")
	}

	p, err := database.GetProfileByUserID("user-1")
	if err != nil {
		t.Fatalf("Failed to read profile: %v", err)
	}
	// the award is flat regardless of how large the increase was
	if p.Points != 25 {
		t.Errorf("Expected flat 25 point award, got %d", p.Points)
	}
}

func TestScanUser_FiresGoalReached(t *testing.T) {
	notifier := &fakeNotifier{}
	database, profiles, svc := setupServices(t, notifier)
	ctx := context.Background()

	username := "octocat"
	if _, err := profiles.GetOrCreateProfile(ctx, "user-1", &models.Profile{Username: &username}); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}
	if _, err := profiles.UpdateDailyGoal(ctx, "user-1", 2); err != nil {
		t.Fatalf("Failed to set goal: %v", err)
	}

	p, err := database.GetProfileByUserID("user-1")
	if err != nil {
		t.Fatalf("Failed to read profile: %v", err)
	}

	awarded := svc.ScanUser(ctx, p)
	if len(awarded) != 4 {
		t.Fatalf("Expected 4 awarded commits, got %d", len(awarded))
	}

	got := notifier.achievements()
	if len(got) != 1 || got[0] != "goal-reached" {
		t.Errorf("Expected one goal-reached achievement, got %v", got)
	}

	// once the goal has been crossed, later scans must not re-fire it
	p, _ = database.GetProfileByUserID("user-1")
	svc.ScanUser(ctx, p)
	if len(notifier.achievements()) != 1 {
		t.Errorf("Expected no duplicate achievement, got %v", notifier.achievements())
	}

	// the marker stays pinned to the newest commit in the feed
	p, _ = database.GetProfileByUserID("user-1")
	if p.LastCommitSHA == nil || *p.LastCommitSHA != "c3" {
		t.Errorf("Expected marker pinned to c3, got %v", p.LastCommitSHA)
	}
}

func TestScanUser_SkipsUnlinked(t *testing.T) {
	_, profiles, svc := setupServices(t, nil)
	ctx := context.Background()

	p, err := profiles.GetOrCreateProfile(ctx, "user-1", nil)
	if err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	if awarded := svc.ScanUser(ctx, p); awarded != nil {
		t.Errorf("Expected nil for unlinked profile, got %v", awarded)
	}
}
