package commits

import (
	"context"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/commitly/commitly/db"
	"github.com/commitly/commitly/models"
	"github.com/commitly/commitly/service/github"
	"github.com/commitly/commitly/service/profile"
)

// AchievementNotifier delivers achievement pushes when a scan detects a
// milestone. Implementations must not block the scan loop.
type AchievementNotifier interface {
	SendAchievementNotification(ctx context.Context, userID, achievement string, data map[string]string)
}

// Service reconciles GitHub activity with point balances. A background
// tracker scans every linked profile on an interval; the HTTP surface can
// trigger the same scan on demand.
type Service struct {
	db              *db.DB
	github          *github.Service
	profiles        *profile.Service
	notifier        AchievementNotifier
	cleaner         *MessageCleaner
	pointsPerCommit int
	logger          *log.Logger

	mu       sync.Mutex
	scanning map[string]bool
}

func NewService(database *db.DB, gh *github.Service, profiles *profile.Service, notifier AchievementNotifier, pointsPerCommit int) *Service {
	return &Service{
		db:              database,
		github:          gh,
		profiles:        profiles,
		notifier:        notifier,
		cleaner:         NewMessageCleaner(),
		pointsPerCommit: pointsPerCommit,
		logger:          log.New(os.Stdout, "commits: ", log.LstdFlags|log.Lmsgprefix),
		scanning:        make(map[string]bool),
	}
}

// CheckAndAwardCommits fetches the public activity feed for a login, collects
// commits newer than lastKnownSHA and awards points for each. A feed fetch
// failure yields an empty list, not an error; the next scan retries.
//
// The marker cut-off applies per push event: hitting the known commit stops
// that event's commit walk but later events are still scanned in full.
func (s *Service) CheckAndAwardCommits(ctx context.Context, userID, login, lastKnownSHA string) []models.CommitInfo {
	events, err := s.github.GetEvents(ctx, login)
	if err != nil {
		s.logger.Printf("Error fetching events for %s: %v", login, err)
		return []models.CommitInfo{}
	}

	newCommits := []models.CommitInfo{}
	newestSHA := ""
	for _, event := range events {
		if event.Type != "PushEvent" {
			continue
		}
		if newestSHA == "" && len(event.Payload.Commits) > 0 {
			newestSHA = event.Payload.Commits[0].SHA
		}
		for _, c := range event.Payload.Commits {
			if lastKnownSHA != "" && c.SHA == lastKnownSHA {
				break
			}
			newCommits = append(newCommits, models.CommitInfo{
				SHA:     c.SHA,
				Author:  c.Author.Name,
				Message: s.cleaner.Clean(c.Message),
				Date:    event.CreatedAt,
				URL:     c.URL,
			})
		}
	}

	for _, commit := range newCommits {
		_, err := s.profiles.AddPoints(ctx, userID, s.pointsPerCommit, &profile.AwardContext{
			LastCommitAt: commit.Date,
			CommitSHA:    commit.SHA,
		})
		if err != nil {
			s.logger.Printf("Error awarding points to user %s for commit %s: %v", userID, commit.SHA, err)
		}
	}

	if len(newCommits) > 0 {
		// pin the marker to the newest commit in the feed, never to an
		// older award, so it cannot move backwards between scans
		if newestSHA != "" && newestSHA != lastKnownSHA {
			s.profiles.AdvanceCommitMarker(ctx, userID, newestSHA)
		}
		s.logger.Printf("Awarded %d commits to user %s", len(newCommits), userID)
	}

	return newCommits
}

// AwardPointsForContributionIncrease grants a flat award when the calendar
// total grew since the last observation. The size of the increase only
// affects logging, not the award.
func (s *Service) AwardPointsForContributionIncrease(ctx context.Context, userID string, previousTotal, currentTotal int) bool {
	if currentTotal <= previousTotal {
		return false
	}

	increase := currentTotal - previousTotal
	s.logger.Printf("Contribution total for user %s grew by %d (%d -> %d)", userID, increase, previousTotal, currentTotal)

	if _, err := s.profiles.AddPoints(ctx, userID, s.pointsPerCommit, nil); err != nil {
		s.logger.Printf("Error awarding contribution points to user %s: %v", userID, err)
		return false
	}
	return true
}

// ScanUser runs one reconciliation pass for a single profile, awarding new
// commits and firing the goal-reached achievement when today's counter
// crosses the daily goal.
func (s *Service) ScanUser(ctx context.Context, p *models.Profile) []models.CommitInfo {
	if p.Username == nil || *p.Username == "" {
		return nil
	}

	s.mu.Lock()
	if s.scanning[p.UserID] {
		s.mu.Unlock()
		return nil
	}
	s.scanning[p.UserID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.scanning, p.UserID)
		s.mu.Unlock()
	}()

	before := p.TodaysCommits
	if p.TodaysCommitsDate != time.Now().UTC().Format("2006-01-02") {
		before = 0
	}

	marker := ""
	if p.LastCommitSHA != nil {
		marker = *p.LastCommitSHA
	}

	awarded := s.CheckAndAwardCommits(ctx, p.UserID, *p.Username, marker)
	if len(awarded) == 0 {
		return awarded
	}

	after, err := s.db.GetProfileByUserID(p.UserID)
	if err != nil || after == nil {
		return awarded
	}

	if s.notifier != nil && before < after.DailyGoal && after.TodaysCommits >= after.DailyGoal {
		s.notifier.SendAchievementNotification(ctx, p.UserID, "goal-reached", map[string]string{
			"goal": strconv.Itoa(after.DailyGoal),
		})
	}

	return awarded
}

// StartCommitTracker polls every linked profile on the given interval until
// the context is cancelled. Run it in its own goroutine.
func (s *Service) StartCommitTracker(ctx context.Context, interval time.Duration) {
	s.logger.Printf("Starting commit tracker, interval %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("Commit tracker stopped")
			return
		case <-ticker.C:
			profiles, err := s.db.GetLinkedProfiles()
			if err != nil {
				s.logger.Printf("Error listing linked profiles: %v", err)
				continue
			}
			for _, p := range profiles {
				s.ScanUser(ctx, p)
			}
		}
	}
}
