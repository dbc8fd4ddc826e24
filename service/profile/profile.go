package profile

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/commitly/commitly/db"
	"github.com/commitly/commitly/models"
)

var (
	// ErrGoalOutOfRange rejects goal updates before any store call.
	ErrGoalOutOfRange = errors.New("daily goal must be between 1 and 50")
	// ErrNoProfile distinguishes "nothing to update" from a store fault.
	ErrNoProfile = errors.New("no profile exists for user")
)

// WelcomeDispatcher delivers the one-time onboarding notification. Dispatch
// must never block or fail the calling operation; implementations queue the
// work and log their own errors.
type WelcomeDispatcher interface {
	DispatchWelcome(userID, username, pushToken string)
}

// AwardContext carries optional metadata for a point award.
type AwardContext struct {
	LastCommitAt string // ISO-8601 timestamp of the awarding event
	CommitSHA    string // commit behind the award; bumps the daily counter
}

// Service owns profile synchronization: fetch-or-create, point awards, goal
// edits, username linking and push-token registration.
type Service struct {
	db      *db.DB
	welcome WelcomeDispatcher
	logger  *log.Logger

	// one lock per userId serializes get-or-create and award flows; the
	// store's unique index backstops other instances
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewService(database *db.DB, welcome WelcomeDispatcher) *Service {
	return &Service{
		db:      database,
		welcome: welcome,
		logger:  log.New(os.Stdout, "profile: ", log.LstdFlags|log.Lmsgprefix),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[userID] = mu
	}
	return mu
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// normalize applies read-side defaults and rolls the daily counter over when
// the stored day is stale. The rollover is persisted so the change feed and
// other readers see the reset.
func (s *Service) normalize(ctx context.Context, p *models.Profile) *models.Profile {
	if p == nil {
		return nil
	}
	if p.DailyGoal == 0 {
		p.DailyGoal = models.DefaultDailyGoal
	}
	if p.TodaysCommits > 0 && p.TodaysCommitsDate != today() {
		reset, err := s.db.ResetTodaysCommits(ctx, p.ID, today())
		if err != nil {
			s.logger.Printf("Error resetting daily counter for user %s: %v", p.UserID, err)
			p.TodaysCommits = 0
			return p
		}
		return reset
	}
	return p
}

// GetOrCreateProfile returns the user's profile document, creating it with
// zeroed counters on first access. Creation grants owner-scoped permissions
// and fires the welcome notification fire-and-forget.
func (s *Service) GetOrCreateProfile(ctx context.Context, userID string, seed *models.Profile) (*models.Profile, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	return s.getOrCreateLocked(ctx, userID, seed)
}

func (s *Service) getOrCreateLocked(ctx context.Context, userID string, seed *models.Profile) (*models.Profile, error) {
	existing, err := s.db.GetProfileByUserID(userID)
	if err != nil {
		// a read fault on this path means "does not exist yet"; creation
		// below surfaces real store trouble
		s.logger.Printf("Error querying profile for user %s: %v", userID, err)
	}
	if existing != nil {
		return s.normalize(ctx, existing), nil
	}

	p := &models.Profile{
		ID:                xid.New().String(),
		UserID:            userID,
		Points:            0,
		TodaysCommits:     0,
		TodaysCommitsDate: today(),
		DailyGoal:         models.DefaultDailyGoal,
		WelcomeSent:       true,
	}
	if seed != nil {
		if seed.Username != nil {
			p.Username = seed.Username
		}
		if seed.Name != nil {
			p.Name = seed.Name
		}
		if seed.AvatarURL != nil {
			p.AvatarURL = seed.AvatarURL
		}
		if seed.PushToken != nil {
			p.PushToken = seed.PushToken
		}
		if seed.Points > 0 {
			p.Points = seed.Points
		}
	}

	if err := s.db.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, db.ErrProfileExists) {
			// lost the creation race to another instance; the winner's
			// document is the document
			winner, rerr := s.db.GetProfileByUserID(userID)
			if rerr == nil && winner != nil {
				return s.normalize(ctx, winner), nil
			}
		}
		return nil, err
	}

	s.dispatchWelcome(p)
	return p, nil
}

func (s *Service) dispatchWelcome(p *models.Profile) {
	if s.welcome == nil {
		return
	}
	token := ""
	if p.PushToken != nil {
		token = *p.PushToken
	}
	s.welcome.DispatchWelcome(p.UserID, p.DisplayName(), token)
}

// AddPoints applies a signed delta to the user's balance, floored at zero.
// An absent profile short-circuits to a plain create seeded with
// max(0, delta); the award context is not applied on that path.
func (s *Service) AddPoints(ctx context.Context, userID string, delta int, award *AwardContext) (*models.Profile, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.db.GetProfileByUserID(userID)
	if err != nil {
		s.logger.Printf("Error querying profile for user %s: %v", userID, err)
	}
	if existing == nil {
		seedPoints := delta
		if seedPoints < 0 {
			seedPoints = 0
		}
		return s.getOrCreateLocked(ctx, userID, &models.Profile{Points: seedPoints})
	}

	var lastCommitAt, commitSHA *string
	commitDelta := 0
	if award != nil {
		if award.LastCommitAt != "" {
			lastCommitAt = &award.LastCommitAt
		}
		if award.CommitSHA != "" {
			commitSHA = &award.CommitSHA
			commitDelta = 1
		}
	}

	updated, err := s.db.AddPointsAtomic(ctx, userID, delta, lastCommitAt, commitSHA, commitDelta, today())
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetPoints returns the current balance, 0 when no profile exists or the
// store read fails.
func (s *Service) GetPoints(ctx context.Context, userID string) int {
	p, err := s.db.GetProfileByUserID(userID)
	if err != nil {
		s.logger.Printf("Error reading points for user %s: %v", userID, err)
		return 0
	}
	if p == nil {
		return 0
	}
	return p.Points
}

// UpdateDailyGoal validates and writes a new goal. Validation failures are
// returned to the caller; store write failures are logged and swallowed, so
// callers must check for a nil profile.
func (s *Service) UpdateDailyGoal(ctx context.Context, userID string, goal int) (*models.Profile, error) {
	if goal < 1 || goal > 50 {
		return nil, ErrGoalOutOfRange
	}

	existing, err := s.db.GetProfileByUserID(userID)
	if err != nil || existing == nil {
		if err != nil {
			s.logger.Printf("Error querying profile for user %s: %v", userID, err)
		}
		return nil, ErrNoProfile
	}

	updated, err := s.db.UpdateDailyGoal(ctx, existing.ID, goal)
	if err != nil {
		s.logger.Printf("Error updating daily goal for user %s: %v", userID, err)
		return nil, nil
	}
	return updated, nil
}

// UpdateGitHubUsername writes the resolved GitHub login. A missing profile
// is a no-op, not an error.
func (s *Service) UpdateGitHubUsername(ctx context.Context, userID, login string) (*models.Profile, error) {
	existing, err := s.db.GetProfileByUserID(userID)
	if err != nil || existing == nil {
		if err != nil {
			s.logger.Printf("Error querying profile for user %s: %v", userID, err)
		}
		return nil, nil
	}

	updated, err := s.db.UpdateUsername(ctx, existing.ID, login)
	if err != nil {
		s.logger.Printf("Error linking github username for user %s: %v", userID, err)
		return nil, nil
	}
	return updated, nil
}

// UpdatePushToken stores the device push token. The first registration for
// a user that has not yet been welcomed fires the welcome notification;
// combined with creation-time dispatch it fires exactly once per user.
func (s *Service) UpdatePushToken(ctx context.Context, userID, token string) (*models.Profile, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.db.GetProfileByUserID(userID)
	if err != nil || existing == nil {
		if err != nil {
			s.logger.Printf("Error querying profile for user %s: %v", userID, err)
		}
		return nil, nil
	}

	firstRegistration := (existing.PushToken == nil || *existing.PushToken == "") && !existing.WelcomeSent

	updated, err := s.db.UpdatePushToken(ctx, existing.ID, token, existing.WelcomeSent || firstRegistration)
	if err != nil {
		s.logger.Printf("Error updating push token for user %s: %v", userID, err)
		return nil, nil
	}

	if firstRegistration {
		s.dispatchWelcome(updated)
	}
	return updated, nil
}

// AdvanceCommitMarker records the newest processed commit so the next
// reconciliation scan can stop before already-awarded activity.
func (s *Service) AdvanceCommitMarker(ctx context.Context, userID, sha string) {
	existing, err := s.db.GetProfileByUserID(userID)
	if err != nil || existing == nil {
		return
	}
	if _, err := s.db.UpdateCommitMarker(ctx, existing.ID, sha); err != nil {
		s.logger.Printf("Error advancing commit marker for user %s: %v", userID, err)
	}
}
