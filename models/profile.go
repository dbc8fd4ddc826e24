package models

import "time"

// DefaultDailyGoal is applied when a profile document has no goal set.
const DefaultDailyGoal = 5

// Profile is the per-user gamification document. One document exists per
// identity-provider user; lookups go through UserID, not the document ID.
type Profile struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	Username          *string    `json:"username"` // GitHub login, nil until resolved
	Name              *string    `json:"name"`
	AvatarURL         *string    `json:"avatarUrl"`
	Points            int        `json:"points"` // aka sparks, never negative
	TodaysCommits     int        `json:"todaysCommits"`
	TodaysCommitsDate string     `json:"-"` // UTC day the counter belongs to, YYYY-MM-DD
	DailyGoal         int        `json:"dailyGoal"` // 1..50
	PushToken         *string    `json:"pushToken"`
	LastCommitAt      *string    `json:"lastCommitAt"` // ISO-8601
	LastCommitSHA     *string    `json:"lastCommitSha"`
	WelcomeSent       bool       `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// DisplayName returns the best available name for user-facing messages.
func (p *Profile) DisplayName() string {
	if p.Name != nil && *p.Name != "" {
		return *p.Name
	}
	if p.Username != nil && *p.Username != "" {
		return *p.Username
	}
	return "there"
}

// CommitInfo describes a single awarded commit.
type CommitInfo struct {
	SHA     string `json:"sha"`
	Author  string `json:"author"`
	Message string `json:"message"`
	Date    string `json:"date"`
	URL     string `json:"url"`
}
