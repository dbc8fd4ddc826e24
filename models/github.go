package models

// GitHubUser is the subset of the GitHub user object we care about.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// Repo is a repository as returned by the GitHub REST API.
type Repo struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	HTMLURL         string  `json:"html_url"`
	Description     *string `json:"description"`
	StargazersCount int     `json:"stargazers_count"`
	Language        *string `json:"language"`
	UpdatedAt       string  `json:"updated_at"`
	Private         bool    `json:"private"`
	Fork            bool    `json:"fork"`
	Owner           struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// RepoLanguage is one entry of a per-repo language byte breakdown,
// sorted descending by bytes.
type RepoLanguage struct {
	Name  string `json:"name"`
	Bytes int64  `json:"bytes"`
}

// EventCommit is a commit entry inside a push event payload.
type EventCommit struct {
	SHA    string `json:"sha"`
	URL    string `json:"url"`
	Author struct {
		Name string `json:"name"`
	} `json:"author"`
	Message string `json:"message"`
}

// Event is an entry of the public activity feed. Only push events carry
// commits; the feed is newest-first and capped by GitHub.
type Event struct {
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Payload   struct {
		Commits []EventCommit `json:"commits"`
	} `json:"payload"`
}

// ContributionDay is a single day bucket of the contribution calendar.
type ContributionDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// ContributionWeek groups calendar days into the week buckets GraphQL returns.
type ContributionWeek struct {
	Days []ContributionDay `json:"days"`
}

// ContributionCalendar is the result of the contributions GraphQL query.
type ContributionCalendar struct {
	TotalContributions int                `json:"totalContributions"`
	Weeks              []ContributionWeek `json:"weeks"`
}

// StreakRange is a consecutive-day contribution run.
type StreakRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

// StreakStats is the third-party streak aggregator response. Streaks are
// computed externally; we only display them.
type StreakStats struct {
	TotalContributions int         `json:"totalContributions"`
	FirstContribution  string      `json:"firstContribution"`
	LongestStreak      StreakRange `json:"longestStreak"`
	CurrentStreak      StreakRange `json:"currentStreak"`
}
