package main

import (
	"net/http"

	"github.com/justinas/alice"

	"github.com/commitly/commitly/session"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", session.WithPossibleAuth(home(app.authStore), app.sessionManager))

	// OAuth routes
	mux.HandleFunc("/login/github", app.oauthManager.HandleLogin("github"))
	mux.HandleFunc("/callback/github", session.WithPossibleAuth(app.oauthManager.HandleCallback("github"), app.sessionManager))
	mux.HandleFunc("/logout", handleLogout(app))

	// Profile
	mux.HandleFunc("/api/v1/profile", session.WithAPIAuth(apiProfile(app.profileService), app.sessionManager))
	mux.HandleFunc("/api/v1/profile/points", session.WithAPIAuth(apiGetPoints(app.profileService), app.sessionManager))
	mux.HandleFunc("/api/v1/profile/points/add", session.WithAPIAuth(apiAddPoints(app.profileService), app.sessionManager))
	mux.HandleFunc("/api/v1/profile/goal", session.WithAPIAuth(apiUpdateGoal(app.profileService), app.sessionManager))
	mux.HandleFunc("/api/v1/profile/username", session.WithAPIAuth(apiLinkUsername(app.profileService), app.sessionManager))
	mux.HandleFunc("/api/v1/profile/push-token", session.WithAPIAuth(apiPushToken(app.profileService), app.sessionManager))
	mux.HandleFunc("/api/v1/profile/commits/check", session.WithAPIAuth(apiCheckCommits(app), app.sessionManager))
	mux.HandleFunc("/api/v1/profile/events", session.WithAPIAuth(apiProfileEvents(app.bus), app.sessionManager))

	// GitHub data
	mux.HandleFunc("/api/v1/github/repos", session.WithAPIAuth(apiRepos(app), app.sessionManager))
	mux.HandleFunc("/api/v1/github/languages", session.WithAPIAuth(apiLanguages(app.githubService), app.sessionManager))
	mux.HandleFunc("/api/v1/github/contributions", session.WithAPIAuth(apiContributions(app), app.sessionManager))
	mux.HandleFunc("/api/v1/github/streak", session.WithAPIAuth(apiStreak(app), app.sessionManager))

	// Notification inbox and reminders
	mux.HandleFunc("/api/v1/notifications", session.WithAPIAuth(apiNotifications(app.database), app.sessionManager))
	mux.HandleFunc("/api/v1/notifications/read", session.WithAPIAuth(apiMarkRead(app.database), app.sessionManager))
	mux.HandleFunc("/api/v1/notifications/read-all", session.WithAPIAuth(apiMarkAllRead(app.database), app.sessionManager))
	mux.HandleFunc("/api/v1/notifications/unread-count", session.WithAPIAuth(apiUnreadCount(app.database), app.sessionManager))
	mux.HandleFunc("/api/v1/notifications/achievement", session.WithAPIAuth(apiFireAchievement(app.notifications), app.sessionManager))
	mux.HandleFunc("/api/v1/reminder", session.WithAPIAuth(apiScheduleReminder(app.notifications), app.sessionManager))
	mux.HandleFunc("/api/v1/reminder/cancel", session.WithAPIAuth(apiCancelReminder(app.notifications), app.sessionManager))

	standard := alice.New()
	return standard.Then(mux)
}
