package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/commitly/commitly/db"
	"github.com/commitly/commitly/feed"
	"github.com/commitly/commitly/models"
	"github.com/commitly/commitly/service/github"
	"github.com/commitly/commitly/service/notifications"
	"github.com/commitly/commitly/service/profile"
	"github.com/commitly/commitly/session"
)

// jsonResponse returns a JSON response
func jsonResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func home(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")

		html := `
		<html>
		<head>
			<title>Commitly</title>
			<style>
				body {
					font-family: Arial, sans-serif;
					max-width: 800px;
					margin: 0 auto;
					padding: 20px;
					line-height: 1.6;
				}
				h1 { color: #2DA44E; }
				.nav a {
					margin-right: 15px;
					text-decoration: none;
					color: #2DA44E;
					font-weight: bold;
				}
			</style>
		</head>
		<body>
			<h1>Commitly</h1>
			<div class="nav">
				<a href="/">Home</a>`

		if session.IsAuthenticated(r.Context()) {
			html += `
				<a href="/api/v1/profile">Profile</a>
				<a href="/logout">Logout</a>`
		} else {
			html += `
				<a href="/login/github">Login with GitHub</a>`
		}

		html += `
			</div>
			<p>Commitly turns your GitHub commits into points, streaks and daily goals.</p>
		</body>
		</html>`

		w.Write([]byte(html))
	}
}

func handleLogout(app *application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app.authStore.SignOut(r.Context())
		app.sessionManager.HandleLogout(w, r)
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := session.GetUserID(r.Context())
	if !ok {
		jsonResponse(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	return userID, ok
}

func apiProfile(ps *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		p, err := ps.GetOrCreateProfile(r.Context(), userID, nil)
		if err != nil {
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		jsonResponse(w, http.StatusOK, p)
	}
}

func apiGetPoints(ps *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		jsonResponse(w, http.StatusOK, map[string]int{"points": ps.GetPoints(r.Context(), userID)})
	}
}

func apiAddPoints(ps *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		if r.Method != http.MethodPost {
			jsonResponse(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}

		var body struct {
			Amount       int    `json:"amount"`
			LastCommitAt string `json:"lastCommitAt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		var award *profile.AwardContext
		if body.LastCommitAt != "" {
			award = &profile.AwardContext{LastCommitAt: body.LastCommitAt}
		}

		p, err := ps.AddPoints(r.Context(), userID, body.Amount, award)
		if err != nil {
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		jsonResponse(w, http.StatusOK, p)
	}
}

func apiUpdateGoal(ps *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		if r.Method != http.MethodPost {
			jsonResponse(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}

		var body struct {
			Goal int `json:"goal"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		p, err := ps.UpdateDailyGoal(r.Context(), userID, body.Goal)
		switch {
		case err == profile.ErrGoalOutOfRange:
			jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case err == profile.ErrNoProfile:
			jsonResponse(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case p == nil:
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update goal"})
		default:
			jsonResponse(w, http.StatusOK, p)
		}
	}
}

func apiLinkUsername(ps *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		if r.Method != http.MethodPost {
			jsonResponse(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}

		var body struct {
			Username string `json:"username"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" {
			jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		p, err := ps.UpdateGitHubUsername(r.Context(), userID, body.Username)
		if err != nil {
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if p == nil {
			jsonResponse(w, http.StatusNotFound, map[string]string{"error": "No profile exists"})
			return
		}

		jsonResponse(w, http.StatusOK, p)
	}
}

func apiPushToken(ps *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		if r.Method != http.MethodPost {
			jsonResponse(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}

		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
			jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		p, err := ps.UpdatePushToken(r.Context(), userID, body.Token)
		if err != nil {
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if p == nil {
			jsonResponse(w, http.StatusNotFound, map[string]string{"error": "No profile exists"})
			return
		}

		jsonResponse(w, http.StatusOK, p)
	}
}

func apiCheckCommits(app *application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		if r.Method != http.MethodPost {
			jsonResponse(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}

		p, err := app.profileService.GetOrCreateProfile(r.Context(), userID, nil)
		if err != nil {
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if p.Username == nil || *p.Username == "" {
			jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "No GitHub username linked"})
			return
		}

		awarded := app.commitService.ScanUser(r.Context(), p)
		jsonResponse(w, http.StatusOK, map[string]any{"newCommits": awarded, "count": len(awarded)})
	}
}

// apiProfileEvents streams profile document changes for the current user as
// server-sent events until the client disconnects.
func apiProfileEvents(bus feed.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher.Flush()

		updates := make(chan models.Profile, 8)
		unsubscribe := feed.SubscribeToProfileUpdates(bus, userID, func(p models.Profile) {
			select {
			case updates <- p:
			default:
			}
		})
		defer unsubscribe()

		for {
			select {
			case <-r.Context().Done():
				return
			case p := <-updates:
				data, err := json.Marshal(p)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()
			}
		}
	}
}

func linkedLogin(app *application, w http.ResponseWriter, r *http.Request, userID string) (string, bool) {
	p, err := app.profileService.GetOrCreateProfile(r.Context(), userID, nil)
	if err != nil {
		jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return "", false
	}
	if p.Username == nil || *p.Username == "" {
		jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "No GitHub username linked"})
		return "", false
	}
	return *p.Username, true
}

func apiRepos(app *application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		login, ok := linkedLogin(app, w, r, userID)
		if !ok {
			return
		}

		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			fmt.Sscanf(raw, "%d", &page)
		}

		repos, err := app.githubService.ListRepos(r.Context(), login, page)
		if err != nil {
			jsonResponse(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}

		jsonResponse(w, http.StatusOK, repos)
	}
}

func apiLanguages(gh *github.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireUser(w, r); !ok {
			return
		}

		owner := r.URL.Query().Get("owner")
		repo := r.URL.Query().Get("repo")
		if owner == "" || repo == "" {
			jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "owner and repo are required"})
			return
		}

		langs, err := gh.GetLanguages(r.Context(), owner, repo)
		if err != nil {
			jsonResponse(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}

		jsonResponse(w, http.StatusOK, langs)
	}
}

func apiContributions(app *application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		login, ok := linkedLogin(app, w, r, userID)
		if !ok {
			return
		}

		to := time.Now().UTC()
		from := to.AddDate(-1, 0, 0)
		if raw := r.URL.Query().Get("from"); raw != "" {
			if parsed, err := time.Parse("2006-01-02", raw); err == nil {
				from = parsed
			}
		}
		if raw := r.URL.Query().Get("to"); raw != "" {
			if parsed, err := time.Parse("2006-01-02", raw); err == nil {
				to = parsed
			}
		}

		calendar, err := app.githubService.GetContributionCalendar(r.Context(), login, from, to)
		if err != nil {
			jsonResponse(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}

		jsonResponse(w, http.StatusOK, calendar)
	}
}

func apiStreak(app *application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		login, ok := linkedLogin(app, w, r, userID)
		if !ok {
			return
		}

		stats, err := app.githubService.GetStreakStats(r.Context(), login)
		if err != nil {
			jsonResponse(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}

		jsonResponse(w, http.StatusOK, stats)
	}
}

func apiNotifications(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			fmt.Sscanf(raw, "%d", &limit)
		}

		items, err := database.GetNotifications(r.Context(), userID, limit)
		if err != nil {
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if items == nil {
			items = []*models.Notification{}
		}

		jsonResponse(w, http.StatusOK, items)
	}
}

func apiMarkRead(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireUser(w, r); !ok {
			return
		}
		if r.Method != http.MethodPost {
			jsonResponse(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}

		var body struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
			jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		if err := database.MarkNotificationRead(r.Context(), body.ID); err != nil {
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func apiMarkAllRead(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		if r.Method != http.MethodPost {
			jsonResponse(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}

		updated, err := database.MarkAllNotificationsRead(r.Context(), userID)
		if err != nil {
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		jsonResponse(w, http.StatusOK, map[string]int64{"updated": updated})
	}
}

func apiUnreadCount(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		count, err := database.UnreadNotificationCount(r.Context(), userID)
		if err != nil {
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		jsonResponse(w, http.StatusOK, map[string]int{"count": count})
	}
}

// apiFireAchievement lets a device trigger an achievement it detected
// locally, e.g. a streak or points milestone crossing.
func apiFireAchievement(ns *notifications.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		if r.Method != http.MethodPost {
			jsonResponse(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}

		var body struct {
			Achievement string            `json:"achievement"`
			Data        map[string]string `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Achievement == "" {
			jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		ns.SendAchievementNotification(r.Context(), userID, body.Achievement, body.Data)
		jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func apiScheduleReminder(ns *notifications.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		if r.Method != http.MethodPost {
			jsonResponse(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}

		body := struct {
			Hour   int `json:"hour"`
			Minute int `json:"minute"`
		}{
			Hour:   viper.GetInt("reminder.hour"),
			Minute: viper.GetInt("reminder.minute"),
		}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&body)
		}
		if body.Hour < 0 || body.Hour > 23 || body.Minute < 0 || body.Minute > 59 {
			jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid reminder time"})
			return
		}

		id := ns.ScheduleDailyGoalReminder(userID, body.Hour, body.Minute)
		jsonResponse(w, http.StatusOK, map[string]string{"id": id})
	}
}

func apiCancelReminder(ns *notifications.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireUser(w, r); !ok {
			return
		}
		if r.Method != http.MethodPost {
			jsonResponse(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}

		var body struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
			jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		ns.CancelScheduledNotification(body.ID)
		jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
