package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/commitly/commitly/models"
)

// ErrProfileExists is returned when a create collides with the unique index
// on user_id. Callers re-read the winning document instead of failing.
var ErrProfileExists = errors.New("profile already exists for user")

const profileColumns = `id, user_id, username, name, avatar_url, points, todays_commits,
	todays_commits_date, daily_goal, push_token, last_commit_at, last_commit_sha,
	welcome_sent, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*models.Profile, error) {
	p := &models.Profile{}
	var points, todaysCommits, dailyGoal sql.NullInt64
	var todaysDate sql.NullString

	err := row.Scan(
		&p.ID, &p.UserID, &p.Username, &p.Name, &p.AvatarURL,
		&points, &todaysCommits, &todaysDate, &dailyGoal,
		&p.PushToken, &p.LastCommitAt, &p.LastCommitSHA,
		&p.WelcomeSent, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	// Normalize missing numerics the way the mobile client expects them.
	p.Points = int(points.Int64)
	p.TodaysCommits = int(todaysCommits.Int64)
	p.TodaysCommitsDate = todaysDate.String
	if dailyGoal.Valid {
		p.DailyGoal = int(dailyGoal.Int64)
	} else {
		p.DailyGoal = models.DefaultDailyGoal
	}

	return p, nil
}

// GetProfileByUserID looks a document up by its userId field, limited to one
// result. Returns (nil, nil) when no document exists.
func (db *DB) GetProfileByUserID(userID string) (*models.Profile, error) {
	row := db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE user_id = ? LIMIT 1`, userID)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProfileByID retrieves a document by its store-assigned identifier.
func (db *DB) GetProfileByID(id string) (*models.Profile, error) {
	row := db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProfile persists a new document together with its owner-scoped
// read/update/delete permission grant, in one transaction.
func (db *DB) CreateProfile(ctx context.Context, p *models.Profile) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
	INSERT INTO profiles (id, user_id, username, name, avatar_url, points, todays_commits,
		todays_commits_date, daily_goal, push_token, last_commit_at, last_commit_sha,
		welcome_sent, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Username, p.Name, p.AvatarURL, p.Points, p.TodaysCommits,
		p.TodaysCommitsDate, p.DailyGoal, p.PushToken, p.LastCommitAt, p.LastCommitSHA,
		p.WelcomeSent, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrProfileExists
		}
		return err
	}

	role := "user:" + p.UserID
	for _, action := range []string{"read", "update", "delete"} {
		if _, err := tx.Exec(`
		INSERT INTO profile_permissions (document_id, role, action) VALUES (?, ?, ?)`,
			p.ID, role, action); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	db.publishProfile(ctx, "create", p)
	return nil
}

// AddPointsAtomic applies a signed point delta floored at zero in a single
// statement, so concurrent awards cannot lose updates. commitDelta bumps the
// daily counter, which rolls over when the stored day differs from today.
func (db *DB) AddPointsAtomic(ctx context.Context, userID string, delta int, lastCommitAt, lastCommitSHA *string, commitDelta int, today string) (*models.Profile, error) {
	_, err := db.ExecContext(ctx, `
	UPDATE profiles SET
		points = MAX(0, COALESCE(points, 0) + ?),
		todays_commits = CASE
			WHEN todays_commits_date = ? THEN COALESCE(todays_commits, 0) + ?
			ELSE ?
		END,
		todays_commits_date = ?,
		last_commit_at = COALESCE(?, last_commit_at),
		last_commit_sha = COALESCE(?, last_commit_sha),
		updated_at = ?
	WHERE user_id = ?`,
		delta, today, commitDelta, commitDelta, today,
		lastCommitAt, lastCommitSHA, time.Now().UTC(), userID)
	if err != nil {
		return nil, err
	}

	p, err := db.GetProfileByUserID(userID)
	if err != nil {
		return nil, err
	}

	db.publishProfile(ctx, "update", p)
	return p, nil
}

// UpdateDailyGoal writes a validated goal to an existing document.
func (db *DB) UpdateDailyGoal(ctx context.Context, id string, goal int) (*models.Profile, error) {
	return db.updateProfile(ctx, id, `daily_goal = ?`, goal)
}

// UpdateUsername writes the resolved GitHub login. Relinking a different
// account overwrites the previous value.
func (db *DB) UpdateUsername(ctx context.Context, id, login string) (*models.Profile, error) {
	return db.updateProfile(ctx, id, `username = ?`, login)
}

// UpdateIdentity opportunistically refreshes display metadata.
func (db *DB) UpdateIdentity(ctx context.Context, id string, name, avatarURL *string) (*models.Profile, error) {
	return db.updateProfile(ctx, id, `name = COALESCE(?, name), avatar_url = COALESCE(?, avatar_url)`, name, avatarURL)
}

// UpdatePushToken stores the device token and the welcome-sent flag guarding
// the one-time onboarding notification.
func (db *DB) UpdatePushToken(ctx context.Context, id, token string, welcomeSent bool) (*models.Profile, error) {
	return db.updateProfile(ctx, id, `push_token = ?, welcome_sent = ?`, token, welcomeSent)
}

// UpdateCommitMarker advances the newest-processed-commit marker used to
// avoid re-awarding commits across reconciliation scans.
func (db *DB) UpdateCommitMarker(ctx context.Context, id, sha string) (*models.Profile, error) {
	return db.updateProfile(ctx, id, `last_commit_sha = ?`, sha)
}

// ResetTodaysCommits zeroes the daily counter for a new UTC day.
func (db *DB) ResetTodaysCommits(ctx context.Context, id, today string) (*models.Profile, error) {
	return db.updateProfile(ctx, id, `todays_commits = 0, todays_commits_date = ?`, today)
}

func (db *DB) updateProfile(ctx context.Context, id, setClause string, args ...any) (*models.Profile, error) {
	args = append(args, time.Now().UTC(), id)
	_, err := db.ExecContext(ctx, `UPDATE profiles SET `+setClause+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return nil, err
	}

	p, err := db.GetProfileByID(id)
	if err != nil {
		return nil, err
	}

	db.publishProfile(ctx, "update", p)
	return p, nil
}

// GetLinkedProfiles returns all profiles with a resolved GitHub login, for
// the background reconciliation tracker.
func (db *DB) GetLinkedProfiles() ([]*models.Profile, error) {
	rows, err := db.Query(`SELECT ` + profileColumns + ` FROM profiles WHERE username IS NOT NULL AND username != '' ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// ProfilePermissions lists the permission grant of a document.
func (db *DB) ProfilePermissions(documentID string) ([]string, error) {
	rows, err := db.Query(`SELECT role || ':' || action FROM profile_permissions WHERE document_id = ? ORDER BY action`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}

	return grants, rows.Err()
}
