package db

import (
	"context"
	"database/sql"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/commitly/commitly/feed"
	"github.com/commitly/commitly/models"
)

// DB is a wrapper around sql.DB
type DB struct {
	*sql.DB
	bus    feed.Bus
	logger *log.Logger
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err = db.Ping(); err != nil {
		return nil, err
	}

	return &DB{
		DB:     db,
		logger: log.New(os.Stdout, "db: ", log.LstdFlags|log.Lmsgprefix),
	}, nil
}

// WithFeed attaches a change-feed bus. Every committed profile mutation is
// published on it, mirroring the remote store's realtime channel.
func (db *DB) WithFeed(bus feed.Bus) *DB {
	db.bus = bus
	return db
}

// Initialize sets up the database tables
func (db *DB) Initialize() error {
	// Profiles collection. user_id carries a unique index: the get-or-create
	// pattern is racy without store-level arbitration.
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		username TEXT,
		name TEXT,
		avatar_url TEXT,
		points INTEGER,
		todays_commits INTEGER,
		todays_commits_date TEXT,
		daily_goal INTEGER,
		push_token TEXT,
		last_commit_at TEXT,
		last_commit_sha TEXT,
		welcome_sent BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_user_id ON profiles(user_id)`)
	if err != nil {
		return err
	}

	// Owner-scoped document permissions, granted at creation time.
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS profile_permissions (
		document_id TEXT NOT NULL,
		role TEXT NOT NULL,
		action TEXT NOT NULL,
		PRIMARY KEY (document_id, role, action),
		FOREIGN KEY (document_id) REFERENCES profiles(id)
	)`)
	if err != nil {
		return err
	}

	// Notification inbox.
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		type TEXT NOT NULL,
		read BOOLEAN NOT NULL DEFAULT 0,
		data TEXT,
		created_at TIMESTAMP
	)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at)`)
	return err
}

// publishProfile emits a change-feed event for a mutated document. Feed
// failures are logged, never surfaced; the write has already committed.
func (db *DB) publishProfile(ctx context.Context, action string, p *models.Profile) {
	if db.bus == nil || p == nil {
		return
	}

	ev := feed.Event{
		Events:  []string{"databases.default.collections.profiles.documents." + p.ID + "." + action},
		Payload: *p,
	}
	if err := db.bus.Publish(ctx, ev); err != nil {
		db.logger.Printf("Error publishing %s event for document %s: %v", action, p.ID, err)
	}
}
