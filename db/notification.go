package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/xid"

	"github.com/commitly/commitly/models"
)

// CreateNotification persists an inbox entry for a user.
func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = xid.New().String()
	}
	n.CreatedAt = time.Now().UTC()

	var data *string
	if len(n.Data) > 0 {
		b, err := json.Marshal(n.Data)
		if err != nil {
			return err
		}
		s := string(b)
		data = &s
	}

	_, err := db.ExecContext(ctx, `
	INSERT INTO notifications (id, user_id, title, message, type, read, data, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Read, data, n.CreatedAt)
	return err
}

// GetNotifications lists a user's inbox, newest first.
func (db *DB) GetNotifications(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT id, user_id, title, message, type, read, data, created_at
	FROM notifications
	WHERE user_id = ?
	ORDER BY created_at DESC
	LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var data sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Read, &data, &n.CreatedAt); err != nil {
			return nil, err
		}
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &n.Data); err != nil {
				n.Data = nil
			}
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkNotificationRead flags one inbox entry as read.
func (db *DB) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	return err
}

// MarkAllNotificationsRead flags every unread entry of a user as read.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadNotificationCount counts a user's unread inbox entries.
func (db *DB) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&count)
	return count, err
}
