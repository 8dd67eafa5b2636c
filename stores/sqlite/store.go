package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"social-server/core"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	sender TEXT NOT NULL,
	receiver TEXT,
	group_id TEXT,
	is_group INTEGER NOT NULL DEFAULT 0,
	content TEXT NOT NULL,
	file_path TEXT,
	file_type TEXT,
	is_read INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_conversation ON messages (sender, receiver, created_at);
CREATE INDEX IF NOT EXISTS messages_group ON messages (group_id, created_at);

CREATE TABLE IF NOT EXISTS chat_groups (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id TEXT NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	recipient TEXT NOT NULL,
	sender TEXT,
	type TEXT NOT NULL,
	message TEXT NOT NULL,
	is_read INTEGER NOT NULL DEFAULT 0,
	data TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_recipient ON notifications (recipient, created_at);
`

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens dataSourceName and creates the tables it needs.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	logrus.WithField("driver", driverName).Debug("SQLite store ready")
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

const messageColumns = `id, sender, receiver, group_id, is_group, content, file_path, file_type, is_read, created_at`

func (s *sqliteStore) SaveMessage(ctx context.Context, message *core.Message) (string, error) {
	id := message.ID
	if id == "" {
		id = ulid.Make().String()
	}
	log := logrus.WithFields(logrus.Fields{
		"message_id": id,
		"user_id":    message.SenderID,
	})

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		string(message.SenderID),
		string(message.ReceiverID),
		string(message.GroupID),
		message.IsGroupMessage,
		message.Content,
		message.FilePath,
		message.FileType,
		message.IsRead,
		message.CreatedAt.UnixNano(),
	)
	if err != nil {
		log.WithError(err).Error("Failed to save message")
		return "", err
	}
	log.Debug("Message saved")
	return id, nil
}

func (s *sqliteStore) FindMessage(ctx context.Context, id string) (*core.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *sqliteStore) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		logrus.WithError(err).WithField("message_id", id).Error("Failed to delete message")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("message %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) ListConversation(ctx context.Context, a, b core.UserID) ([]core.Message, error) {
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
		WHERE is_group = 0 AND ((sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?))
		ORDER BY created_at, id`,
		string(a), string(b), string(b), string(a))
}

func (s *sqliteStore) ListGroupMessages(ctx context.Context, groupID core.GroupID) ([]core.Message, error) {
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE is_group = 1 AND group_id = ? ORDER BY created_at, id`,
		string(groupID))
}

func (s *sqliteStore) queryMessages(ctx context.Context, query string, args ...any) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []core.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*core.Message, error) {
	var (
		msg                                          core.Message
		sender, receiver, groupID, filePath, fileTyp sql.NullString
		createdAt                                    int64
	)
	err := row.Scan(&msg.ID, &sender, &receiver, &groupID, &msg.IsGroupMessage, &msg.Content,
		&filePath, &fileTyp, &msg.IsRead, &createdAt)
	if err != nil {
		return nil, err
	}
	msg.SenderID = core.UserID(sender.String)
	msg.ReceiverID = core.UserID(receiver.String)
	msg.GroupID = core.GroupID(groupID.String)
	msg.FilePath = filePath.String
	msg.FileType = fileTyp.String
	msg.CreatedAt = time.Unix(0, createdAt).UTC()
	return &msg, nil
}

func (s *sqliteStore) SaveGroup(ctx context.Context, group *core.Group) (core.GroupID, error) {
	if group.Name == "" {
		return "", fmt.Errorf("group name is required")
	}
	id := group.ID
	if id == "" {
		id = core.GroupID(ulid.Make().String())
	}
	log := logrus.WithField("group_id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO chat_groups (id, name) VALUES (?, ?)`, string(id), group.Name); err != nil {
		log.WithError(err).Error("Failed to save group")
		return "", err
	}
	members := lo.Uniq(group.Members)
	for i, member := range members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id, position) VALUES (?, ?, ?)`,
			string(id), string(member), i); err != nil {
			log.WithError(err).Error("Failed to save group member")
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	log.WithField("members", len(members)).Debug("Group saved")
	return id, nil
}

func (s *sqliteStore) FindGroup(ctx context.Context, id core.GroupID) (*core.Group, error) {
	group := core.Group{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM chat_groups WHERE id = ?`, string(id)).Scan(&group.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY position`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	group.Members = []core.UserID{}
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, err
		}
		group.Members = append(group.Members, core.UserID(member))
	}
	return &group, rows.Err()
}

func (s *sqliteStore) SaveNotification(ctx context.Context, notification *core.Notification) (string, error) {
	id := notification.ID
	if id == "" {
		id = ulid.Make().String()
	}
	log := logrus.WithFields(logrus.Fields{
		"notification_id": id,
		"user_id":         notification.RecipientID,
	})

	var data sql.NullString
	if notification.Data != nil {
		encoded, err := json.Marshal(notification.Data)
		if err != nil {
			return "", fmt.Errorf("encode notification data: %w", err)
		}
		data = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient, sender, type, message, is_read, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		string(notification.RecipientID),
		string(notification.SenderID),
		notification.Type,
		notification.Message,
		notification.IsRead,
		data,
		notification.CreatedAt.UnixNano(),
	)
	if err != nil {
		log.WithError(err).Error("Failed to save notification")
		return "", err
	}
	log.Debug("Notification saved")
	return id, nil
}
