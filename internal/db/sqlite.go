package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/RichardoC/aip-chat/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    chat_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS messages_chat ON messages(chat_id, seq);

CREATE TABLE IF NOT EXISTS users (
    email TEXT PRIMARY KEY,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    user_type TEXT NOT NULL DEFAULT '',
    company TEXT NOT NULL DEFAULT '',
    verified INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS magic_links (
    session_id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    confirmed INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (email) REFERENCES users(email) ON DELETE CASCADE
);`

// ErrNotFound is returned when a chat, user or magic link does not exist.
var ErrNotFound = errors.New("not found")

// User is a registered account.
type User struct {
	Email     string
	FirstName string
	LastName  string
	UserType  string
	Company   string
	Verified  bool
	CreatedAt time.Time
}

// MagicLink is a pending or confirmed sign-in link.
type MagicLink struct {
	SessionID string
	Email     string
	Confirmed bool
	CreatedAt time.Time
}

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	// go-sqlite3 connections do not share in-memory databases.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db}, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) CreateChat(ctx context.Context, chat models.Chat) error {
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO chats (id, title, created_at, updated_at)
        VALUES (?, ?, ?, ?)`,
		chat.ID, chat.Title, toMillis(chat.CreatedAt), toMillis(chat.UpdatedAt))
	return err
}

// SaveMessage appends msg to its chat and bumps the chat's updated time.
// A non-empty title replaces the chat title in the same transaction.
func (db *Database) SaveMessage(ctx context.Context, msg models.Message, title string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE chats SET updated_at = ?, title = COALESCE(NULLIF(?, ''), title)
        WHERE id = ?`,
		toMillis(msg.CreatedAt), title, msg.ChatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO messages (id, chat_id, role, content, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, string(msg.Role), msg.Content, toMillis(msg.CreatedAt)); err != nil {
		return err
	}

	return tx.Commit()
}

// GetChat returns the chat with its messages in the order they were saved.
func (db *Database) GetChat(ctx context.Context, id string) (models.Chat, error) {
	var chat models.Chat
	var created, updated int64
	err := db.db.QueryRowContext(ctx, `
        SELECT id, title, created_at, updated_at FROM chats WHERE id = ?`, id).
		Scan(&chat.ID, &chat.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}
	chat.CreatedAt = fromMillis(created)
	chat.UpdatedAt = fromMillis(updated)

	chat.Messages, err = db.GetHistory(ctx, id, 0)
	if err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// GetChats returns every chat with its messages, most recently updated first.
func (db *Database) GetChats(ctx context.Context) ([]models.Chat, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, title, created_at, updated_at
        FROM chats
        ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}

	chats := make([]models.Chat, 0)
	for rows.Next() {
		var chat models.Chat
		var created, updated int64
		if err := rows.Scan(&chat.ID, &chat.Title, &created, &updated); err != nil {
			rows.Close()
			return nil, err
		}
		chat.CreatedAt = fromMillis(created)
		chat.UpdatedAt = fromMillis(updated)
		chats = append(chats, chat)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for i := range chats {
		if chats[i].Messages, err = db.GetHistory(ctx, chats[i].ID, 0); err != nil {
			return nil, err
		}
	}
	return chats, nil
}

// GetHistory returns up to limit of the latest messages of a chat, oldest
// first. A limit of zero returns them all.
func (db *Database) GetHistory(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, chat_id, role, content, created_at FROM (
            SELECT seq, id, chat_id, role, content, created_at
            FROM messages
            WHERE chat_id = ?
            ORDER BY seq DESC
            LIMIT ?
        ) ORDER BY seq ASC`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var role string
		var created int64
		if err := rows.Scan(&msg.ID, &msg.ChatID, &role, &msg.Content, &created); err != nil {
			return nil, err
		}
		msg.Role = models.Role(role)
		msg.CreatedAt = fromMillis(created)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (db *Database) DeleteChat(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
