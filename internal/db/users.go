package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UserExists reports whether email belongs to a registered account.
func (db *Database) UserExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := db.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM users WHERE email = ?", email).Scan(&n)
	return n > 0, err
}

// CreateUser registers u. Registering an existing address updates its profile.
func (db *Database) CreateUser(ctx context.Context, u User) error {
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO users (email, first_name, last_name, user_type, company, verified, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(email) DO UPDATE SET
            first_name = excluded.first_name,
            last_name = excluded.last_name,
            user_type = excluded.user_type,
            company = excluded.company`,
		u.Email, u.FirstName, u.LastName, u.UserType, u.Company, u.Verified, toMillis(u.CreatedAt))
	return err
}

func (db *Database) GetUser(ctx context.Context, email string) (User, error) {
	var u User
	var created int64
	err := db.db.QueryRowContext(ctx, `
        SELECT email, first_name, last_name, user_type, company, verified, created_at
        FROM users WHERE email = ?`, email).
		Scan(&u.Email, &u.FirstName, &u.LastName, &u.UserType, &u.Company, &u.Verified, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	u.CreatedAt = fromMillis(created)
	return u, err
}

func (db *Database) CreateMagicLink(ctx context.Context, sessionID, email string, now time.Time) error {
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO magic_links (session_id, email, created_at) VALUES (?, ?, ?)`,
		sessionID, email, toMillis(now))
	return err
}

// ConfirmMagicLink marks the link opened and verifies its user.
func (db *Database) ConfirmMagicLink(ctx context.Context, sessionID string) (MagicLink, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return MagicLink{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE magic_links SET confirmed = 1 WHERE session_id = ?", sessionID)
	if err != nil {
		return MagicLink{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return MagicLink{}, ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE users SET verified = 1
        WHERE email = (SELECT email FROM magic_links WHERE session_id = ?)`, sessionID); err != nil {
		return MagicLink{}, err
	}
	if err := tx.Commit(); err != nil {
		return MagicLink{}, err
	}

	return db.GetMagicLink(ctx, sessionID)
}

func (db *Database) GetMagicLink(ctx context.Context, sessionID string) (MagicLink, error) {
	var ml MagicLink
	var created int64
	err := db.db.QueryRowContext(ctx, `
        SELECT session_id, email, confirmed, created_at FROM magic_links WHERE session_id = ?`, sessionID).
		Scan(&ml.SessionID, &ml.Email, &ml.Confirmed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return MagicLink{}, ErrNotFound
	}
	ml.CreatedAt = fromMillis(created)
	return ml, err
}
