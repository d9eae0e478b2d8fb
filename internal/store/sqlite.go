package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/amishk599/ajirawise/internal/model"
)

// Ensure SQLiteStore implements model.Repository.
var _ model.Repository = (*SQLiteStore)(nil)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		channel_id   TEXT PRIMARY KEY,
		interest     TEXT NOT NULL DEFAULT '',
		balance      INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		pending_menu TEXT NOT NULL DEFAULT 'NONE',
		created_at   DATETIME NOT NULL,
		updated_at   DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sent_jobs (
		channel_id TEXT NOT NULL,
		job_id     TEXT NOT NULL,
		sent_at    DATETIME NOT NULL,
		PRIMARY KEY (channel_id, job_id)
	)`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id         TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		delta      INTEGER NOT NULL,
		reason     TEXT NOT NULL,
		reference  TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		transaction_id TEXT PRIMARY KEY,
		channel_id     TEXT NOT NULL,
		credits        INTEGER NOT NULL,
		amount_minor   INTEGER NOT NULL,
		created_at     DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS advisory_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id TEXT NOT NULL,
		question   TEXT NOT NULL,
		answer     TEXT NOT NULL,
		kind       TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS users_deliverable ON users (balance) WHERE balance > 0`,
}

// SQLiteStore persists users, the sent-job ledger and payments in SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite has a single writer; one connection serializes transactions in-process.
	db.SetMaxOpenConns(1)

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating sqlite schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const userColumns = "channel_id, interest, balance, pending_menu, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.UserProfile, error) {
	var (
		u       model.UserProfile
		pending string
	)
	if err := row.Scan(&u.ChannelID, &u.Interest, &u.Balance, &pending, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return model.UserProfile{}, err
	}
	u.PendingMenu = model.MenuState(pending)
	return u, nil
}

// GetUser returns the profile for channelID or model.ErrNotFound.
func (s *SQLiteStore) GetUser(ctx context.Context, channelID string) (model.UserProfile, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE channel_id = ?", channelID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserProfile{}, model.ErrNotFound
	}
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("getting user %s: %w", channelID, err)
	}
	return u, nil
}

// UpsertUser creates the user if missing and applies the non-nil fields.
func (s *SQLiteStore) UpsertUser(ctx context.Context, channelID string, fields model.UserFields) (model.UserProfile, error) {
	var out model.UserProfile
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		if err := ensureUserTx(ctx, tx, channelID, now); err != nil {
			return err
		}

		sets := []string{"updated_at = ?"}
		args := []any{now}
		if fields.Interest != nil {
			sets = append(sets, "interest = ?")
			args = append(args, *fields.Interest)
		}
		if fields.PendingMenu != nil {
			sets = append(sets, "pending_menu = ?")
			args = append(args, string(*fields.PendingMenu))
		}
		args = append(args, channelID)
		if _, err := tx.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE channel_id = ?", args...); err != nil {
			return fmt.Errorf("updating user: %w", err)
		}

		u, err := scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE channel_id = ?", channelID))
		out = u
		return err
	})
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("upserting user %s: %w", channelID, err)
	}
	return out, nil
}

// AdjustBalance applies delta atomically; the balance never crosses zero.
func (s *SQLiteStore) AdjustBalance(ctx context.Context, channelID string, delta int, reason model.CreditReason, reference string) (model.UserProfile, error) {
	if delta == 0 {
		return s.GetUser(ctx, channelID)
	}
	var out model.UserProfile
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		if delta > 0 {
			if err := ensureUserTx(ctx, tx, channelID, now); err != nil {
				return err
			}
		}
		u, err := applyDeltaTx(ctx, tx, channelID, delta, reason, reference, now)
		out = u
		return err
	})
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("adjusting balance for %s by %d: %w", channelID, delta, err)
	}
	return out, nil
}

// RecordSentIfAbsent inserts the ledger row; false means it already existed.
func (s *SQLiteStore) RecordSentIfAbsent(ctx context.Context, channelID, jobID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sent_jobs (channel_id, job_id, sent_at) VALUES (?, ?, ?)",
		channelID, jobID, s.now(),
	)
	if err != nil {
		return false, fmt.Errorf("recording job %s for %s: %w", jobID, channelID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("recording job %s for %s: %w", jobID, channelID, err)
	}
	return n == 1, nil
}

// ClaimJob records the ledger row and debits one credit in one transaction.
func (s *SQLiteStore) ClaimJob(ctx context.Context, channelID, jobID string) (model.UserProfile, bool, error) {
	var (
		out     model.UserProfile
		claimed bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		res, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO sent_jobs (channel_id, job_id, sent_at) VALUES (?, ?, ?)",
			channelID, jobID, now,
		)
		if err != nil {
			return fmt.Errorf("inserting ledger row: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			u, err := scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE channel_id = ?", channelID))
			if errors.Is(err, sql.ErrNoRows) {
				return model.ErrNotFound
			}
			out = u
			return err
		}

		u, err := applyDeltaTx(ctx, tx, channelID, -1, model.ReasonDispatch, jobID, now)
		if err != nil {
			return err
		}
		out, claimed = u, true
		return nil
	})
	if err != nil {
		return model.UserProfile{}, false, fmt.Errorf("claiming job %s for %s: %w", jobID, channelID, err)
	}
	return out, claimed, nil
}

// CreditPayment credits a payment once per transaction id.
func (s *SQLiteStore) CreditPayment(ctx context.Context, p model.Payment) (model.UserProfile, bool, error) {
	if err := validatePayment(p); err != nil {
		return model.UserProfile{}, false, err
	}
	var (
		out     model.UserProfile
		applied bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		res, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO payments (transaction_id, channel_id, credits, amount_minor, created_at) VALUES (?, ?, ?, ?, ?)",
			p.TransactionID, p.ChannelID, p.Credits, p.AmountMinor, now,
		)
		if err != nil {
			return fmt.Errorf("inserting payment: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if err := ensureUserTx(ctx, tx, p.ChannelID, now); err != nil {
			return err
		}
		if n == 0 {
			u, err := scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE channel_id = ?", p.ChannelID))
			out = u
			return err
		}
		u, err := applyDeltaTx(ctx, tx, p.ChannelID, p.Credits, model.ReasonPayment, p.TransactionID, now)
		out, applied = u, err == nil
		return err
	})
	if err != nil {
		return model.UserProfile{}, false, fmt.Errorf("crediting payment %s: %w", p.TransactionID, err)
	}
	return out, applied, nil
}

// ListDeliverable returns users with an interest and a positive balance.
func (s *SQLiteStore) ListDeliverable(ctx context.Context) ([]model.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE interest != '' AND balance > 0 ORDER BY updated_at, channel_id",
	)
	if err != nil {
		return nil, fmt.Errorf("listing deliverable users: %w", err)
	}
	defer rows.Close()

	var users []model.UserProfile
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("listing deliverable users: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// LogAdvisory appends an advisory interaction.
func (s *SQLiteStore) LogAdvisory(ctx context.Context, channelID, question, answer string, kind model.AdvisoryKind) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO advisory_log (channel_id, question, answer, kind, created_at) VALUES (?, ?, ?, ?, ?)",
		channelID, question, answer, string(kind), s.now(),
	)
	if err != nil {
		return fmt.Errorf("logging advisory for %s: %w", channelID, err)
	}
	return nil
}

// Stats returns row counts for the admin overview.
func (s *SQLiteStore) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM users WHERE balance > 0),
		(SELECT COUNT(*) FROM sent_jobs),
		(SELECT COUNT(*) FROM payments),
		(SELECT COUNT(*) FROM advisory_log)`,
	).Scan(&st.Users, &st.FundedUsers, &st.JobsSent, &st.Payments, &st.AdvisoryLogged)
	if err != nil {
		return model.Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return st, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func ensureUserTx(ctx context.Context, tx *sql.Tx, channelID string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO users (channel_id, created_at, updated_at) VALUES (?, ?, ?) ON CONFLICT (channel_id) DO NOTHING",
		channelID, now, now,
	)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// applyDeltaTx updates the balance guarded against going negative and writes
// the audit row. Zero updated rows means the user is missing or short on credit.
func applyDeltaTx(ctx context.Context, tx *sql.Tx, channelID string, delta int, reason model.CreditReason, reference string, now time.Time) (model.UserProfile, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET balance = balance + ?, updated_at = ? WHERE channel_id = ? AND balance + ? >= 0",
		delta, now, channelID, delta,
	)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("updating balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.UserProfile{}, err
	}
	if n == 0 {
		return model.UserProfile{}, model.ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO credit_transactions (id, channel_id, delta, reason, reference, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		uuid.NewString(), channelID, delta, string(reason), reference, now,
	); err != nil {
		return model.UserProfile{}, fmt.Errorf("recording credit transaction: %w", err)
	}

	return scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE channel_id = ?", channelID))
}

func validatePayment(p model.Payment) error {
	switch {
	case p.TransactionID == "":
		return &model.ValidationError{Field: "transaction_id", Message: "required"}
	case p.ChannelID == "":
		return &model.ValidationError{Field: "channel_id", Message: "required"}
	case p.Credits <= 0:
		return &model.ValidationError{Field: "credits", Message: "must be positive"}
	}
	return nil
}
