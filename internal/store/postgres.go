package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/ajirawise/internal/model"
)

// Ensure PostgresStore implements model.Repository.
var _ model.Repository = (*PostgresStore)(nil)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		channel_id   TEXT PRIMARY KEY,
		interest     TEXT NOT NULL DEFAULT '',
		balance      INTEGER NOT NULL DEFAULT 0 CONSTRAINT users_balance_non_negative CHECK (balance >= 0),
		pending_menu TEXT NOT NULL DEFAULT 'NONE',
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sent_jobs (
		channel_id TEXT NOT NULL,
		job_id     TEXT NOT NULL,
		sent_at    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (channel_id, job_id)
	)`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id         UUID PRIMARY KEY,
		channel_id TEXT NOT NULL,
		delta      INTEGER NOT NULL,
		reason     TEXT NOT NULL,
		reference  TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		transaction_id TEXT PRIMARY KEY,
		channel_id     TEXT NOT NULL,
		credits        INTEGER NOT NULL,
		amount_minor   BIGINT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS advisory_log (
		id         BIGSERIAL PRIMARY KEY,
		channel_id TEXT NOT NULL,
		question   TEXT NOT NULL,
		answer     TEXT NOT NULL,
		kind       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// PostgresStore is the shared-database repository for multi-instance deployments.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// NewPostgresStore connects to databaseURL and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := NewPostgresPool(ctx, databaseURL)
	if err != nil {
		return nil, model.Unavailable("postgres connect", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating postgres schema: %w", err)
		}
	}
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

const pgSelectUser = "SELECT " + userColumns + " FROM users WHERE channel_id = $1"

func (s *PostgresStore) GetUser(ctx context.Context, channelID string) (model.UserProfile, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, pgSelectUser, channelID))
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("getting user %s: %w", channelID, mapPgError(err))
	}
	return u, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, channelID string, fields model.UserFields) (model.UserProfile, error) {
	var out model.UserProfile
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		now := s.now()
		if err := pgEnsureUser(ctx, tx, channelID, now); err != nil {
			return err
		}

		sets := []string{"updated_at = $1"}
		args := []any{now}
		if fields.Interest != nil {
			args = append(args, *fields.Interest)
			sets = append(sets, fmt.Sprintf("interest = $%d", len(args)))
		}
		if fields.PendingMenu != nil {
			args = append(args, string(*fields.PendingMenu))
			sets = append(sets, fmt.Sprintf("pending_menu = $%d", len(args)))
		}
		args = append(args, channelID)
		query := fmt.Sprintf("UPDATE users SET %s WHERE channel_id = $%d RETURNING %s",
			strings.Join(sets, ", "), len(args), userColumns)

		u, err := scanUser(tx.QueryRow(ctx, query, args...))
		out = u
		return err
	})
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("upserting user %s: %w", channelID, mapPgError(err))
	}
	return out, nil
}

func (s *PostgresStore) AdjustBalance(ctx context.Context, channelID string, delta int, reason model.CreditReason, reference string) (model.UserProfile, error) {
	if delta == 0 {
		return s.GetUser(ctx, channelID)
	}
	var out model.UserProfile
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		now := s.now()
		if delta > 0 {
			if err := pgEnsureUser(ctx, tx, channelID, now); err != nil {
				return err
			}
		}
		u, err := pgApplyDelta(ctx, tx, channelID, delta, reason, reference, now)
		out = u
		return err
	})
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("adjusting balance for %s by %d: %w", channelID, delta, mapPgError(err))
	}
	return out, nil
}

func (s *PostgresStore) RecordSentIfAbsent(ctx context.Context, channelID, jobID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		"INSERT INTO sent_jobs (channel_id, job_id, sent_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		channelID, jobID, s.now(),
	)
	if err != nil {
		return false, fmt.Errorf("recording job %s for %s: %w", jobID, channelID, mapPgError(err))
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ClaimJob(ctx context.Context, channelID, jobID string) (model.UserProfile, bool, error) {
	var (
		out     model.UserProfile
		claimed bool
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		now := s.now()
		tag, err := tx.Exec(ctx,
			"INSERT INTO sent_jobs (channel_id, job_id, sent_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
			channelID, jobID, now,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			u, err := scanUser(tx.QueryRow(ctx, pgSelectUser, channelID))
			out = u
			return err
		}
		u, err := pgApplyDelta(ctx, tx, channelID, -1, model.ReasonDispatch, jobID, now)
		if err != nil {
			return err
		}
		out, claimed = u, true
		return nil
	})
	if err != nil {
		return model.UserProfile{}, false, fmt.Errorf("claiming job %s for %s: %w", jobID, channelID, mapPgError(err))
	}
	return out, claimed, nil
}

// CreditPayment relies on the payments primary key: a unique violation means
// the transaction was already credited.
func (s *PostgresStore) CreditPayment(ctx context.Context, p model.Payment) (model.UserProfile, bool, error) {
	if err := validatePayment(p); err != nil {
		return model.UserProfile{}, false, err
	}
	var out model.UserProfile
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		now := s.now()
		if _, err := tx.Exec(ctx,
			"INSERT INTO payments (transaction_id, channel_id, credits, amount_minor, created_at) VALUES ($1, $2, $3, $4, $5)",
			p.TransactionID, p.ChannelID, p.Credits, p.AmountMinor, now,
		); err != nil {
			return err
		}
		if err := pgEnsureUser(ctx, tx, p.ChannelID, now); err != nil {
			return err
		}
		u, err := pgApplyDelta(ctx, tx, p.ChannelID, p.Credits, model.ReasonPayment, p.TransactionID, now)
		out = u
		return err
	})
	err = mapPgError(err)
	if errors.Is(err, model.ErrStorageConflict) {
		u, getErr := s.GetUser(ctx, p.ChannelID)
		return u, false, getErr
	}
	if err != nil {
		return model.UserProfile{}, false, fmt.Errorf("crediting payment %s: %w", p.TransactionID, err)
	}
	return out, true, nil
}

func (s *PostgresStore) ListDeliverable(ctx context.Context) ([]model.UserProfile, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+userColumns+" FROM users WHERE interest <> '' AND balance > 0 ORDER BY updated_at, channel_id",
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

func (s *PostgresStore) LogAdvisory(ctx context.Context, channelID, question, answer string, kind model.AdvisoryKind) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO advisory_log (channel_id, question, answer, kind, created_at) VALUES ($1, $2, $3, $4, $5)",
		channelID, question, answer, string(kind), s.now(),
	)
	if err != nil {
		return fmt.Errorf("logging advisory for %s: %w", channelID, err)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := s.pool.QueryRow(ctx, `SELECT
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

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Unavailable("postgres begin", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func pgEnsureUser(ctx context.Context, tx pgx.Tx, channelID string, now time.Time) error {
	_, err := tx.Exec(ctx,
		"INSERT INTO users (channel_id, created_at, updated_at) VALUES ($1, $2, $2) ON CONFLICT (channel_id) DO NOTHING",
		channelID, now,
	)
	return err
}

// pgApplyDelta lets the balance CHECK constraint reject overdrafts.
func pgApplyDelta(ctx context.Context, tx pgx.Tx, channelID string, delta int, reason model.CreditReason, reference string, now time.Time) (model.UserProfile, error) {
	u, err := scanUser(tx.QueryRow(ctx,
		"UPDATE users SET balance = balance + $1, updated_at = $2 WHERE channel_id = $3 RETURNING "+userColumns,
		delta, now, channelID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.UserProfile{}, model.ErrInsufficientBalance
	}
	if err != nil {
		return model.UserProfile{}, err
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO credit_transactions (id, channel_id, delta, reason, reference, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		uuid.New(), channelID, delta, string(reason), reference, now,
	); err != nil {
		return model.UserProfile{}, err
	}
	return u, nil
}

// mapPgError translates driver errors into the repository's error kinds.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", model.ErrStorageConflict, pgErr.Detail)
		case pgerrcode.CheckViolation:
			return model.ErrInsufficientBalance
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return fmt.Errorf("%w: %s", model.ErrStorageConflict, pgErr.Message)
		}
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return model.Unavailable("postgres", err)
	}
	return err
}
