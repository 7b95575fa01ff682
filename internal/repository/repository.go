package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

var ErrSessionNotFound = errors.New("checkout session not found")

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type Repository struct {
	db *sql.DB
}

type RepoInterface interface {
	CreateSession(ctx context.Context, session *domain.CheckoutSession) error
	GetSession(ctx context.Context, id string) (*domain.CheckoutSession, error)
	SaveSession(ctx context.Context, session *domain.CheckoutSession) error
	CompleteSession(ctx context.Context, id string, payload []byte) error
	MarkSessionFailed(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	GetStuckSessions(ctx context.Context, olderThan time.Duration) ([]string, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	RunMigrations(migrationsPath string) error
	Close() error
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) CreateSession(ctx context.Context, session *domain.CheckoutSession) error {
	shipping, err := json.Marshal(session.Shipping)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping info: %w", err)
	}
	snapshot, err := json.Marshal(session.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}

	query := `
		INSERT INTO checkout_sessions (id, status, email, shipping_json, snapshot_json, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		session.ID,
		string(session.State),
		session.Email,
		string(shipping),
		string(snapshot),
		session.PaymentMethod,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create checkout session: %w", err)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	query := `
		SELECT id, status, email, shipping_json, snapshot_json, payment_method, created_at, updated_at
		FROM checkout_sessions
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var (
		session  domain.CheckoutSession
		state    string
		shipping string
		snapshot string
	)
	err := row.Scan(&session.ID, &state, &session.Email, &shipping, &snapshot, &session.PaymentMethod, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan checkout session: %w", err)
	}

	session.State = domain.CheckoutState(state)
	if err := json.Unmarshal([]byte(shipping), &session.Shipping); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shipping info: %w", err)
	}
	if err := json.Unmarshal([]byte(snapshot), &session.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart snapshot: %w", err)
	}

	return &session, nil
}

// SaveSession writes back the mutable parts of an existing session.
func (r *Repository) SaveSession(ctx context.Context, session *domain.CheckoutSession) error {
	shipping, err := json.Marshal(session.Shipping)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping info: %w", err)
	}
	snapshot, err := json.Marshal(session.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}

	query := `
		UPDATE checkout_sessions
		SET status = $1, email = $2, shipping_json = $3, snapshot_json = $4, payment_method = $5, updated_at = $6
		WHERE id = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		string(session.State),
		session.Email,
		string(shipping),
		string(snapshot),
		session.PaymentMethod,
		time.Now(),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkout session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// CompleteSession marks the session succeeded and records the outbox
// event in one transaction, so a completed order is never lost between
// the two writes.
func (r *Repository) CompleteSession(ctx context.Context, id string, payload []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE checkout_sessions SET status = $1, updated_at = $2 WHERE id = $3`,
		string(domain.CheckoutStateSucceeded), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete checkout session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		id, "order-completed", string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) MarkSessionFailed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE checkout_sessions SET status = $1, updated_at = $2 WHERE id = $3`,
		string(domain.CheckoutStateFailed), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark session failed: %w", err)
	}
	return nil
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM checkout_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete checkout session: %w", err)
	}
	return nil
}

// GetStuckSessions returns sessions that entered SUBMITTING_ORDER but
// never reached a terminal status; the process likely died mid-submit.
func (r *Repository) GetStuckSessions(ctx context.Context, olderThan time.Duration) ([]string, error) {
	query := `
		SELECT id FROM checkout_sessions
		WHERE status = $1 AND updated_at < $2
	`
	cutoff := time.Now().Add(-olderThan)
	rows, err := r.db.QueryContext(ctx, query, string(domain.CheckoutStateSubmittingOrder), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stuck session: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE processed = 0
		ORDER BY id
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var (
			e       OutboxEvent
			payload string
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Payload = []byte(payload)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed = 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}
