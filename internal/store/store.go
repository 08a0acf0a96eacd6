package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

var (
	// ErrNotFound means no row matched.
	ErrNotFound = errors.New("record not found")
	// ErrForbidden means the row exists but belongs to another principal.
	ErrForbidden = errors.New("record owned by another user")
)

// Store wraps the relational database. All operations are single-row and
// owner-scoped; no cross-request state lives here beyond the pool.
type Store struct {
	DB *sql.DB
}

// NewWithDSN opens a Postgres pool. A failed initial ping is logged but
// not fatal: the server must come up and serve demo-mode responses while
// the database is unreachable.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Printf("[STORE] initial ping failed, continuing in degraded mode: %v", err)
	}
	return &Store{DB: db}, nil
}

// Probe runs the cheapest possible liveness check.
func (s *Store) Probe(ctx context.Context) error {
	var one int
	return s.DB.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
}

// User is an application user. IDs are opaque strings so externally-issued
// identities can be bootstrapped as-is.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Subscription is the entitlement record optionally attached to a user.
type Subscription struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	PlanType   string    `json:"planType"`
	QuotaLimit int       `json:"quotaLimit"`
	QuotaUsed  int       `json:"quotaUsed"`
	ValidUntil time.Time `json:"validUntil"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Note is a generated study note.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PracticePaper is a generated practice paper. One entity everywhere;
// creation, listing and deletion all go through this table.
type PracticePaper struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Title      string    `json:"title"`
	Subject    string    `json:"subject"`
	Topic      string    `json:"topic"`
	Difficulty string    `json:"difficulty"`
	Content    string    `json:"content"`
	Prompt     string    `json:"prompt"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Summary is a persisted text summary plus its sizing metadata.
type Summary struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Style          string    `json:"style"`
	Length         string    `json:"length"`
	OriginalLength int       `json:"originalTextLength"`
	SummaryLength  int       `json:"summaryLength"`
	Content        string    `json:"content"`
	StoragePath    string    `json:"storagePath"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Default entitlement handed to freshly bootstrapped users.
const (
	PlanFree          = "FREE"
	PlanDemo          = "DEMO"
	FreeQuotaLimit    = 10
	FreeValidityDays  = 30
	DemoQuotaLimit    = 5
	DemoValidityHours = 24
)

// Account operations (embedded identity service).

// CreateAccount registers a login credential and its user row.
func (s *Store) CreateAccount(ctx context.Context, email, passwordHash string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash) VALUES ($1,$2,$3,$4)`,
		id, email, emailLocalPart(email), passwordHash)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetAccountByEmail returns the user id and password hash for a login.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx,
		`SELECT id, COALESCE(password_hash, '') FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// User operations.

// GetUser fetches a user by id. The second return is false when absent.
func (s *Store) GetUser(ctx context.Context, id string) (User, bool, error) {
	var u User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, name, created_at, updated_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

// CreateUser bootstraps a user and its default FREE subscription in one
// transaction.
func (s *Store) CreateUser(ctx context.Context, id, email, name string) (User, Subscription, error) {
	if name == "" {
		name = emailLocalPart(email)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return User{}, Subscription{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var u User
	err = tx.QueryRowContext(ctx,
		`INSERT INTO users (id, email, name) VALUES ($1,$2,$3)
		 RETURNING id, email, name, created_at, updated_at`,
		id, email, name).
		Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, Subscription{}, fmt.Errorf("insert user: %w", err)
	}

	sub := Subscription{
		ID:         uuid.NewString(),
		UserID:     id,
		PlanType:   PlanFree,
		QuotaLimit: FreeQuotaLimit,
		ValidUntil: time.Now().Add(FreeValidityDays * 24 * time.Hour),
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO subscriptions (id, user_id, plan_type, quota_limit, quota_used, valid_until)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING created_at, updated_at`,
		sub.ID, sub.UserID, sub.PlanType, sub.QuotaLimit, sub.QuotaUsed, sub.ValidUntil).
		Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return User{}, Subscription{}, fmt.Errorf("insert subscription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return User{}, Subscription{}, err
	}
	return u, sub, nil
}

// GetSubscription fetches a user's entitlement. Absence is a valid state,
// not an error.
func (s *Store) GetSubscription(ctx context.Context, userID string) (Subscription, bool, error) {
	var sub Subscription
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, plan_type, quota_limit, quota_used, valid_until, created_at, updated_at
		 FROM subscriptions WHERE user_id=$1`, userID).
		Scan(&sub.ID, &sub.UserID, &sub.PlanType, &sub.QuotaLimit, &sub.QuotaUsed,
			&sub.ValidUntil, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, false, nil
	}
	if err != nil {
		return Subscription{}, false, err
	}
	return sub, true, nil
}

// Note operations.

func (s *Store) CreateNote(ctx context.Context, n Note) (Note, error) {
	n.ID = uuid.NewString()
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO notes (id, user_id, title, subject, topic, content, prompt)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING created_at, updated_at`,
		n.ID, n.UserID, n.Title, n.Subject, n.Topic, n.Content, n.Prompt).
		Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

func (s *Store) GetNote(ctx context.Context, id, ownerID string) (Note, error) {
	var n Note
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, title, subject, topic, content, prompt, created_at, updated_at
		 FROM notes WHERE id=$1 AND user_id=$2`, id, ownerID).
		Scan(&n.ID, &n.UserID, &n.Title, &n.Subject, &n.Topic, &n.Content, &n.Prompt,
			&n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

func (s *Store) ListNotes(ctx context.Context, ownerID string) ([]Note, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, title, subject, topic, content, prompt, created_at, updated_at
		 FROM notes WHERE user_id=$1 ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Subject, &n.Topic, &n.Content,
			&n.Prompt, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) DeleteNote(ctx context.Context, id, ownerID string) error {
	return s.deleteOwned(ctx, "notes", id, ownerID)
}

// Practice paper operations.

func (s *Store) CreatePracticePaper(ctx context.Context, p PracticePaper) (PracticePaper, error) {
	p.ID = uuid.NewString()
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO practice_papers (id, user_id, title, subject, topic, difficulty, content, prompt)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.Title, p.Subject, p.Topic, p.Difficulty, p.Content, p.Prompt).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return PracticePaper{}, err
	}
	return p, nil
}

func (s *Store) ListPracticePapers(ctx context.Context, ownerID string) ([]PracticePaper, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, title, subject, topic, difficulty, content, prompt, created_at, updated_at
		 FROM practice_papers WHERE user_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PracticePaper
	for rows.Next() {
		var p PracticePaper
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Subject, &p.Topic, &p.Difficulty,
			&p.Content, &p.Prompt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeletePracticePaper(ctx context.Context, id, ownerID string) error {
	return s.deleteOwned(ctx, "practice_papers", id, ownerID)
}

// Summary operations.

func (s *Store) CreateSummary(ctx context.Context, sum Summary) (Summary, error) {
	sum.ID = uuid.NewString()
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO summaries (id, user_id, style, length, original_length, summary_length, content, storage_path)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING created_at`,
		sum.ID, sum.UserID, sum.Style, sum.Length, sum.OriginalLength, sum.SummaryLength,
		sum.Content, sum.StoragePath).
		Scan(&sum.CreatedAt)
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func (s *Store) ListSummaries(ctx context.Context, ownerID string) ([]Summary, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, style, length, original_length, summary_length, content, storage_path, created_at
		 FROM summaries WHERE user_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.UserID, &sum.Style, &sum.Length, &sum.OriginalLength,
			&sum.SummaryLength, &sum.Content, &sum.StoragePath, &sum.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// deleteOwned removes a row after an explicit ownership check so callers
// can distinguish 404 from 403. table is always a trusted literal.
func (s *Store) deleteOwned(ctx context.Context, table, id, ownerID string) error {
	var owner string
	err := s.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT user_id FROM %s WHERE id=$1`, table), id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != ownerID {
		return ErrForbidden
	}
	_, err = s.DB.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id=$1 AND user_id=$2`, table), id, ownerID)
	return err
}

func emailLocalPart(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
