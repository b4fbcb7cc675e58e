package newsroom

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = sql.ErrNoRows

// ErrDuplicateEmail is returned when an insert or update would violate the
// subscriber email uniqueness constraint. Handlers map it to the
// "already subscribed" message instead of a generic failure.
var ErrDuplicateEmail = errors.New("email already subscribed")

// Store wraps a SQLite database and provides all persistence for newsletters,
// analytics, email logs, and subscribers.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL for concurrent read/write, busy timeout so writers wait instead of
	// failing with SQLITE_BUSY, synchronous=NORMAL is safe with WAL.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS newsletters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    excerpt TEXT,
    status TEXT NOT NULL CHECK (status IN ('scheduled','published')),
    category TEXT NOT NULL DEFAULT 'Staff Updates',
    is_pinned INTEGER NOT NULL DEFAULT 0,
    published_at DATETIME,
    scheduled_for DATETIME,
    created_at DATETIME NOT NULL,
    author_id TEXT NOT NULL,
    send_email INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS newsletter_analytics (
    newsletter_id INTEGER PRIMARY KEY REFERENCES newsletters(id),
    views INTEGER NOT NULL DEFAULT 0,
    unique_views INTEGER NOT NULL DEFAULT 0,
    total_engagement_time INTEGER NOT NULL DEFAULT 0,
    average_engagement_time INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS newsletter_visits (
    newsletter_id INTEGER NOT NULL,
    visitor_id TEXT NOT NULL,
    PRIMARY KEY (newsletter_id, visitor_id)
);

CREATE TABLE IF NOT EXISTS newsletter_email_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    newsletter_id INTEGER NOT NULL,
    recipient TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('sent','opened','failed')),
    token TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_email_logs_newsletter ON newsletter_email_logs(newsletter_id);
CREATE INDEX IF NOT EXISTS idx_email_logs_token ON newsletter_email_logs(token);
CREATE INDEX IF NOT EXISTS idx_newsletters_status ON newsletters(status, published_at);

CREATE TABLE IF NOT EXISTS newsletter_subscribers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    full_name TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    subscribed_at DATETIME NOT NULL,
    token TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS images (
    filename TEXT PRIMARY KEY,
    original_name TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    size INTEGER NOT NULL,
    uploaded_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`)
	return err
}

// currentSchemaVersion is the latest schema version. Increment when adding migrations.
const currentSchemaVersion = 1

// migrate applies incremental schema migrations based on a version stored in
// the settings table.
func (s *Store) migrate() error {
	verStr, err := s.GetSetting("schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := 0
	if verStr != "" {
		version, err = strconv.Atoi(verStr)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", verStr, err)
		}
	}
	if version < currentSchemaVersion {
		version = currentSchemaVersion
	}
	return s.SetSetting("schema_version", strconv.Itoa(version))
}

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

// isUniqueViolation reports whether err is a SQLite uniqueness error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// newToken generates a random hex token for unsubscribe and open-tracking links.
func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// --- Newsletters ---

const newsletterColumns = `id, title, content, excerpt, status, category, is_pinned, published_at, scheduled_for, created_at, author_id, send_email`

func scanNewsletter(row interface{ Scan(...any) error }) (Newsletter, error) {
	var n Newsletter
	var excerpt sql.NullString
	var publishedAt, scheduledFor sql.NullTime
	var pinned, sendEmail int
	err := row.Scan(&n.ID, &n.Title, &n.Content, &excerpt, &n.Status, &n.Category,
		&pinned, &publishedAt, &scheduledFor, &n.CreatedAt, &n.AuthorID, &sendEmail)
	if err != nil {
		return Newsletter{}, err
	}
	n.Excerpt = excerpt.String
	if publishedAt.Valid {
		t := publishedAt.Time
		n.PublishedAt = &t
	}
	if scheduledFor.Valid {
		t := scheduledFor.Time
		n.ScheduledFor = &t
	}
	n.IsPinned = pinned == 1
	n.SendEmail = sendEmail == 1
	return n, nil
}

// CreateNewsletter inserts a newsletter row and, when the status is published,
// its zeroed analytics row in the same transaction. Scheduled newsletters get
// no analytics row until they promote.
func (s *Store) CreateNewsletter(n *Newsletter) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var excerpt sql.NullString
	if n.Excerpt != "" {
		excerpt = sql.NullString{String: n.Excerpt, Valid: true}
	}
	var publishedAt, scheduledFor sql.NullTime
	if n.PublishedAt != nil {
		publishedAt = sql.NullTime{Time: n.PublishedAt.UTC(), Valid: true}
	}
	if n.ScheduledFor != nil {
		scheduledFor = sql.NullTime{Time: n.ScheduledFor.UTC(), Valid: true}
	}
	pinned := 0
	if n.IsPinned {
		pinned = 1
	}
	sendEmail := 0
	if n.SendEmail {
		sendEmail = 1
	}
	res, err := tx.Exec(`INSERT INTO newsletters (title, content, excerpt, status, category, is_pinned, published_at, scheduled_for, created_at, author_id, send_email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Title, n.Content, excerpt, n.Status, n.Category, pinned, publishedAt, scheduledFor, n.CreatedAt.UTC(), n.AuthorID, sendEmail)
	if err != nil {
		return fmt.Errorf("insert newsletter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = id

	if n.Status == StatusPublished {
		if _, err := tx.Exec(`INSERT INTO newsletter_analytics (newsletter_id) VALUES (?)`, id); err != nil {
			return fmt.Errorf("insert analytics row: %w", err)
		}
	}
	return tx.Commit()
}

// GetNewsletter returns a newsletter by id regardless of status.
func (s *Store) GetNewsletter(id int64) (Newsletter, error) {
	row := s.db.QueryRow(`SELECT `+newsletterColumns+` FROM newsletters WHERE id = ?`, id)
	return scanNewsletter(row)
}

// ListPublished returns the most recent published newsletters, pinned first,
// then by published_at descending.
func (s *Store) ListPublished(limit int) ([]Newsletter, error) {
	rows, err := s.db.Query(`SELECT `+newsletterColumns+` FROM newsletters
		WHERE status = 'published' ORDER BY is_pinned DESC, published_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Newsletter
	for rows.Next() {
		n, err := scanNewsletter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DueScheduled returns scheduled newsletters whose scheduled_for time has passed.
func (s *Store) DueScheduled(now time.Time) ([]Newsletter, error) {
	rows, err := s.db.Query(`SELECT `+newsletterColumns+` FROM newsletters
		WHERE status = 'scheduled' AND scheduled_for <= ? ORDER BY scheduled_for ASC`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Newsletter
	for rows.Next() {
		n, err := scanNewsletter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// PromoteScheduled flips a scheduled newsletter to published and creates its
// zeroed analytics row, atomically. It reports false when the row was not in
// scheduled state, which makes concurrent promotion attempts idempotent.
func (s *Store) PromoteScheduled(id int64, now time.Time) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE newsletters SET status = 'published', published_at = ?, scheduled_for = NULL
		WHERE id = ? AND status = 'scheduled'`, now.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("promote newsletter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	if _, err := tx.Exec(`INSERT INTO newsletter_analytics (newsletter_id) VALUES (?)`, id); err != nil {
		return false, fmt.Errorf("insert analytics row: %w", err)
	}
	return true, tx.Commit()
}

// --- Analytics ---

// GetAnalytics returns the analytics row for a newsletter.
func (s *Store) GetAnalytics(id int64) (Analytics, error) {
	var a Analytics
	err := s.db.QueryRow(`SELECT newsletter_id, views, unique_views, total_engagement_time, average_engagement_time
		FROM newsletter_analytics WHERE newsletter_id = ?`, id).
		Scan(&a.NewsletterID, &a.Views, &a.UniqueViews, &a.TotalEngagementTime, &a.AverageEngagementTime)
	return a, err
}

// RecordView increments a published newsletter's view counters. The visitor id
// is a salted hash; a visitor counts toward unique_views only once. Engagement
// seconds accumulate into the total, and the stored average is recomputed from
// total/views.
func (s *Store) RecordView(newsletterID int64, visitorID string, durationSec int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE newsletter_analytics SET views = views + 1, total_engagement_time = total_engagement_time + ?
		WHERE newsletter_id = ?`, durationSec, newsletterID)
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	ins, err := tx.Exec(`INSERT OR IGNORE INTO newsletter_visits (newsletter_id, visitor_id) VALUES (?, ?)`,
		newsletterID, visitorID)
	if err != nil {
		return fmt.Errorf("record visitor: %w", err)
	}
	if n, _ := ins.RowsAffected(); n > 0 {
		if _, err := tx.Exec(`UPDATE newsletter_analytics SET unique_views = unique_views + 1 WHERE newsletter_id = ?`, newsletterID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`UPDATE newsletter_analytics
		SET average_engagement_time = CAST(ROUND(CAST(total_engagement_time AS REAL) / views) AS INTEGER)
		WHERE newsletter_id = ? AND views > 0`, newsletterID); err != nil {
		return err
	}
	return tx.Commit()
}

// PopularTopics returns categories ranked by total views across their
// published newsletters.
func (s *Store) PopularTopics(ctx context.Context, limit int) ([]TopicStat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT n.category, COALESCE(SUM(a.views), 0) AS view_count
		FROM newsletters n
		JOIN newsletter_analytics a ON a.newsletter_id = n.id
		WHERE n.status = 'published'
		GROUP BY n.category
		ORDER BY view_count DESC, n.category ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopicStat
	for rows.Next() {
		var t TopicStat
		if err := rows.Scan(&t.Topic, &t.ViewCount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Email logs ---

// InsertEmailLog records one recipient's delivery status for one send batch.
func (s *Store) InsertEmailLog(e *EmailLog) error {
	res, err := s.db.Exec(`INSERT INTO newsletter_email_logs (newsletter_id, recipient, status, token, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.NewsletterID, e.Recipient, e.Status, e.Token, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// MarkEmailOpened flips a log entry from sent to opened by its tracking token.
// Returns false when the token is unknown or the entry was not in sent state.
func (s *Store) MarkEmailOpened(token string) (bool, error) {
	res, err := s.db.Exec(`UPDATE newsletter_email_logs SET status = 'opened' WHERE token = ? AND status = 'sent'`, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// EmailLogCounts reduces a newsletter's log entries into sent/opened/failed
// counts. Sent includes opened entries, since opened implies sent.
func (s *Store) EmailLogCounts(ctx context.Context, newsletterID int64) (EmailCounts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM newsletter_email_logs
		WHERE newsletter_id = ? GROUP BY status`, newsletterID)
	if err != nil {
		return EmailCounts{}, err
	}
	defer rows.Close()

	var c EmailCounts
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return EmailCounts{}, err
		}
		switch status {
		case EmailStatusSent:
			c.Sent += count
		case EmailStatusOpened:
			c.Sent += count
			c.Opened = count
		case EmailStatusFailed:
			c.Failed = count
		}
	}
	return c, rows.Err()
}

// --- Subscribers ---

func scanSubscriber(row interface{ Scan(...any) error }) (Subscriber, error) {
	var sub Subscriber
	var name sql.NullString
	var active int
	err := row.Scan(&sub.ID, &sub.Email, &name, &active, &sub.SubscribedAt, &sub.Token)
	if err != nil {
		return Subscriber{}, err
	}
	sub.FullName = name.String
	sub.IsActive = active == 1
	return sub, nil
}

const subscriberColumns = `id, email, full_name, is_active, subscribed_at, token`

// AddSubscriber inserts a new active subscriber. A duplicate email yields
// ErrDuplicateEmail and no second row.
func (s *Store) AddSubscriber(email, fullName string) (Subscriber, error) {
	token, err := newToken()
	if err != nil {
		return Subscriber{}, err
	}
	var name sql.NullString
	if fullName != "" {
		name = sql.NullString{String: fullName, Valid: true}
	}
	now := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO newsletter_subscribers (email, full_name, is_active, subscribed_at, token)
		VALUES (?, ?, 1, ?, ?)`, email, name, now, token)
	if err != nil {
		if isUniqueViolation(err) {
			return Subscriber{}, ErrDuplicateEmail
		}
		return Subscriber{}, fmt.Errorf("insert subscriber: %w", err)
	}
	id, _ := res.LastInsertId()
	return Subscriber{ID: id, Email: email, FullName: fullName, IsActive: true, SubscribedAt: now, Token: token}, nil
}

// UpdateSubscriber updates a subscriber's email and name in place, with the
// same duplicate-email mapping as AddSubscriber.
func (s *Store) UpdateSubscriber(id int64, email, fullName string) error {
	var name sql.NullString
	if fullName != "" {
		name = sql.NullString{String: fullName, Valid: true}
	}
	res, err := s.db.Exec(`UPDATE newsletter_subscribers SET email = ?, full_name = ? WHERE id = ?`, email, name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update subscriber: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateSubscriber soft-deletes a subscriber: the row is kept with
// is_active = 0 and disappears from ListActiveSubscribers.
func (s *Store) DeactivateSubscriber(id int64) error {
	res, err := s.db.Exec(`UPDATE newsletter_subscribers SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateSubscriberByToken soft-deletes via an unsubscribe link token.
func (s *Store) DeactivateSubscriberByToken(token string) (bool, error) {
	res, err := s.db.Exec(`UPDATE newsletter_subscribers SET is_active = 0 WHERE token = ?`, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetSubscriber returns a subscriber by id regardless of active state.
func (s *Store) GetSubscriber(id int64) (Subscriber, error) {
	row := s.db.QueryRow(`SELECT `+subscriberColumns+` FROM newsletter_subscribers WHERE id = ?`, id)
	return scanSubscriber(row)
}

// ListActiveSubscribers returns all active subscribers ordered by signup time.
func (s *Store) ListActiveSubscribers() ([]Subscriber, error) {
	rows, err := s.db.Query(`SELECT ` + subscriberColumns + ` FROM newsletter_subscribers WHERE is_active = 1 ORDER BY subscribed_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// --- Images ---

// SaveImage stores metadata for a processed upload.
func (s *Store) SaveImage(img Image) error {
	_, err := s.db.Exec(`INSERT INTO images (filename, original_name, width, height, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		img.Filename, img.OriginalName, img.Width, img.Height, img.Size, img.UploadedAt)
	return err
}

// ListImages returns all uploaded images, newest first.
func (s *Store) ListImages() ([]Image, error) {
	rows, err := s.db.Query(`SELECT filename, original_name, width, height, size, uploaded_at
		FROM images ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.Filename, &img.OriginalName, &img.Width, &img.Height, &img.Size, &img.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// DeleteImage removes image metadata by filename.
func (s *Store) DeleteImage(filename string) error {
	_, err := s.db.Exec(`DELETE FROM images WHERE filename = ?`, filename)
	return err
}

// Subscribe handles public self-signup. A previously removed subscriber with
// the same email is reactivated instead of reporting a duplicate.
func (s *Store) Subscribe(email, fullName string) (Subscriber, error) {
	sub, err := s.AddSubscriber(email, fullName)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, ErrDuplicateEmail) {
		return Subscriber{}, err
	}
	row := s.db.QueryRow(`SELECT `+subscriberColumns+` FROM newsletter_subscribers WHERE email = ?`, email)
	existing, scanErr := scanSubscriber(row)
	if scanErr != nil {
		return Subscriber{}, scanErr
	}
	if existing.IsActive {
		return Subscriber{}, ErrDuplicateEmail
	}
	if _, err := s.db.Exec(`UPDATE newsletter_subscribers SET is_active = 1 WHERE id = ?`, existing.ID); err != nil {
		return Subscriber{}, err
	}
	existing.IsActive = true
	return existing, nil
}
