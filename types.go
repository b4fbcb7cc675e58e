package newsroom

import "time"

// Newsletter status values. A draft only exists in memory between generation
// and publish; the store only ever holds scheduled or published rows.
const (
	StatusScheduled = "scheduled"
	StatusPublished = "published"
)

// Email log status values. "opened" implies the mail was sent, so sent counts
// are computed as sent+opened.
const (
	EmailStatusSent   = "sent"
	EmailStatusOpened = "opened"
	EmailStatusFailed = "failed"
)

// Newsletter is the core content type stored in SQLite.
type Newsletter struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Excerpt      string     `json:"excerpt,omitempty"`
	Status       string     `json:"status"`
	Category     string     `json:"category"`
	IsPinned     bool       `json:"is_pinned"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	AuthorID     string     `json:"author_id"`
	SendEmail    bool       `json:"-"` // for scheduled rows: dispatch on promotion
}

// Analytics holds the read counters for one published newsletter.
// A zeroed row is created in the same transaction that publishes the
// newsletter; scheduled newsletters have no row until they promote.
type Analytics struct {
	NewsletterID          int64 `json:"newsletter_id"`
	Views                 int   `json:"views"`
	UniqueViews           int   `json:"unique_views"`
	TotalEngagementTime   int   `json:"total_engagement_time"`
	AverageEngagementTime int   `json:"average_engagement_time"`
}

// EmailLog records one subscriber's delivery status for one send batch.
type EmailLog struct {
	ID           int64     `json:"id"`
	NewsletterID int64     `json:"newsletter_id"`
	Recipient    string    `json:"recipient"`
	Status       string    `json:"status"`
	Token        string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// EmailCounts is the reduction of a newsletter's email log entries.
// Sent includes opened entries; Failed is disjoint.
type EmailCounts struct {
	Sent   int `json:"sent"`
	Opened int `json:"opened"`
	Failed int `json:"failed"`
}

// Subscriber is a newsletter recipient. Removal is a soft delete: IsActive
// flips to false and the row is kept.
type Subscriber struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	IsActive     bool      `json:"is_active"`
	SubscribedAt time.Time `json:"subscribed_at"`
	Token        string    `json:"-"` // unsubscribe token
}

// AdminProfile identifies the admin authoring a newsletter. It is passed
// explicitly into workflow calls rather than read from ambient state.
type AdminProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TopicStat is one entry in the popular-topics ranking.
type TopicStat struct {
	Topic     string `json:"topic"`
	ViewCount int    `json:"view_count"`
}

// Image holds metadata for a processed upload used inside newsletter bodies.
type Image struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int    `json:"size"`
	UploadedAt   string `json:"uploaded_at"`
}
