package newsroom

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Draft is in-memory newsletter content awaiting publication. Drafts are
// never persisted: only published or scheduled rows exist in the store.
type Draft struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Excerpt  string `json:"excerpt"`
	Category string `json:"category"`
}

// PublishOptions controls how a draft becomes a row.
type PublishOptions struct {
	Schedule     bool       `json:"schedule"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	SendEmail    bool       `json:"send_email"`
}

// PublishResult reports the outcome of a publish call. EmailErr is set when
// the newsletter was published but the subsequent email dispatch failed,
// the one case where a primary success and a secondary failure are reported
// together.
type PublishResult struct {
	Newsletter Newsletter
	EmailSent  bool
	EmailErr   error
}

// Workflow drives a newsletter from draft content to a persisted, optionally
// scheduled, optionally emailed artifact.
type Workflow struct {
	store      *Store
	dispatcher Dispatcher
}

// NewWorkflow wires the publication workflow.
func NewWorkflow(store *Store, dispatcher Dispatcher) *Workflow {
	return &Workflow{store: store, dispatcher: dispatcher}
}

// Publish persists the draft. Scheduling requires a scheduled time; the
// author comes from the explicit profile argument. The newsletter row and,
// when publishing now, its zeroed analytics row are written in a single
// transaction; email dispatch happens after commit so a mail failure never
// rolls back the publication.
func (w *Workflow) Publish(ctx context.Context, profile AdminProfile, draft Draft, opts PublishOptions) (PublishResult, error) {
	if strings.TrimSpace(draft.Title) == "" || strings.TrimSpace(draft.Content) == "" {
		return PublishResult{}, fmt.Errorf("draft title and content are required")
	}
	if profile.ID == "" {
		return PublishResult{}, fmt.Errorf("admin profile is required")
	}
	if opts.Schedule && (opts.ScheduledFor == nil || opts.ScheduledFor.IsZero()) {
		return PublishResult{}, fmt.Errorf("scheduled date is required")
	}

	category := draft.Category
	if category == "" {
		category = DefaultCategory
	}

	now := time.Now().UTC()
	n := Newsletter{
		Title:     draft.Title,
		Content:   draft.Content,
		Excerpt:   draft.Excerpt,
		Category:  category,
		CreatedAt: now,
		AuthorID:  profile.ID,
	}
	if opts.Schedule {
		n.Status = StatusScheduled
		t := opts.ScheduledFor.UTC()
		n.ScheduledFor = &t
		n.SendEmail = opts.SendEmail // consulted at promotion time
	} else {
		n.Status = StatusPublished
		n.PublishedAt = &now
	}

	if err := w.store.CreateNewsletter(&n); err != nil {
		return PublishResult{}, fmt.Errorf("create newsletter: %w", err)
	}

	res := PublishResult{Newsletter: n}
	if n.Status == StatusPublished && opts.SendEmail {
		if err := w.dispatcher.Dispatch(ctx, n); err != nil {
			res.EmailErr = err
		} else {
			res.EmailSent = true
		}
	}
	return res, nil
}

// Resend re-dispatches an existing newsletter to all active subscribers.
// There is no guard against duplicate sends; every call produces a full
// fresh batch of log entries.
func (w *Workflow) Resend(ctx context.Context, id int64) error {
	n, err := w.store.GetNewsletter(id)
	if err != nil {
		return err
	}
	return w.dispatcher.Dispatch(ctx, n)
}

// sampleDraft is the fixed hand-authored newsletter used by PublishSample.
var sampleDraft = Draft{
	Title:   "A Note From the Practice",
	Excerpt: "A short update from our team, and a reminder to be kind to yourself this season.",
	Content: `<p>Hello from all of us at the practice.</p>
<p>This season we have been reflecting on how much small routines matter: a short walk,
a regular bedtime, a few minutes of quiet before the day begins. None of these replace
therapy, but they are the soil it grows in.</p>
<p>Our doors (and inboxes) are open. If you have been thinking about scheduling a
session, consider this your gentle nudge.</p>
<p>Warmly,<br>The team</p>`,
	Category: DefaultCategory,
}

// PublishSample publishes the fixed sample newsletter immediately, without
// scheduling or email options.
func (w *Workflow) PublishSample(ctx context.Context, profile AdminProfile) (PublishResult, error) {
	return w.Publish(ctx, profile, sampleDraft, PublishOptions{})
}

// StartScheduler begins promoting due scheduled newsletters to published on
// the given interval. Promotion creates the analytics row and, when the
// newsletter was stored with the send-email option, dispatches it. Returns a
// stop function.
func (w *Workflow) StartScheduler(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := w.PromoteDue(context.Background(), time.Now()); err != nil {
					log.Printf("newsroom: scheduled publication: %v", err)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

// PromoteDue publishes every scheduled newsletter whose time has passed.
// Promotion is idempotent per row; a dispatch failure is logged and does not
// block other due newsletters.
func (w *Workflow) PromoteDue(ctx context.Context, now time.Time) error {
	due, err := w.store.DueScheduled(now)
	if err != nil {
		return fmt.Errorf("list due newsletters: %w", err)
	}
	for _, n := range due {
		promoted, err := w.store.PromoteScheduled(n.ID, now)
		if err != nil {
			return fmt.Errorf("promote newsletter %d: %w", n.ID, err)
		}
		if !promoted || !n.SendEmail {
			continue
		}
		published, err := w.store.GetNewsletter(n.ID)
		if err != nil {
			return err
		}
		if err := w.dispatcher.Dispatch(ctx, published); err != nil {
			log.Printf("newsroom: newsletter %d published but email send failed: %v", n.ID, err)
		}
	}
	return nil
}
