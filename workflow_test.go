package newsroom

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeDispatcher records dispatch calls and optionally fails.
type fakeDispatcher struct {
	calls []int64
	err   error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, n Newsletter) error {
	f.calls = append(f.calls, n.ID)
	return f.err
}

func setupTestWorkflow(t *testing.T) (*Workflow, *Store, *fakeDispatcher, func()) {
	t.Helper()
	s, cleanup := setupTestStore(t)
	d := &fakeDispatcher{}
	return NewWorkflow(s, d), s, d, cleanup
}

var testProfile = AdminProfile{ID: "admin", Name: "The Practice Team"}

func TestPublishImmediateWithEmail(t *testing.T) {
	w, s, d, cleanup := setupTestWorkflow(t)
	defer cleanup()

	res, err := w.Publish(context.Background(), testProfile, Draft{
		Title:    "Spring Update",
		Content:  "<p>hello</p>",
		Excerpt:  "A spring update",
		Category: "Practice News",
	}, PublishOptions{SendEmail: true})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	n := res.Newsletter
	if n.ID == 0 {
		t.Fatal("newsletter should be assigned an id")
	}
	if n.Status != StatusPublished {
		t.Errorf("Status = %q, want published", n.Status)
	}
	if n.PublishedAt == nil {
		t.Error("PublishedAt should be set")
	}
	if n.AuthorID != "admin" {
		t.Errorf("AuthorID = %q, want admin", n.AuthorID)
	}
	if !res.EmailSent {
		t.Error("EmailSent should be true")
	}
	if res.EmailErr != nil {
		t.Errorf("EmailErr should be nil, got %v", res.EmailErr)
	}
	if len(d.calls) != 1 || d.calls[0] != n.ID {
		t.Errorf("dispatcher calls = %v, want one call for %d", d.calls, n.ID)
	}

	if _, err := s.GetAnalytics(n.ID); err != nil {
		t.Errorf("published newsletter should have an analytics row: %v", err)
	}
}

func TestPublishSurvivesEmailFailure(t *testing.T) {
	w, s, d, cleanup := setupTestWorkflow(t)
	defer cleanup()
	d.err = errors.New("smtp down")

	res, err := w.Publish(context.Background(), testProfile, Draft{
		Title:   "Still Published",
		Content: "<p>hi</p>",
	}, PublishOptions{SendEmail: true})
	if err != nil {
		t.Fatalf("Publish should succeed despite email failure: %v", err)
	}
	if res.EmailSent {
		t.Error("EmailSent should be false")
	}
	if res.EmailErr == nil {
		t.Fatal("EmailErr should carry the dispatch failure")
	}

	got, err := s.GetNewsletter(res.Newsletter.ID)
	if err != nil {
		t.Fatalf("GetNewsletter failed: %v", err)
	}
	if got.Status != StatusPublished {
		t.Errorf("Status = %q, want published", got.Status)
	}
}

func TestPublishWithoutEmailDoesNotDispatch(t *testing.T) {
	w, _, d, cleanup := setupTestWorkflow(t)
	defer cleanup()

	if _, err := w.Publish(context.Background(), testProfile, Draft{
		Title:   "Quiet",
		Content: "<p>quiet</p>",
	}, PublishOptions{}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(d.calls) != 0 {
		t.Errorf("dispatcher should not be called, got %v", d.calls)
	}
}

func TestPublishScheduledDefersEverything(t *testing.T) {
	w, s, d, cleanup := setupTestWorkflow(t)
	defer cleanup()

	later := time.Now().Add(time.Hour)
	res, err := w.Publish(context.Background(), testProfile, Draft{
		Title:   "Later",
		Content: "<p>later</p>",
	}, PublishOptions{Schedule: true, ScheduledFor: &later, SendEmail: true})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if res.Newsletter.Status != StatusScheduled {
		t.Errorf("Status = %q, want scheduled", res.Newsletter.Status)
	}
	if res.EmailSent {
		t.Error("scheduled newsletters must not send email yet")
	}
	if len(d.calls) != 0 {
		t.Errorf("dispatcher should not be called for scheduled publish, got %v", d.calls)
	}
	if _, err := s.GetAnalytics(res.Newsletter.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("scheduled newsletter should have no analytics row, got err=%v", err)
	}
}

func TestPublishValidation(t *testing.T) {
	w, _, _, cleanup := setupTestWorkflow(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := w.Publish(ctx, testProfile, Draft{Title: "No content"}, PublishOptions{}); err == nil {
		t.Error("expected error for missing content")
	}
	if _, err := w.Publish(ctx, testProfile, Draft{Title: "T", Content: "C"}, PublishOptions{Schedule: true}); err == nil {
		t.Error("expected error for scheduling without a date")
	}
	if _, err := w.Publish(ctx, AdminProfile{}, Draft{Title: "T", Content: "C"}, PublishOptions{}); err == nil {
		t.Error("expected error for empty profile")
	}
}

func TestPublishDefaultsCategory(t *testing.T) {
	w, _, _, cleanup := setupTestWorkflow(t)
	defer cleanup()

	res, err := w.Publish(context.Background(), testProfile, Draft{
		Title:   "Uncategorized",
		Content: "<p>c</p>",
	}, PublishOptions{})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if res.Newsletter.Category != DefaultCategory {
		t.Errorf("Category = %q, want %q", res.Newsletter.Category, DefaultCategory)
	}
}

func TestResendDispatchesEveryTime(t *testing.T) {
	w, _, d, cleanup := setupTestWorkflow(t)
	defer cleanup()

	res, err := w.Publish(context.Background(), testProfile, Draft{
		Title:   "Again",
		Content: "<p>again</p>",
	}, PublishOptions{SendEmail: true})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if err := w.Resend(context.Background(), res.Newsletter.ID); err != nil {
		t.Fatalf("Resend failed: %v", err)
	}
	if err := w.Resend(context.Background(), res.Newsletter.ID); err != nil {
		t.Fatalf("second Resend failed: %v", err)
	}
	if len(d.calls) != 3 {
		t.Errorf("expected 3 dispatches (publish plus two resends), got %d", len(d.calls))
	}
}

func TestResendUnknownNewsletter(t *testing.T) {
	w, _, _, cleanup := setupTestWorkflow(t)
	defer cleanup()

	if err := w.Resend(context.Background(), 12345); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPublishSample(t *testing.T) {
	w, s, d, cleanup := setupTestWorkflow(t)
	defer cleanup()

	res, err := w.PublishSample(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("PublishSample failed: %v", err)
	}
	if res.Newsletter.Status != StatusPublished {
		t.Errorf("Status = %q, want published", res.Newsletter.Status)
	}
	if len(d.calls) != 0 {
		t.Error("sample publish should not send email")
	}
	if _, err := s.GetAnalytics(res.Newsletter.ID); err != nil {
		t.Errorf("sample should have an analytics row: %v", err)
	}
}

func TestPromoteDueDispatchesWhenFlagged(t *testing.T) {
	w, s, d, cleanup := setupTestWorkflow(t)
	defer cleanup()

	past := time.Now().Add(-time.Minute)
	flagged, err := w.Publish(context.Background(), testProfile, Draft{
		Title:   "Flagged",
		Content: "<p>f</p>",
	}, PublishOptions{Schedule: true, ScheduledFor: &past, SendEmail: true})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	silent, err := w.Publish(context.Background(), testProfile, Draft{
		Title:   "Silent",
		Content: "<p>s</p>",
	}, PublishOptions{Schedule: true, ScheduledFor: &past})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if err := w.PromoteDue(context.Background(), time.Now()); err != nil {
		t.Fatalf("PromoteDue failed: %v", err)
	}

	if len(d.calls) != 1 || d.calls[0] != flagged.Newsletter.ID {
		t.Errorf("dispatcher calls = %v, want only the flagged newsletter %d", d.calls, flagged.Newsletter.ID)
	}
	for _, id := range []int64{flagged.Newsletter.ID, silent.Newsletter.ID} {
		got, err := s.GetNewsletter(id)
		if err != nil {
			t.Fatalf("GetNewsletter failed: %v", err)
		}
		if got.Status != StatusPublished {
			t.Errorf("newsletter %d status = %q, want published", id, got.Status)
		}
	}

	// A second pass finds nothing due.
	d.calls = nil
	if err := w.PromoteDue(context.Background(), time.Now()); err != nil {
		t.Fatalf("second PromoteDue failed: %v", err)
	}
	if len(d.calls) != 0 {
		t.Errorf("second pass should not dispatch, got %v", d.calls)
	}
}
