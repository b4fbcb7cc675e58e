package newsroom

import (
	"context"
	"testing"
	"time"
)

func insertTestEmailLogs(t *testing.T, s *Store, newsletterID int64, sent, opened, failed int) {
	t.Helper()
	add := func(status string, count int) {
		for i := 0; i < count; i++ {
			token, err := newToken()
			if err != nil {
				t.Fatalf("newToken failed: %v", err)
			}
			if err := s.InsertEmailLog(&EmailLog{
				NewsletterID: newsletterID,
				Recipient:    token + "@example.com",
				Status:       status,
				Token:        token,
				CreatedAt:    time.Now().UTC(),
			}); err != nil {
				t.Fatalf("InsertEmailLog failed: %v", err)
			}
		}
	}
	add(EmailStatusSent, sent)
	add(EmailStatusOpened, opened)
	add(EmailStatusFailed, failed)
}

func TestLoadDashboardAggregates(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	a := publishTestNewsletter(t, s, "A", "Wellness Tips")
	b := publishTestNewsletter(t, s, "B", "Practice News")

	// A: 3 views from 2 visitors, 30s each; average lands on 30.
	for _, v := range []struct {
		visitor string
		dur     int
	}{{"v1", 30}, {"v1", 30}, {"v2", 30}} {
		if err := s.RecordView(a.ID, v.visitor, v.dur); err != nil {
			t.Fatalf("RecordView failed: %v", err)
		}
	}
	// B: 1 view, 50s; average 50.
	if err := s.RecordView(b.ID, "v3", 50); err != nil {
		t.Fatalf("RecordView failed: %v", err)
	}

	// A: 2 sent, 1 opened (sent total 3). B: 1 sent, 1 failed.
	insertTestEmailLogs(t, s, a.ID, 2, 1, 0)
	insertTestEmailLogs(t, s, b.ID, 1, 0, 1)

	d, err := s.LoadDashboard(context.Background())
	if err != nil {
		t.Fatalf("LoadDashboard failed: %v", err)
	}

	stats := d.Stats
	if stats.TotalNewsletters != 2 {
		t.Errorf("TotalNewsletters = %d, want 2", stats.TotalNewsletters)
	}
	if stats.TotalViews != 4 {
		t.Errorf("TotalViews = %d, want 4", stats.TotalViews)
	}
	if stats.TotalUniqueViews != 3 {
		t.Errorf("TotalUniqueViews = %d, want 3", stats.TotalUniqueViews)
	}
	if stats.TotalSent != 4 {
		t.Errorf("TotalSent = %d, want 4", stats.TotalSent)
	}
	if stats.TotalOpened != 1 {
		t.Errorf("TotalOpened = %d, want 1", stats.TotalOpened)
	}
	if stats.TotalFailed != 1 {
		t.Errorf("TotalFailed = %d, want 1", stats.TotalFailed)
	}
	// 1 opened of 4 sent.
	if stats.OpenRate != "25.0" {
		t.Errorf("OpenRate = %q, want \"25.0\"", stats.OpenRate)
	}
	// Mean of per-newsletter averages: (30 + 50) / 2 = 40.
	if stats.AvgEngagementTime != 40 {
		t.Errorf("AvgEngagementTime = %d, want 40", stats.AvgEngagementTime)
	}

	if len(d.Newsletters) != 2 {
		t.Fatalf("expected 2 dashboard rows, got %d", len(d.Newsletters))
	}
	for _, row := range d.Newsletters {
		if row.Analytics.NewsletterID != row.Newsletter.ID {
			t.Errorf("row %d carries analytics for %d", row.Newsletter.ID, row.Analytics.NewsletterID)
		}
	}
}

func TestLoadDashboardTotalsAcrossThreeNewsletters(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	seed := []struct {
		views, avg int
	}{{10, 5}, {20, 10}, {30, 15}}
	for i, sd := range seed {
		n := publishTestNewsletter(t, s, string(rune('A'+i)), "Staff Updates")
		if _, err := s.db.Exec(`UPDATE newsletter_analytics SET views = ?, average_engagement_time = ? WHERE newsletter_id = ?`,
			sd.views, sd.avg, n.ID); err != nil {
			t.Fatalf("seed analytics: %v", err)
		}
	}

	d, err := s.LoadDashboard(context.Background())
	if err != nil {
		t.Fatalf("LoadDashboard failed: %v", err)
	}
	if d.Stats.TotalViews != 60 {
		t.Errorf("TotalViews = %d, want 60", d.Stats.TotalViews)
	}
	if d.Stats.AvgEngagementTime != 10 {
		t.Errorf("AvgEngagementTime = %d, want 10", d.Stats.AvgEngagementTime)
	}
}

func TestLoadDashboardEmpty(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	d, err := s.LoadDashboard(context.Background())
	if err != nil {
		t.Fatalf("LoadDashboard failed: %v", err)
	}
	if d.Stats.TotalNewsletters != 0 {
		t.Errorf("TotalNewsletters = %d, want 0", d.Stats.TotalNewsletters)
	}
	if d.Stats.OpenRate != "0.0" {
		t.Errorf("OpenRate = %q, want \"0.0\" when nothing was sent", d.Stats.OpenRate)
	}
	if d.Stats.AvgEngagementTime != 0 {
		t.Errorf("AvgEngagementTime = %d, want 0", d.Stats.AvgEngagementTime)
	}
}

func TestOpenRateFormatting(t *testing.T) {
	cases := []struct {
		opened, sent int
		want         string
	}{
		{0, 0, "0.0"},
		{0, 5, "0.0"},
		{2, 3, "66.7"},
		{1, 2, "50.0"},
		{3, 3, "100.0"},
	}
	for _, tc := range cases {
		if got := openRate(tc.opened, tc.sent); got != tc.want {
			t.Errorf("openRate(%d, %d) = %q, want %q", tc.opened, tc.sent, got, tc.want)
		}
	}
}

func TestAggregateAveragesPerNewsletterMeans(t *testing.T) {
	rows := []NewsletterRow{
		{Analytics: Analytics{AverageEngagementTime: 10}},
		{Analytics: Analytics{AverageEngagementTime: 15}},
		{Analytics: Analytics{AverageEngagementTime: 16}},
	}
	stats := aggregate(rows)
	// (10 + 15 + 16) / 3 = 13.67, rounds to 14.
	if stats.AvgEngagementTime != 14 {
		t.Errorf("AvgEngagementTime = %d, want 14", stats.AvgEngagementTime)
	}
}
