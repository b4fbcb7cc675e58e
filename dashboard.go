package newsroom

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// NewsletterRow is one dashboard entry: the newsletter joined with its view
// analytics and its email counts.
type NewsletterRow struct {
	Newsletter Newsletter  `json:"newsletter"`
	Analytics  Analytics   `json:"analytics"`
	Email      EmailCounts `json:"email"`
}

// DashboardStats are the aggregate numbers shown above the newsletter list.
// OpenRate is a percentage string with one decimal place, "0.0" when nothing
// has been sent. AvgEngagementTime is the rounded mean of the per-newsletter
// averages, not a weighted average over all views.
type DashboardStats struct {
	TotalNewsletters  int    `json:"total_newsletters"`
	TotalViews        int    `json:"total_views"`
	TotalUniqueViews  int    `json:"total_unique_views"`
	TotalSent         int    `json:"total_sent"`
	TotalOpened       int    `json:"total_opened"`
	TotalFailed       int    `json:"total_failed"`
	OpenRate          string `json:"open_rate"`
	AvgEngagementTime int    `json:"avg_engagement_time"`
}

// Dashboard is the admin overview payload.
type Dashboard struct {
	Stats       DashboardStats  `json:"stats"`
	Newsletters []NewsletterRow `json:"newsletters"`
}

// dashboardLimit caps how many recent newsletters the overview shows.
const dashboardLimit = 10

// LoadDashboard builds the admin overview: the most recent published
// newsletters with their analytics, email counts fetched concurrently, and
// the aggregate stats. Cancelling ctx aborts the in-flight count queries.
func (s *Store) LoadDashboard(ctx context.Context) (Dashboard, error) {
	newsletters, err := s.ListPublished(dashboardLimit)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list newsletters: %w", err)
	}

	rows := make([]NewsletterRow, len(newsletters))
	for i, n := range newsletters {
		a, err := s.GetAnalytics(n.ID)
		if err != nil {
			return Dashboard{}, fmt.Errorf("analytics for newsletter %d: %w", n.ID, err)
		}
		rows[i] = NewsletterRow{Newsletter: n, Analytics: a}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range rows {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counts, err := s.EmailLogCounts(ctx, rows[i].Newsletter.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			rows[i].Email = counts
		}(i)
	}
	wg.Wait()
	if firstErr != nil {
		return Dashboard{}, fmt.Errorf("email counts: %w", firstErr)
	}

	return Dashboard{Stats: aggregate(rows), Newsletters: rows}, nil
}

func aggregate(rows []NewsletterRow) DashboardStats {
	stats := DashboardStats{TotalNewsletters: len(rows)}
	engagementSum := 0
	for _, r := range rows {
		stats.TotalViews += r.Analytics.Views
		stats.TotalUniqueViews += r.Analytics.UniqueViews
		stats.TotalSent += r.Email.Sent
		stats.TotalOpened += r.Email.Opened
		stats.TotalFailed += r.Email.Failed
		engagementSum += r.Analytics.AverageEngagementTime
	}
	stats.OpenRate = openRate(stats.TotalOpened, stats.TotalSent)
	if len(rows) > 0 {
		stats.AvgEngagementTime = round(float64(engagementSum) / float64(len(rows)))
	}
	return stats
}

// openRate formats opened/sent as a percentage with one decimal place.
func openRate(opened, sent int) string {
	if sent == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(opened)/float64(sent)*100)
}

func round(v float64) int {
	return int(math.Round(v))
}
