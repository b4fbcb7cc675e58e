package newsroom

import "time"

// SiteConfig holds all configuration for a newsroom deployment.
type SiteConfig struct {
	Name string // Practice/site name used in email subjects and footers
	URL  string // Canonical URL (default "http://localhost:3000")

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path (default "data/newsroom.db")

	AdminPassword string // Required: admin login password
	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	// AuthorID becomes the author reference on newsletters created through
	// the admin panel. AuthorName is used in email From headers.
	AuthorID   string
	AuthorName string

	// GeneratorURL is the remote content-generation function endpoint.
	// Empty disables the generate operation.
	GeneratorURL     string
	GeneratorAPIKey  string
	GeneratorTimeout time.Duration // default 60s

	SMTP SMTPConfig

	// SchedulerInterval is how often due scheduled newsletters are promoted
	// to published (default 1min). Zero keeps the default; the scheduler is
	// disabled with WithoutScheduler.
	SchedulerInterval time.Duration
}

// SMTPConfig configures the email dispatcher.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // From address; defaults to Username
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Newsletter"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/newsroom.db"
	}
	if c.AuthorID == "" {
		c.AuthorID = "admin"
	}
	if c.GeneratorTimeout == 0 {
		c.GeneratorTimeout = 60 * time.Second
	}
	if c.SchedulerInterval == 0 {
		c.SchedulerInterval = time.Minute
	}
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.Username
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithGenerator replaces the remote content generator, mainly for tests.
func WithGenerator(g ContentGenerator) Option {
	return func(a *App) {
		a.Generator = g
	}
}

// WithDispatcher replaces the email dispatcher, mainly for tests.
func WithDispatcher(d Dispatcher) Option {
	return func(a *App) {
		a.dispatcher = d
	}
}

// WithoutScheduler disables the scheduled-publication ticker.
func WithoutScheduler() Option {
	return func(a *App) {
		a.schedulerOff = true
	}
}

// WithCustomRoutes registers additional routes on the Echo instance before
// the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for uploaded images and static assets
// (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}
