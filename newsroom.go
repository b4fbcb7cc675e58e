// Package newsroom is a newsletter service built with Go, Echo, and SQLite.
// It drives the publication workflow for a small practice: generate a draft,
// publish or schedule it, email subscribers, and watch the numbers come in
// on the admin dashboard.
package newsroom

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
)

// App is the central newsroom application. It wires together the store,
// workflow, generator, mailer, middleware, and routes.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Store     *Store
	Workflow  *Workflow
	Generator ContentGenerator

	dispatcher    Dispatcher
	loginLimiter  *RateLimiter
	trackLimiter  *RateLimiter
	schedulerOff  bool
	stopScheduler func()
	customRoutes  []func(*App)
	staticDir     string
}

// New creates a newsroom App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start initializes the database, workflow, middleware, routes, and the
// scheduled-publication ticker, then starts the server.
func (a *App) Start() error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("newsroom: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("newsroom: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("newsroom: init store: %w", err)
	}
	a.Store = store

	if err := InitSalt(store); err != nil {
		return fmt.Errorf("newsroom: init salt: %w", err)
	}

	if a.Generator == nil {
		a.Generator = NewRemoteGenerator(a.Config.GeneratorURL, a.Config.GeneratorAPIKey, a.Config.GeneratorTimeout)
	}
	if a.dispatcher == nil {
		a.dispatcher = NewMailer(store, a.Config.SMTP, a.Config.Name, a.Config.URL)
	}
	a.Workflow = NewWorkflow(store, a.dispatcher)

	a.loginLimiter = NewRateLimiter(5, time.Minute)
	a.trackLimiter = NewRateLimiter(60, time.Minute)

	if !a.schedulerOff {
		a.stopScheduler = a.Workflow.StartScheduler(a.Config.SchedulerInterval)
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}

	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Uploaded images and static assets
	e.Static("/public", a.staticDir)

	// Public JSON API
	e.GET("/api/newsletters", a.handleNewsletterList)
	e.GET("/api/newsletters/:id", a.handleNewsletterGet)
	e.POST("/api/subscribe", a.handleSubscribe)
	e.POST("/api/track/view/:id", a.handleTrackView)

	// Email link endpoints
	e.GET("/t/open/:token/", a.handleOpenPixel)
	e.GET("/unsubscribe/:token/", a.handleUnsubscribe)

	// Admin session
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	// Admin JSON API
	admin := e.Group("/admin/api", requireAdmin)
	admin.GET("/options", handleGenerateOptions)
	admin.POST("/generate", a.handleGenerate)
	admin.POST("/newsletters", a.handlePublish)
	admin.POST("/newsletters/sample", a.handlePublishSample)
	admin.POST("/newsletters/:id/resend", a.handleResend)
	admin.GET("/dashboard", a.handleDashboard)
	admin.GET("/topics", a.handleTopics)
	admin.GET("/subscribers", a.handleSubscriberList)
	admin.POST("/subscribers", a.handleSubscriberAdd)
	admin.PUT("/subscribers/:id", a.handleSubscriberUpdate)
	admin.DELETE("/subscribers/:id", a.handleSubscriberDelete)
	admin.GET("/images", a.handleImageList)
	admin.POST("/images/upload", a.handleImageUpload)
	admin.DELETE("/images/:filename", a.handleImageDelete)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopScheduler != nil {
		a.stopScheduler()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("newsroom: required environment variable %s is not set", key)
	}
	return v
}
