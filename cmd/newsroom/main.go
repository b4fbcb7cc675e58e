package main

import (
	"log"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/quietmind/newsroom"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := newsroom.SiteConfig{
		Name:          newsroom.EnvOr("SITE_NAME", "Quiet Mind Counseling"),
		URL:           newsroom.EnvOr("SITE_URL", "http://localhost:3000"),
		Addr:          newsroom.EnvOr("LISTEN_ADDR", ":3000"),
		DatabasePath:  newsroom.EnvOr("DATABASE_PATH", "data/newsroom.db"),
		AdminPassword: newsroom.MustEnv("ADMIN_PASSWORD"),
		SessionSecret: newsroom.MustEnv("SESSION_SECRET"),
		CookieSecure:  newsroom.EnvOr("COOKIE_SECURE", "") == "true",
		AuthorID:      newsroom.EnvOr("AUTHOR_ID", "admin"),
		AuthorName:    newsroom.EnvOr("AUTHOR_NAME", "The Practice Team"),

		GeneratorURL:    newsroom.EnvOr("GENERATOR_URL", ""),
		GeneratorAPIKey: newsroom.EnvOr("GENERATOR_API_KEY", ""),

		SMTP: newsroom.SMTPConfig{
			Host:     newsroom.EnvOr("SMTP_HOST", ""),
			Port:     envInt("SMTP_PORT", 587),
			Username: newsroom.EnvOr("SMTP_USERNAME", ""),
			Password: newsroom.EnvOr("SMTP_PASSWORD", ""),
			From:     newsroom.EnvOr("SMTP_FROM", ""),
		},
	}

	if v := newsroom.EnvOr("SCHEDULER_INTERVAL", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid SCHEDULER_INTERVAL %q: %v", v, err)
		}
		cfg.SchedulerInterval = d
	}

	app := newsroom.New(cfg)
	defer app.Close()

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

func envInt(key string, fallback int) int {
	v := newsroom.EnvOr(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid %s %q: %v", key, v, err)
	}
	return n
}
