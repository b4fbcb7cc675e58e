package newsroom

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// profile is the admin identity stamped onto newsletters. Workflow calls take
// it explicitly instead of digging it out of the session.
func (a *App) profile() AdminProfile {
	return AdminProfile{ID: a.Config.AuthorID, Name: a.Config.AuthorName}
}

// requireAdmin guards the admin JSON API.
func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !IsAdmin(c) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
		}
		return next(c)
	}
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many login attempts. Try again later."})
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid password"})
	}
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"profile": a.profile(), "csrf_token": CsrfToken(c)})
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out"})
}

// handleGenerateOptions returns the fixed catalogs the compose form offers.
func handleGenerateOptions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"templates": Templates,
		"tones":     Tones,
		"audiences": Audiences,
	})
}

type generateParams struct {
	Topic          string `json:"topic"`
	Tone           string `json:"tone"`
	TargetAudience string `json:"target_audience"`
	Template       string `json:"template"` // template id
}

// handleGenerate produces a draft from the remote generator. Nothing is
// persisted; the draft lives in the admin's browser until publish.
func (a *App) handleGenerate(c echo.Context) error {
	var p generateParams
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	category := TemplateName(p.Template)
	content, err := a.Generator.Generate(c.Request().Context(), GenerateRequest{
		Topic:          p.Topic,
		Tone:           p.Tone,
		TargetAudience: p.TargetAudience,
		Template:       category,
	})
	if err != nil {
		c.Logger().Errorf("generate newsletter: %v", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Content generation failed: " + err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"draft":    content,
		"category": category,
	})
}

type publishParams struct {
	Draft
	PublishOptions
}

// publishResponse is the JSON shape for publish outcomes. EmailError carries
// the published-but-send-failed case.
type publishResponse struct {
	Newsletter Newsletter `json:"newsletter"`
	EmailSent  bool       `json:"email_sent"`
	EmailError string     `json:"email_error,omitempty"`
}

func (a *App) handlePublish(c echo.Context) error {
	var p publishParams
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	res, err := a.Workflow.Publish(c.Request().Context(), a.profile(), p.Draft, p.PublishOptions)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, toPublishResponse(res))
}

func (a *App) handlePublishSample(c echo.Context) error {
	res, err := a.Workflow.PublishSample(c.Request().Context(), a.profile())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, toPublishResponse(res))
}

func toPublishResponse(res PublishResult) publishResponse {
	out := publishResponse{Newsletter: res.Newsletter, EmailSent: res.EmailSent}
	if res.EmailErr != nil {
		out.EmailError = res.EmailErr.Error()
	}
	return out
}

func (a *App) handleResend(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid newsletter id"})
	}
	if err := a.Workflow.Resend(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Newsletter not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Send failed: " + err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Newsletter sent"})
}

func (a *App) handleDashboard(c echo.Context) error {
	d, err := a.Store.LoadDashboard(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("load dashboard: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, d)
}

func (a *App) handleTopics(c echo.Context) error {
	topics, err := a.Store.PopularTopics(c.Request().Context(), 5)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"topics": topics})
}

// --- Subscribers ---

type subscriberParams struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (p subscriberParams) fullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// listSubscribers returns the refreshed active list, the payload every
// mutating subscriber endpoint answers with.
func (a *App) listSubscribers(c echo.Context, status int) error {
	subs, err := a.Store.ListActiveSubscribers()
	if err != nil {
		return err
	}
	if subs == nil {
		subs = []Subscriber{}
	}
	return c.JSON(status, map[string]any{"subscribers": subs})
}

func (a *App) handleSubscriberList(c echo.Context) error {
	return a.listSubscribers(c, http.StatusOK)
}

func (a *App) handleSubscriberAdd(c echo.Context) error {
	var p subscriberParams
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if !validEmail(p.Email) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "A valid email address is required"})
	}
	if _, err := a.Store.AddSubscriber(p.Email, p.fullName()); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "This email is already subscribed"})
		}
		return err
	}
	return a.listSubscribers(c, http.StatusCreated)
}

func (a *App) handleSubscriberUpdate(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid subscriber id"})
	}
	var p subscriberParams
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if !validEmail(p.Email) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "A valid email address is required"})
	}
	if err := a.Store.UpdateSubscriber(id, p.Email, p.fullName()); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return c.JSON(http.StatusConflict, map[string]string{"error": "This email is already subscribed"})
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Subscriber not found"})
		}
		return err
	}
	return a.listSubscribers(c, http.StatusOK)
}

// handleSubscriberDelete soft-deletes: the row stays for email log history,
// the address just stops receiving newsletters.
func (a *App) handleSubscriberDelete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid subscriber id"})
	}
	if err := a.Store.DeactivateSubscriber(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Subscriber not found"})
		}
		return err
	}
	return a.listSubscribers(c, http.StatusOK)
}
