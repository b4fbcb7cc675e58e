package newsroom

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
)

// salt holds the per-installation random salt for visitor hashing, protected
// by sync.Once.
var salt struct {
	once  sync.Once
	value string
}

// InitSalt loads or generates a persistent salt for visitor hashing.
// Must be called once at startup before any requests are served.
func InitSalt(store *Store) error {
	var initErr error
	salt.once.Do(func() {
		s, err := store.GetSetting("hash_salt")
		if err != nil {
			initErr = fmt.Errorf("read hash salt: %w", err)
			return
		}
		if s == "" {
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				initErr = fmt.Errorf("generate salt: %w", err)
				return
			}
			s = hex.EncodeToString(b)
			if err := store.SetSetting("hash_salt", s); err != nil {
				initErr = fmt.Errorf("store hash salt: %w", err)
				return
			}
		}
		salt.value = s
	})
	return initErr
}

func getSalt() string {
	return salt.value
}

// GenerateVisitorID creates a salted visitor fingerprint from IP and
// User-Agent. The raw IP is never stored.
func GenerateVisitorID(ip, userAgent string) string {
	h := sha256.New()
	h.Write([]byte(getSalt() + ip + "|" + userAgent))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// trackRequest is the beacon payload sent when a reader views a newsletter.
type trackRequest struct {
	DurationSec int `json:"duration_sec"`
}

const maxDurationSec = 86400 // 24 hours

// handleTrackView records one newsletter view. Visitors are deduplicated by
// salted fingerprint; repeat views still raise the total count and add
// engagement time.
func (a *App) handleTrackView(c echo.Context) error {
	if !a.trackLimiter.Allow(c.RealIP()) {
		return c.NoContent(http.StatusTooManyRequests)
	}
	if c.Request().Header.Get("DNT") == "1" {
		return c.NoContent(http.StatusNoContent)
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid newsletter id")
	}

	var req trackRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request")
	}
	if req.DurationSec < 0 || req.DurationSec > maxDurationSec {
		return c.String(http.StatusBadRequest, "Invalid request")
	}

	visitorID := GenerateVisitorID(c.RealIP(), c.Request().UserAgent())
	if err := a.Store.RecordView(id, visitorID, req.DurationSec); err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		c.Logger().Errorf("record view: %v", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// openPixel is a transparent 1x1 GIF.
var openPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// handleOpenPixel marks an email log entry opened by its tracking token and
// always answers with the pixel, so mail clients never see an error.
func (a *App) handleOpenPixel(c echo.Context) error {
	token := c.Param("token")
	if token != "" {
		if _, err := a.Store.MarkEmailOpened(token); err != nil {
			c.Logger().Errorf("mark email opened: %v", err)
		}
	}
	return c.Blob(http.StatusOK, "image/gif", openPixel)
}

// handleUnsubscribe deactivates a subscriber via their emailed link.
func (a *App) handleUnsubscribe(c echo.Context) error {
	ok, err := a.Store.DeactivateSubscriberByToken(c.Param("token"))
	if err != nil {
		return err
	}
	if !ok {
		return c.HTML(http.StatusNotFound, "<p>This unsubscribe link is no longer valid.</p>")
	}
	return c.HTML(http.StatusOK, "<p>You have been unsubscribed. We are sorry to see you go.</p>")
}

// subscribeRequest is the public signup payload.
type subscribeRequest struct {
	Email    string `json:"email" form:"email"`
	FullName string `json:"full_name" form:"full_name"`
}

// handleSubscribe handles public newsletter signup. Previously unsubscribed
// addresses are quietly reactivated.
func (a *App) handleSubscribe(c echo.Context) error {
	if !a.trackLimiter.Allow(c.RealIP()) {
		return c.NoContent(http.StatusTooManyRequests)
	}

	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if !validEmail(req.Email) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "A valid email address is required"})
	}

	_, err := a.Store.Subscribe(req.Email, req.FullName)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "This email is already subscribed"})
		}
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"message": "Subscribed"})
}
