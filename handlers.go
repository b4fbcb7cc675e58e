package newsroom

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const defaultListLimit = 20

// handleNewsletterList returns published newsletters for the public site,
// pinned first, newest first.
func (a *App) handleNewsletterList(c echo.Context) error {
	limit := defaultListLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
		limit = n
	}
	newsletters, err := a.Store.ListPublished(limit)
	if err != nil {
		return err
	}
	if newsletters == nil {
		newsletters = []Newsletter{}
	}
	return c.JSON(http.StatusOK, map[string]any{"newsletters": newsletters})
}

// handleNewsletterGet returns one newsletter. Scheduled newsletters are
// invisible to the public until they promote.
func (a *App) handleNewsletterGet(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid newsletter id"})
	}
	n, err := a.Store.GetNewsletter(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Newsletter not found"})
		}
		return err
	}
	if n.Status != StatusPublished && !IsAdmin(c) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Newsletter not found"})
	}
	return c.JSON(http.StatusOK, n)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = c.JSON(code, map[string]string{"error": "Internal server error"})
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
