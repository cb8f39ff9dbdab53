package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const contextKey = "session_id"

type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Middleware makes sure every request carries a session id. A missing or
// malformed cookie gets a fresh random id, which is sent back to the client.
func Middleware(cfg CookieConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if ck, err := c.Cookie(cfg.Name); err == nil {
				if _, perr := uuid.Parse(ck.Value); perr == nil {
					id = ck.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
			}

			c.SetCookie(&http.Cookie{
				Name:     cfg.Name,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cfg.TTL.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})
			c.Set(contextKey, id)
			return next(c)
		}
	}
}

// IDFromContext returns the session id set by Middleware.
func IDFromContext(c echo.Context) string {
	id, _ := c.Get(contextKey).(string)
	return id
}
