package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets response headers for the form and fragment endpoints.
// Fragments are injected into dashboard modals on the same origin, so framing
// and scripts are limited to 'self' rather than denied outright.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("X-XSS-Protection", "0")
			h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'self'")
			h.Set("Referrer-Policy", "same-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// Donor answers must not be cached by intermediaries.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
