package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	RoleIDKey    contextKey = "role_id"
	StaffRoleKey contextKey = "staff_role"
)

// Claims carries the dashboard identity: the users.user_id as subject, the
// numeric role id and, for staff, the sub-role.
type Claims struct {
	jwt.RegisteredClaims
	RoleID    int    `json:"role_id"`
	StaffRole string `json:"staff_role,omitempty"`
}

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
}

// Identity is what the middleware stores on the request context.
type Identity struct {
	UserID    string
	RoleID    int
	StaffRole string
}

func parseBearer(c echo.Context, cfg JWTConfig) (*Claims, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	return claims, nil
}

func setIdentity(c echo.Context, id Identity) {
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
}

// JWTMiddleware validates HS256 bearer tokens issued by the dashboard.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := parseBearer(c, cfg)
			if err != nil {
				return err
			}
			setIdentity(c, Identity{UserID: claims.Subject, RoleID: claims.RoleID, StaffRole: claims.StaffRole})
			return next(c)
		}
	}
}

// DevAuthMiddleware lets unauthenticated requests through as the admin user
// "1". A request that does send a token still has it validated.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	strict := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		validated := strict(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				return validated(c)
			}
			setIdentity(c, Identity{UserID: "1", RoleID: RoleAdmin})
			return next(c)
		}
	}
}

// IssueToken signs a token for the given identity. Used by tests and local tooling.
func IssueToken(cfg JWTConfig, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		RoleID:    id.RoleID,
		StaffRole: id.StaffRole,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id.UserID)
	ctx = context.WithValue(ctx, RoleIDKey, id.RoleID)
	ctx = context.WithValue(ctx, StaffRoleKey, id.StaffRole)
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RoleIDFromContext(ctx context.Context) int {
	role, _ := ctx.Value(RoleIDKey).(int)
	return role
}

func StaffRoleFromContext(ctx context.Context) string {
	sr, _ := ctx.Value(StaffRoleKey).(string)
	return sr
}

func IdentityFromContext(ctx context.Context) Identity {
	return Identity{
		UserID:    UserIDFromContext(ctx),
		RoleID:    RoleIDFromContext(ctx),
		StaffRole: StaffRoleFromContext(ctx),
	}
}
