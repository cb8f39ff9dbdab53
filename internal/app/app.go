// Package app assembles the HTTP server: services over the record store, the
// event bus and its subscribers, middleware and routes.
package app

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/bloodbank/donorflow/internal/config"
	"github.com/bloodbank/donorflow/internal/domain/donor"
	"github.com/bloodbank/donorflow/internal/domain/eligibility"
	"github.com/bloodbank/donorflow/internal/domain/medicalhistory"
	"github.com/bloodbank/donorflow/internal/domain/physicalexam"
	"github.com/bloodbank/donorflow/internal/domain/screening"
	"github.com/bloodbank/donorflow/internal/domain/staff"
	"github.com/bloodbank/donorflow/internal/domain/workflow"
	"github.com/bloodbank/donorflow/internal/platform/auth"
	"github.com/bloodbank/donorflow/internal/platform/datastore"
	"github.com/bloodbank/donorflow/internal/platform/events"
	"github.com/bloodbank/donorflow/internal/platform/middleware"
	"github.com/bloodbank/donorflow/internal/platform/session"
	"github.com/bloodbank/donorflow/internal/platform/websocket"
)

// New wires the intake workflow over store and sessions and returns the echo
// instance with every route registered.
func New(cfg *config.Config, store datastore.Store, sessions session.Store, signingKey []byte, logger zerolog.Logger) (*echo.Echo, error) {
	bus := events.NewBus(logger)
	hub := websocket.NewHub(logger)

	donors := donor.NewService(donor.NewRepository(store))
	screenings := screening.NewService(screening.NewRepository(store), logger)
	medicalHistory := medicalhistory.NewService(medicalhistory.NewRepository(store), logger)
	physicalExams := physicalexam.NewService(physicalexam.NewRepository(store), logger)
	elig := eligibility.NewService(store, logger)

	workflow.NewDownstreamResetter(screenings, physicalExams, workflow.ResetterFunc(elig.ResetCollection), logger).Subscribe(bus)
	bus.Subscribe(events.Any, "websocket", hub.Forward())

	loader := workflow.NewLoader(donors, screenings, medicalHistory, physicalExams, elig, logger)
	engine := workflow.NewEngine(workflow.Deps{
		Donors:          donors,
		Screenings:      screenings,
		MedicalHistory:  medicalHistory,
		PhysicalExams:   physicalExams,
		Eligibility:     elig,
		Staff:           staff.NewDirectory(store),
		Bus:             bus,
		Loader:          loader,
		DefaultReferrer: cfg.DefaultReferrer,
	}, logger)

	views, err := workflow.NewViews()
	if err != nil {
		return nil, fmt.Errorf("parse views: %w", err)
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(session.Middleware(session.CookieConfig{
		Name:   cfg.SessionCookie,
		TTL:    cfg.SessionTTL,
		Secure: cfg.SessionSecure,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth middleware
	jwtCfg := auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: signingKey}
	authMW := auth.JWTMiddleware(jwtCfg)
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtCfg)
	}
	app := e.Group("", authMW, middleware.RequestTimeout(cfg.RequestTimeout))
	workflow.NewHandler(engine, workflow.NewSessionStore(sessions), loader, views, logger).RegisterRoutes(app)

	// Websocket connections outlive any request deadline.
	live := e.Group("", authMW)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(live)

	return e, nil
}
