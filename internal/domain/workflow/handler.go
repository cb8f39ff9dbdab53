package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bloodbank/donorflow/internal/domain/donor"
	"github.com/bloodbank/donorflow/internal/platform/auth"
	"github.com/bloodbank/donorflow/internal/platform/session"
)

type Handler struct {
	engine   *Engine
	sessions *SessionStore
	loader   *Loader
	views    *Views
	logger   zerolog.Logger
}

func NewHandler(engine *Engine, sessions *SessionStore, loader *Loader, views *Views, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:   engine,
		sessions: sessions,
		loader:   loader,
		views:    views,
		logger:   logger.With().Str("component", "workflow_handler").Logger(),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	dashboard := auth.RequireRole(auth.RoleAdmin, auth.RoleStaff)

	forms := g.Group("/forms", dashboard)
	forms.POST("/session/donor", h.OpenDonor)
	forms.GET("/session", h.GetSession)
	forms.POST("/personal-data", h.SubmitPersonalData)
	forms.POST("/screening", h.SubmitScreening)
	forms.POST("/medical-history", h.SubmitMedicalHistory)
	forms.POST("/physical-exam", h.SubmitPhysicalExam)
	forms.POST("/declaration", h.ConfirmDeclaration)
	forms.POST("/cancel", h.Cancel)

	views := g.Group("/views", dashboard)
	views.GET("/:step", h.View)

	api := g.Group("/api/v1", dashboard)
	api.GET("/donors/:id/overview", h.GetOverview)
}

// failureBody is the reply of a form endpoint that did not succeed.
type failureBody struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	RedirectStep Step     `json:"redirect_step,omitempty"`
	Fields       []string `json:"fields,omitempty"`
	Deferred     bool     `json:"deferred,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// -- Form endpoints --

func (h *Handler) SubmitPersonalData(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return h.badRequest(c, err)
	}
	return h.run(c, SubmitPersonalData{Form: form}, "personal data")
}

func (h *Handler) SubmitScreening(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return h.badRequest(c, err)
	}
	donorID, err := formDonorID(c)
	if err != nil {
		return h.badRequest(c, err)
	}
	return h.run(c, SubmitScreening{DonorID: donorID, Form: form}, "screening")
}

func (h *Handler) SubmitMedicalHistory(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return h.badRequest(c, err)
	}
	donorID, err := formDonorID(c)
	if err != nil {
		return h.badRequest(c, err)
	}
	actor := actorOf(c)
	if err := actor.Validate(); err != nil {
		return h.respondError(c, err, "medical history")
	}
	action, err := ResolveMedicalHistoryAction(form.Get("action"), actor)
	if err != nil {
		return h.respondError(c, err, "medical history")
	}
	return h.run(c, SubmitMedicalHistory{DonorID: donorID, Action: action, Form: form}, "medical history")
}

func (h *Handler) SubmitPhysicalExam(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return h.badRequest(c, err)
	}
	donorID, err := formDonorID(c)
	if err != nil {
		return h.badRequest(c, err)
	}
	return h.run(c, SubmitPhysicalExam{DonorID: donorID, Form: form}, "physical examination")
}

func (h *Handler) ConfirmDeclaration(c echo.Context) error {
	donorID, err := formDonorID(c)
	if err != nil {
		return h.badRequest(c, err)
	}
	return h.run(c, ConfirmDeclaration{DonorID: donorID}, "declaration")
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.run(c, Cancel{}, "registration")
}

// run loads the caller's session, hands cmd to the engine and stores the
// resulting session.
func (h *Handler) run(c echo.Context, cmd Command, what string) error {
	ctx := c.Request().Context()
	sid := session.IDFromContext(c)

	sess, err := h.sessions.Load(ctx, sid)
	if err != nil {
		return h.respondError(c, err, what)
	}
	sess = captureReferrer(c, sess)

	res, next, err := h.engine.Handle(ctx, actorOf(c), sess, cmd)
	if err != nil {
		// The referrer is kept even when the command fails.
		if next.Referrer != "" {
			h.saveSession(ctx, sid, next)
		}
		return h.respondError(c, err, what)
	}
	if err := h.sessions.Save(ctx, sid, next); err != nil {
		return h.respondError(c, err, what)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) saveSession(ctx context.Context, sid string, s Session) {
	if err := h.sessions.Save(ctx, sid, s); err != nil {
		h.logger.Warn().Err(err).Msg("session not saved")
	}
}

// -- Session endpoints --

// OpenDonor starts working on an existing donor, resuming at the step its
// records call for.
func (h *Handler) OpenDonor(c echo.Context) error {
	ctx := c.Request().Context()
	sid := session.IDFromContext(c)

	donorID, err := formDonorID(c)
	if err != nil {
		return h.badRequest(c, err)
	}
	sess, err := h.sessions.Load(ctx, sid)
	if err != nil {
		return h.respondError(c, err, "session")
	}
	next, err := h.engine.Open(ctx, actorOf(c), sess, donorID, referrerOf(c))
	if err != nil {
		return h.respondError(c, err, "session")
	}
	if err := h.sessions.Save(ctx, sid, next); err != nil {
		return h.respondError(c, err, "session")
	}
	return c.JSON(http.StatusOK, &Result{
		Success: true,
		Message: "Donor opened",
		DonorID: next.DonorID,
		Step:    next.Step,
	})
}

func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.sessions.Load(c.Request().Context(), session.IDFromContext(c))
	if err != nil {
		return h.respondError(c, err, "session")
	}
	return c.JSON(http.StatusOK, sess)
}

// -- Read endpoints --

// View renders the fragment for one step. A donor_id query parameter for
// another donor opens that donor first.
func (h *Handler) View(c echo.Context) error {
	step, ok := ParseStep(c.Param("step"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown step")
	}
	ctx := c.Request().Context()
	sid := session.IDFromContext(c)
	actor := actorOf(c)
	if err := actor.Validate(); err != nil {
		return h.respondError(c, err, "view")
	}

	sess, err := h.sessions.Load(ctx, sid)
	if err != nil {
		return h.respondError(c, err, "view")
	}
	if raw := c.QueryParam("donor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid donor_id")
		}
		if id != sess.DonorID {
			if sess, err = h.engine.Open(ctx, actor, sess, id, ""); err != nil {
				return h.respondError(c, err, "view")
			}
			h.saveSession(ctx, sid, sess)
		}
	}

	var ov *Overview
	if sess.DonorID != 0 {
		if ov, err = h.loader.Load(ctx, sess.DonorID); err != nil {
			return h.respondError(c, err, "view")
		}
	}

	var buf bytes.Buffer
	if err := h.views.Render(&buf, step, h.views.Data(step, actor, sess, ov)); err != nil {
		h.logger.Error().Err(err).Str("step", string(step)).Msg("render view")
		return echo.NewHTTPError(http.StatusInternalServerError, "unable to render view")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

type overviewResponse struct {
	*Overview
	ResumeStep Step `json:"resume_step"`
	DeferredAt Step `json:"deferred_at,omitempty"`
}

func (h *Handler) GetOverview(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid donor id")
	}
	ov, err := h.loader.Load(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err, "donor records")
	}
	resp := overviewResponse{Overview: ov}
	resp.ResumeStep, resp.DeferredAt = ov.ResumeStep()
	return c.JSON(http.StatusOK, resp)
}

// -- Errors --

// respondError maps workflow errors to HTTP replies. what names the record
// for upstream failures.
func (h *Handler) respondError(c echo.Context, err error, what string) error {
	var (
		verr    *ValidationError
		missing *MissingDonorError
	)
	switch {
	case errors.As(err, &verr) && verr.Deferral():
		return c.JSON(http.StatusOK, failureBody{
			Message:  verr.Error(),
			Deferred: true,
			Warnings: verr.Messages(),
		})
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, failureBody{Message: verr.Error(), Fields: verr.Fields()})
	case errors.Is(err, ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, failureBody{Message: "Invalid role"})
	case errors.Is(err, ErrForbidden):
		return c.JSON(http.StatusForbidden, failureBody{Message: "You are not allowed to perform this action"})
	case errors.As(err, &missing):
		return c.JSON(http.StatusBadRequest, failureBody{
			Message:      fmt.Sprintf("No donor selected. Please complete %s first.", stepLabel(missing.RedirectStep)),
			RedirectStep: missing.RedirectStep,
		})
	case errors.Is(err, ErrInvalidAction):
		return c.JSON(http.StatusBadRequest, failureBody{Message: err.Error()})
	case errors.Is(err, ErrOutOfSequence), errors.Is(err, ErrLocked), errors.Is(err, donor.ErrDuplicate):
		return c.JSON(http.StatusConflict, failureBody{Message: err.Error()})
	case errors.Is(err, donor.ErrNotFound):
		return c.JSON(http.StatusNotFound, failureBody{Message: "Donor not found"})
	case errors.Is(err, ErrUpstream):
		h.logger.Error().Err(err).Str("request_id", requestID(c)).Msg("upstream store failure")
		return c.JSON(http.StatusBadGateway, failureBody{Message: fmt.Sprintf("Unable to save %s, please try again", what)})
	default:
		h.logger.Error().Err(err).Str("request_id", requestID(c)).Msg("workflow request failed")
		return c.JSON(http.StatusInternalServerError, failureBody{Message: "Internal server error"})
	}
}

func (h *Handler) badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, failureBody{Message: err.Error()})
}

func actorOf(c echo.Context) Actor {
	return ActorFromIdentity(auth.IdentityFromContext(c.Request().Context()))
}

func formDonorID(c echo.Context) (int64, error) {
	raw := strings.TrimSpace(c.FormValue("donor_id"))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid donor_id %q", raw)
	}
	return id, nil
}

func referrerOf(c echo.Context) string {
	host := c.Request().Host
	if r := localPath(c.FormValue("referrer"), host); r != "" {
		return r
	}
	return localPath(c.Request().Referer(), host)
}

// captureReferrer remembers where the registration started. An explicit
// referrer field always wins; the Referer header only fills an empty slot.
// Only paths on this server are kept.
func captureReferrer(c echo.Context, s Session) Session {
	host := c.Request().Host
	if r := localPath(c.FormValue("referrer"), host); r != "" {
		s.Referrer = r
	} else if s.Referrer == "" {
		s.Referrer = localPath(c.Request().Referer(), host)
	}
	return s
}

// localPath reduces raw to a path on this server. Relative paths are kept,
// absolute URLs only when they point at host. Anything else yields "".
func localPath(raw, host string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "" || u.Host != "" || u.User != nil {
		if host == "" || u.User != nil || !strings.EqualFold(u.Host, host) || (u.Scheme != "http" && u.Scheme != "https") {
			return ""
		}
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") || strings.Contains(u.Path, `\`) {
		return ""
	}
	local := url.URL{Path: u.Path, RawPath: u.RawPath, RawQuery: u.RawQuery}
	return local.String()
}

func requestID(c echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok {
		return id
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func stepLabel(s Step) string {
	return strings.ReplaceAll(string(s), "_", " ")
}
