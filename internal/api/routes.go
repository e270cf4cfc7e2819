// Package api serves the local control surface of a running interview session.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/entities"
	"github.com/satriahrh/mockmaster-client/domain/repositories"
	"github.com/satriahrh/mockmaster-client/internal/auth"
	"github.com/satriahrh/mockmaster-client/internal/session"
)

// SessionController is the part of session.Controller the API drives
type SessionController interface {
	View() session.View
	ToggleMute() bool
	EndInterview() error
	EnableCamera(ctx context.Context) error
	DisableCamera()
	GenerateFeedback(ctx context.Context) (*entities.Feedback, error)
	ShareCode(code, language string) error
	RunCode(ctx context.Context, req *entities.CodeRunRequest, autoShare bool) (*entities.CodeRunResult, error)
}

type handler struct {
	ctrl    SessionController
	archive repositories.SessionArchive
	logger  *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, ctrl SessionController, archive repositories.SessionArchive, issuer *auth.Issuer, logger *zap.Logger) {
	h := &handler{ctrl: ctrl, archive: archive, logger: logger}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "mockmaster-client",
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s := e.Group("/session", requireController(issuer, ctrl, logger))
	s.GET("", h.getSession)
	s.POST("/mute", h.toggleMute)
	s.POST("/end", h.endInterview)
	s.POST("/camera", h.setCamera)
	s.POST("/feedback", h.generateFeedback)
	s.POST("/code/share", h.shareCode)
	s.POST("/code/run", h.runCode)

	e.GET("/sessions/archive/:id", h.getArchived, requireController(issuer, nil, logger))
}

// requireController validates the bearer token. When ctrl is set the token
// must also be bound to the running session.
func requireController(issuer *auth.Issuer, ctrl SessionController, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var token string
			authHeader := c.Request().Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = authHeader[len("Bearer "):]
			}

			if token == "" {
				logger.Warn("Control request rejected: missing token")
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "JWT token is required in Authorization header",
				})
			}

			claims, err := issuer.ValidateToken(token)
			if err != nil {
				logger.Warn("Control request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}

			if ctrl != nil && claims.SessionID != ctrl.View().SessionID {
				logger.Warn("Control request rejected: token bound to another session",
					zap.String("token_session", claims.SessionID))
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "wrong_session",
					Message: "Token is not valid for this session",
				})
			}

			c.Set("claims", claims)
			return next(c)
		}
	}
}

func (h *handler) getSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ctrl.View())
}

func (h *handler) toggleMute(c echo.Context) error {
	return c.JSON(http.StatusOK, MuteResponse{Muted: h.ctrl.ToggleMute()})
}

func (h *handler) endInterview(c echo.Context) error {
	if err := h.ctrl.EndInterview(); err != nil {
		return h.fail(c, "end_failed", err)
	}
	return c.JSON(http.StatusOK, h.ctrl.View())
}

func (h *handler) setCamera(c echo.Context) error {
	var req CameraRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	if req.Enabled {
		if err := h.ctrl.EnableCamera(c.Request().Context()); err != nil {
			return h.fail(c, "camera_failed", err)
		}
	} else {
		h.ctrl.DisableCamera()
	}
	return c.JSON(http.StatusOK, h.ctrl.View())
}

func (h *handler) generateFeedback(c echo.Context) error {
	fb, err := h.ctrl.GenerateFeedback(c.Request().Context())
	if err != nil {
		return h.fail(c, "feedback_failed", err)
	}
	return c.JSON(http.StatusOK, fb)
}

func (h *handler) shareCode(c echo.Context) error {
	var req CodeShareRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}
	if err := h.ctrl.ShareCode(req.Code, req.Language); err != nil {
		return h.fail(c, "share_failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) runCode(c echo.Context) error {
	var req CodeRunRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}
	if err := req.CodeRunRequest.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	res, err := h.ctrl.RunCode(c.Request().Context(), &req.CodeRunRequest, req.AutoShare)
	if err != nil {
		return h.fail(c, "run_failed", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *handler) getArchived(c echo.Context) error {
	if h.archive == nil {
		return h.fail(c, "archive_unavailable", domain.ErrNotFound)
	}
	record, err := h.archive.GetBySessionID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "archive_lookup_failed", err)
	}
	return c.JSON(http.StatusOK, record)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: message,
	})
}

func (h *handler) fail(c echo.Context, code string, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Control request failed", zap.String("path", c.Path()), zap.Error(err))
	} else {
		h.logger.Info("Control request rejected", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotConnected),
		errors.Is(err, domain.ErrConnectionClosed),
		errors.Is(err, domain.ErrDeviceUnavailable),
		errors.Is(err, session.ErrFeedbackInFlight):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoBackend):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
