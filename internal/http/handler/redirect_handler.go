package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/snapurl/snapurl/internal/app/repository"
	"github.com/snapurl/snapurl/internal/app/service"
	infraPrometheus "github.com/snapurl/snapurl/internal/infra/prometheus"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by the redirect handler.
type RedirectDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
}

// RedirectHandler implements the redirect path.
type RedirectHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:      logger,
		linkService: deps.LinkService,
	}
}

// Register wires redirect routes onto the provided router. The catch-all
// code route must be registered after the API routes.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/:code", h.Redirect)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "SnapURL",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Redirect handles GET /:code and issues a 302 to the original URL,
// recording the click on the way through.
func (h *RedirectHandler) Redirect(c *fiber.Ctx) error {
	code := c.Params("code")
	click := service.ClickContext{
		Referrer: c.Get(fiber.HeaderReferer),
		IP:       c.IP(),
	}

	target, err := h.linkService.Resolve(requestContext(c), code, click)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeRequired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "shortcode required",
			})
		case errors.Is(err, repository.ErrLinkNotFound):
			infraPrometheus.Redirects.WithLabelValues(infraPrometheus.OutcomeNotFound).Inc()
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "not found",
			})
		case errors.Is(err, service.ErrLinkExpired):
			infraPrometheus.Redirects.WithLabelValues(infraPrometheus.OutcomeExpired).Inc()
			return c.Status(fiber.StatusGone).JSON(fiber.Map{
				"error": "short link expired",
			})
		default:
			infraPrometheus.Redirects.WithLabelValues(infraPrometheus.OutcomeError).Inc()
			h.logger.Error("failed to resolve short link", zap.Error(err), zap.String("code", code))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	infraPrometheus.Redirects.WithLabelValues(infraPrometheus.OutcomeRedirect).Inc()
	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", target))
	return c.Redirect(target, fiber.StatusFound)
}
