package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/snapurl/snapurl/internal/app/model"
	"github.com/snapurl/snapurl/internal/app/repository"
	"github.com/snapurl/snapurl/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
}

// APIHandler implements the short-link management endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	router.Post("/shorturls", h.CreateShortURL)
	router.Get("/shorturls/:code", h.GetStats)
}

// CreateShortURLRequest represents the request body for creating a
// short link. A nil validity means the server default applies.
type CreateShortURLRequest struct {
	URL       string `json:"url"`
	Validity  *int   `json:"validity,omitempty"`
	Shortcode string `json:"shortcode,omitempty"`
}

// CreateShortURLResponse represents the response for creating a short link.
type CreateShortURLResponse struct {
	ShortLink string    `json:"shortLink"`
	Expiry    time.Time `json:"expiry"`
}

// CreateShortURL handles POST /shorturls
func (h *APIHandler) CreateShortURL(c *fiber.Ctx) error {
	var req CreateShortURLRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	result, err := h.linkService.Register(requestContext(c), service.RegisterInput{
		URL:             req.URL,
		ValidityMinutes: req.Validity,
		Shortcode:       req.Shortcode,
	})
	if err != nil {
		return h.registerError(c, err)
	}

	// The short link is qualified with the host this request arrived on.
	return c.Status(fiber.StatusCreated).JSON(CreateShortURLResponse{
		ShortLink: c.BaseURL() + "/" + result.Shortcode,
		Expiry:    result.ExpiryAt,
	})
}

func (h *APIHandler) registerError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrInvalidValidity),
		errors.Is(err, service.ErrInvalidShortcode):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrShortcodeTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrGenerationExhausted):
		h.logger.Error("shortcode generation exhausted", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to generate shortcode",
		})
	default:
		h.logger.Error("failed to create short link", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
}

// StatsResponse represents a link's metadata plus its click history.
type StatsResponse struct {
	Shortcode   string          `json:"shortcode"`
	OriginalURL string          `json:"originalUrl"`
	CreatedAt   time.Time       `json:"createdAt"`
	ExpiryAt    time.Time       `json:"expiryAt"`
	TotalClicks int64           `json:"totalClicks"`
	Clicks      []ClickResponse `json:"clicks"`
}

// ClickResponse represents one click event in a stats response.
type ClickResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Referrer  string    `json:"referrer,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Location  string    `json:"location"`
}

// GetStats handles GET /shorturls/:code. Stats stay readable after
// expiry until the sweeper removes the record.
func (h *APIHandler) GetStats(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "shortcode required",
		})
	}

	stats, err := h.linkService.Stats(requestContext(c), code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeRequired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "shortcode required",
			})
		case errors.Is(err, repository.ErrLinkNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "not found",
			})
		default:
			h.logger.Error("failed to load stats", zap.Error(err), zap.String("code", code))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	return c.JSON(statsResponse(stats))
}

func statsResponse(stats *service.LinkStats) StatsResponse {
	clicks := make([]ClickResponse, len(stats.Clicks))
	for i, click := range stats.Clicks {
		clicks[i] = clickResponse(click)
	}
	return StatsResponse{
		Shortcode:   stats.Shortcode,
		OriginalURL: stats.OriginalURL,
		CreatedAt:   stats.CreatedAt,
		ExpiryAt:    stats.ExpiryAt,
		TotalClicks: stats.TotalClicks,
		Clicks:      clicks,
	}
}

func clickResponse(click model.ClickEvent) ClickResponse {
	return ClickResponse{
		Timestamp: click.Timestamp,
		Referrer:  click.Referrer,
		IP:        click.IP,
		Location:  click.Location,
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
