package handler

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/libaas-store/storefront/internal/domain"
	"github.com/rs/zerolog"
)

// Advertised to clients; not enforced here
const (
	rateLimitLimit  = "10"
	rateLimitWindow = "1m"
)

// NewsletterHandler handles the newsletter subscription endpoint
type NewsletterHandler struct {
	service domain.NewsletterService
	log     zerolog.Logger
}

// NewNewsletterHandler creates a new newsletter handler
func NewNewsletterHandler(service domain.NewsletterService, log zerolog.Logger) *NewsletterHandler {
	return &NewsletterHandler{
		service: service,
		log:     log.With().Str("component", "newsletter-handler").Logger(),
	}
}

// subscribeRequest keeps email untyped so a non-string value is a format error rather than a decode failure
type subscribeRequest struct {
	Email interface{} `json:"email"`
}

// requestEmail returns the email as a string. Missing, null, false, 0 and "" all count as absent
// and come back as "", which the service reports as ErrEmailRequired.
func requestEmail(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case bool:
		return "", !v
	case float64:
		return "", v == 0
	default:
		return "", false
	}
}

// Subscribe handles POST /api/newsletter/subscribe
func (h *NewsletterHandler) Subscribe(c *fiber.Ctx) error {
	// A JSON null body decodes to a nil pointer and is as unusable as malformed JSON
	var req *subscribeRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req == nil {
		h.log.Warn().Err(err).Msg("unreadable subscription body")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "An unexpected error occurred",
		})
	}

	email, ok := requestEmail(req.Email)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid email format",
		})
	}

	subscriber, err := h.service.Subscribe(c.UserContext(), email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailRequired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Email is required",
			})
		case errors.Is(err, domain.ErrInvalidEmail):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid email format",
			})
		case errors.Is(err, domain.ErrDuplicateEmail):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"error":   "This email is already subscribed to our newsletter",
			})
		default:
			h.log.Error().Err(err).Msg("newsletter subscription failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to subscribe. Please try again later.",
			})
		}
	}

	c.Set("X-RateLimit-Limit", rateLimitLimit)
	c.Set("X-RateLimit-Window", rateLimitWindow)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Successfully subscribed to newsletter!",
		"data":    subscriber,
	})
}

// MethodNotAllowed answers every other method on the subscription path
func (h *NewsletterHandler) MethodNotAllowed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAllow, fiber.MethodPost)
	return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
		"success": false,
		"error":   "Method not allowed",
	})
}
