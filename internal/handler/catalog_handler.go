package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/libaas-store/storefront/internal/domain"
)

// CatalogHandler serves the static catalog filter configuration
type CatalogHandler struct {
	filters domain.CatalogFilters
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{filters: domain.Catalog()}
}

// GetFilters handles GET /api/catalog/filters
func (h *CatalogHandler) GetFilters(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.filters,
	})
}
