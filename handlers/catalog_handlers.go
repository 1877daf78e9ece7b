package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"novytek/api/models"
	"novytek/api/store"
)

type CatalogHandlers struct {
	Catalog store.CatalogStore
	logger  *zap.Logger
}

func NewCatalogHandlers(catalog store.CatalogStore, logger *zap.Logger) *CatalogHandlers {
	return &CatalogHandlers{Catalog: catalog, logger: logger.Named("catalog")}
}

// ListServices serves GET /services?category=<slug|all>&q=<text>.
func (h *CatalogHandlers) ListServices(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	services, err := h.Catalog.ListServices(ctx)
	if err != nil {
		h.logger.Error("failed to list services", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load services", "retryable": true})
		return
	}

	filtered := models.FilterServices(services, c.DefaultQuery("category", models.AllCategories), c.Query("q"))
	for i := range filtered {
		filtered[i].PriceDisplay = filtered[i].FormatPrice()
	}
	c.JSON(http.StatusOK, filtered)
}

func (h *CatalogHandlers) ListCategories(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	categories, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		h.logger.Error("failed to list service categories", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load service categories", "retryable": true})
		return
	}
	if categories == nil {
		categories = []models.ServiceCategory{}
	}
	c.JSON(http.StatusOK, categories)
}
