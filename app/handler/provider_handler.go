package handler

import (
	"net/http"

	"contentforge/internal/service"

	"github.com/gin-gonic/gin"
)

// ProviderHandler exposes provider availability and performance
type ProviderHandler struct {
	providerService *service.ProviderService
}

// NewProviderHandler creates provider handler
func NewProviderHandler(providerService *service.ProviderService) *ProviderHandler {
	return &ProviderHandler{providerService: providerService}
}

// Status reports provider health
// @Summary Provider status
// @Description Availability and observed performance for every configured provider
// @Tags providers
// @Produce json
// @Success 200 {object} service.ProviderStatusReport
// @Router /v1/providers/status [get]
func (h *ProviderHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.providerService.Status(c.Request.Context()))
}
