package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"park_api/internal/domain"
	"park_api/internal/repository"
	"park_api/internal/service"
)

type SpotHandler struct {
	parkingService *service.ParkingService
}

func NewSpotHandler(ps *service.ParkingService) *SpotHandler {
	return &SpotHandler{parkingService: ps}
}

// POST /parking-spots
func (h *SpotHandler) RegisterSpot(c *gin.Context) {
	var dto domain.SpotCreateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	spot, err := h.parkingService.RegisterSpot(c.Request.Context(), dto)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register the spot"})
		return
	}
	c.JSON(http.StatusCreated, spot)
}

// GET /parking-spots/:code
func (h *SpotHandler) GetSpotByCode(c *gin.Context) {
	spot, err := h.parkingService.GetSpotByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "parking spot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load the parking spot"})
		return
	}
	c.JSON(http.StatusOK, spot)
}

// GET /parking-spots
func (h *SpotHandler) ListSpots(c *gin.Context) {
	spots, err := h.parkingService.ListSpots(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list parking spots"})
		return
	}
	c.JSON(http.StatusOK, spots)
}
