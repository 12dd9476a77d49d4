package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"park_api/internal/billing"
	"park_api/internal/domain"
	"park_api/internal/repository"
	"park_api/internal/service"
)

type ParkingSessionHandler struct {
	parkingService *service.ParkingService
}

func NewParkingSessionHandler(ps *service.ParkingService) *ParkingSessionHandler {
	return &ParkingSessionHandler{parkingService: ps}
}

// POST /parking-sessions/check-in
func (h *ParkingSessionHandler) CheckIn(c *gin.Context) {
	var dto domain.CheckInDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	session, err := h.parkingService.CheckIn(c.Request.Context(), dto)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrNoFreeSpot):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrDuplicateEntry):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not check the vehicle in"})
		}
		return
	}
	c.Header("Location", "/api/v1/parking-sessions/"+session.Receipt)
	c.JSON(http.StatusCreated, session)
}

// PUT /parking-sessions/check-out/:receipt
func (h *ParkingSessionHandler) CheckOut(c *gin.Context) {
	receipt := c.Param("receipt")

	session, err := h.parkingService.CheckOut(c.Request.Context(), receipt)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrSessionClosed):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, billing.ErrInvalidTimeRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not check the vehicle out"})
		}
		return
	}
	c.JSON(http.StatusOK, session)
}

// GET /parking-sessions/:receipt
func (h *ParkingSessionHandler) GetByReceipt(c *gin.Context) {
	receipt := c.Param("receipt")

	session, err := h.parkingService.GetByReceipt(c.Request.Context(), receipt)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "parking session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load the parking session"})
		return
	}
	c.JSON(http.StatusOK, session)
}

// GET /parking-sessions?clientTaxId=&page=&size=
func (h *ParkingSessionHandler) ListSessions(c *gin.Context) {
	var filter domain.SessionFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter parameters: " + err.Error()})
		return
	}
	if filter.Size == 0 {
		filter.Size = 20
	}

	page, err := h.parkingService.ListSessions(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list parking sessions"})
		return
	}
	c.JSON(http.StatusOK, page)
}
