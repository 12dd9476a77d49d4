package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"park_api/internal/domain"
	"park_api/internal/repository"
	"park_api/internal/service"
)

type ClientHandler struct {
	clientService *service.ClientService
}

func NewClientHandler(cs *service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: cs}
}

// POST /clients
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var dto domain.ClientCreateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	client, err := h.clientService.Create(c.Request.Context(), dto)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create the client"})
		return
	}
	c.JSON(http.StatusCreated, client)
}

// GET /clients/:id
func (h *ClientHandler) GetClientByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
		return
	}

	client, err := h.clientService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load the client"})
		return
	}
	c.JSON(http.StatusOK, client)
}

// GET /clients?page=&size=
func (h *ClientHandler) ListClients(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	result, err := h.clientService.List(c.Request.Context(), page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list clients"})
		return
	}
	c.JSON(http.StatusOK, result)
}
