package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ngdi-portal/internal/middleware"
	"ngdi-portal/internal/repository"
)

type ProfileHandler interface {
	Get(c *gin.Context)
	Update(c *gin.Context)
}

type profileHandler struct {
	users repository.UserRepository
	log   *logrus.Logger
}

func NewProfileHandler(users repository.UserRepository, log *logrus.Logger) ProfileHandler {
	return &profileHandler{users: users, log: log}
}

func (h *profileHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

type UpdateProfileRequest struct {
	Name         string  `json:"name" binding:"required"`
	Organization *string `json:"organization"`
	Department   *string `json:"department"`
	Phone        *string `json:"phone"`
	Image        *string `json:"image"`
}

func (h *profileHandler) Update(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.users.UpdateProfile(user.ID, req.Name, req.Organization, req.Department, req.Phone, req.Image); err != nil {
		h.log.Errorf("Failed to update profile for %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated"})
}
