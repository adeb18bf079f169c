package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ngdi-portal/internal/audit"
	"ngdi-portal/internal/middleware"
	"ngdi-portal/internal/service"
)

type AdminHandler interface {
	ListUsers(c *gin.Context)
	CreateUser(c *gin.Context)
	ChangeRole(c *gin.Context)
	SetDisabled(c *gin.Context)
	ListOrganizations(c *gin.Context)
	CreateOrganization(c *gin.Context)
	AuditTrail(c *gin.Context)
}

type adminHandler struct {
	adminService service.UserAdminService
	trail        audit.Recorder
	log          *logrus.Logger
}

func NewAdminHandler(adminService service.UserAdminService, trail audit.Recorder, log *logrus.Logger) AdminHandler {
	return &adminHandler{adminService: adminService, trail: trail, log: log}
}

// AuditTrail handles GET /api/admin/audit
func (h *adminHandler) AuditTrail(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)

	events, err := h.trail.Recent(c.Request.Context(), limit)
	if err != nil {
		h.log.Errorf("Failed to read audit trail: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read audit trail"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *adminHandler) ListUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, err := h.adminService.ListUsers(limit, offset)
	if err != nil {
		h.log.Errorf("Failed to list users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

type CreateUserRequest struct {
	Email        string  `json:"email" binding:"required,email"`
	Password     string  `json:"password" binding:"required,min=8"`
	Name         string  `json:"name" binding:"required"`
	Role         string  `json:"role" binding:"required"`
	Organization *string `json:"organization"`
}

func (h *adminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.adminService.CreateUser(req.Email, req.Password, req.Name, req.Role, req.Organization)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
		case errors.Is(err, service.ErrInvalidRole):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		default:
			h.log.Errorf("Failed to create user: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		}
		return
	}

	c.JSON(http.StatusCreated, user)
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *adminHandler) ChangeRole(c *gin.Context) {
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := middleware.CurrentUser(c)
	user, err := h.adminService.ChangeRole(c.Request.Context(), actor.ID, c.Param("id"), req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, service.ErrInvalidRole):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		default:
			h.log.Errorf("Failed to change role: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change role"})
		}
		return
	}

	c.JSON(http.StatusOK, user)
}

type SetDisabledRequest struct {
	Disabled *bool `json:"disabled" binding:"required"`
}

func (h *adminHandler) SetDisabled(c *gin.Context) {
	var req SetDisabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.adminService.SetDisabled(c.Param("id"), *req.Disabled); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.log.Errorf("Failed to update user state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated"})
}

func (h *adminHandler) ListOrganizations(c *gin.Context) {
	orgs, err := h.adminService.ListOrganizations()
	if err != nil {
		h.log.Errorf("Failed to list organizations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list organizations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

type CreateOrganizationRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

func (h *adminHandler) CreateOrganization(c *gin.Context) {
	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	org, err := h.adminService.CreateOrganization(req.Name, req.Description)
	if err != nil {
		if errors.Is(err, service.ErrOrgAlreadyExist) {
			c.JSON(http.StatusConflict, gin.H{"error": "Organization already exists"})
			return
		}
		h.log.Errorf("Failed to create organization: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create organization"})
		return
	}

	c.JSON(http.StatusCreated, org)
}
