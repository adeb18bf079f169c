package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ngdi-portal/internal/middleware"
	"ngdi-portal/internal/storage"
)

type UploadHandler interface {
	PresignAvatar(c *gin.Context)
	PresignAttachment(c *gin.Context)
	PresignDownload(c *gin.Context)
}

type uploadHandler struct {
	storage *storage.Client
	log     *logrus.Logger
}

func NewUploadHandler(storageClient *storage.Client, log *logrus.Logger) UploadHandler {
	return &uploadHandler{storage: storageClient, log: log}
}

func (h *uploadHandler) unavailable(c *gin.Context) bool {
	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "File storage is not configured"})
		return true
	}
	return false
}

// PresignAvatar handles POST /api/uploads/avatar.
func (h *uploadHandler) PresignAvatar(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	user := middleware.CurrentUser(c)
	key := storage.AvatarKey(user.ID)

	url, err := h.storage.PresignPut(c.Request.Context(), key)
	if err != nil {
		h.log.Errorf("Failed to presign avatar upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "uploadUrl": url})
}

// PresignAttachment handles POST /api/metadata/:id/attachment.
func (h *uploadHandler) PresignAttachment(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	key := storage.AttachmentKey(c.Param("id"))

	url, err := h.storage.PresignPut(c.Request.Context(), key)
	if err != nil {
		h.log.Errorf("Failed to presign attachment upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "uploadUrl": url})
}

// PresignDownload handles GET /api/uploads?key=...
func (h *uploadHandler) PresignDownload(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing key"})
		return
	}

	url, err := h.storage.PresignGet(c.Request.Context(), key)
	if err != nil {
		h.log.Errorf("Failed to presign download: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare download"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"downloadUrl": url})
}
