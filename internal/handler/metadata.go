package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ngdi-portal/internal/middleware"
	"ngdi-portal/internal/models"
	"ngdi-portal/internal/service"
)

type MetadataHandler interface {
	Search(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	Validate(c *gin.Context)
	Publish(c *gin.Context)
}

type metadataHandler struct {
	metadataService service.MetadataService
	log             *logrus.Logger
}

func NewMetadataHandler(metadataService service.MetadataService, log *logrus.Logger) MetadataHandler {
	return &metadataHandler{metadataService: metadataService, log: log}
}

type MetadataRequest struct {
	Title              string  `json:"title" binding:"required"`
	Author             string  `json:"author" binding:"required"`
	Organization       string  `json:"organization" binding:"required"`
	DataType           string  `json:"dataType" binding:"required"`
	Abstract           string  `json:"abstract" binding:"required"`
	Purpose            *string `json:"purpose"`
	Lineage            *string `json:"lineage"`
	Accuracy           *string `json:"accuracy"`
	Completeness       *string `json:"completeness"`
	DistributionFormat *string `json:"distributionFormat"`
	AccessURL          *string `json:"accessUrl"`
}

func (r *MetadataRequest) toRecord() *models.MetadataRecord {
	return &models.MetadataRecord{
		Title:              r.Title,
		Author:             r.Author,
		Organization:       r.Organization,
		DataType:           r.DataType,
		Abstract:           r.Abstract,
		Purpose:            r.Purpose,
		Lineage:            r.Lineage,
		Accuracy:           r.Accuracy,
		Completeness:       r.Completeness,
		DistributionFormat: r.DistributionFormat,
		AccessURL:          r.AccessURL,
	}
}

// Search handles GET /api/metadata
// Query parameters: q, organization, data_type, status, limit, offset.
func (h *metadataHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	page, err := h.metadataService.Search(middleware.CurrentUser(c), models.MetadataSearch{
		Query:        c.Query("q"),
		Organization: c.Query("organization"),
		DataType:     c.Query("data_type"),
		Status:       c.Query("status"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		h.log.Errorf("Metadata search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search metadata"})
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *metadataHandler) Create(c *gin.Context) {
	var req MetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record := req.toRecord()
	if err := h.metadataService.Create(middleware.CurrentUser(c), record); err != nil {
		h.respondServiceError(c, err, "Failed to create metadata record")
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (h *metadataHandler) Get(c *gin.Context) {
	record, err := h.metadataService.Get(middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err, "Failed to retrieve metadata record")
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *metadataHandler) Update(c *gin.Context) {
	var req MetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record := req.toRecord()
	record.ID = c.Param("id")

	if err := h.metadataService.Update(middleware.CurrentUser(c), record); err != nil {
		h.respondServiceError(c, err, "Failed to update metadata record")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Metadata record updated"})
}

func (h *metadataHandler) Delete(c *gin.Context) {
	if err := h.metadataService.Delete(middleware.CurrentUser(c), c.Param("id")); err != nil {
		h.respondServiceError(c, err, "Failed to delete metadata record")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Metadata record deleted"})
}

type ValidateRequest struct {
	Approve bool `json:"approve"`
}

func (h *metadataHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.metadataService.Validate(middleware.CurrentUser(c), c.Param("id"), req.Approve); err != nil {
		h.respondServiceError(c, err, "Failed to validate metadata record")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Validation recorded"})
}

func (h *metadataHandler) Publish(c *gin.Context) {
	if err := h.metadataService.Publish(middleware.CurrentUser(c), c.Param("id")); err != nil {
		if errors.Is(err, service.ErrNotValidated) {
			c.JSON(http.StatusConflict, gin.H{"error": "Record must be validated before publishing"})
			return
		}
		h.respondServiceError(c, err, "Failed to publish metadata record")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Metadata record published"})
}

func (h *metadataHandler) respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Metadata record not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	case errors.Is(err, service.ErrInvalidDataType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown data type"})
	default:
		h.log.Errorf("%s: %v", fallback, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
