package models

import "time"

// Metadata record lifecycle statuses.
const (
	StatusDraft       = "draft"
	StatusUnderReview = "under_review"
	StatusPublished   = "published"
)

// Validation outcomes for a metadata record.
const (
	ValidationPending   = "pending"
	ValidationValidated = "validated"
	ValidationRejected  = "rejected"
)

// Dataset types accepted by the catalog.
const (
	DataTypeVector = "vector"
	DataTypeRaster = "raster"
	DataTypeTable  = "table"
)

// MetadataRecord is the catalog's primary content entity.
type MetadataRecord struct {
	ID                 string    `db:"id" json:"id"`
	Title              string    `db:"title" json:"title"`
	Author             string    `db:"author" json:"author"`
	Organization       string    `db:"organization" json:"organization"`
	DataType           string    `db:"data_type" json:"dataType"`
	Abstract           string    `db:"abstract" json:"abstract"`
	Purpose            *string   `db:"purpose" json:"purpose,omitempty"`
	Lineage            *string   `db:"lineage" json:"lineage,omitempty"`
	Accuracy           *string   `db:"accuracy" json:"accuracy,omitempty"`
	Completeness       *string   `db:"completeness" json:"completeness,omitempty"`
	DistributionFormat *string   `db:"distribution_format" json:"distributionFormat,omitempty"`
	AccessURL          *string   `db:"access_url" json:"accessUrl,omitempty"`
	OwnerID            string    `db:"owner_id" json:"ownerId"`
	ValidationStatus   string    `db:"validation_status" json:"validationStatus"`
	Status             string    `db:"status" json:"status"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

// MetadataSearch carries catalog search parameters.
type MetadataSearch struct {
	Query        string
	Organization string
	DataType     string
	Status       string
	Limit        int
	Offset       int
}

// MetadataPage is one page of search results with the total match count.
type MetadataPage struct {
	Records []*MetadataRecord `json:"records"`
	Total   int               `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
}
