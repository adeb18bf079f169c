package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"ngdi-portal/internal/models"
)

type MetadataRepository interface {
	Create(record *models.MetadataRecord) error
	GetByID(id string) (*models.MetadataRecord, error)
	Update(record *models.MetadataRecord) error
	Delete(id string) error
	Search(q models.MetadataSearch) (*models.MetadataPage, error)
	UpdateStatus(id, status string) error
	UpdateValidation(id, validationStatus string) error
}

type metadataRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMetadataRepository(db *sqlx.DB, logger *zap.Logger) MetadataRepository {
	return &metadataRepository{db: db, logger: logger}
}

const metadataColumns = `id, title, author, organization, data_type, abstract, purpose, lineage, accuracy, completeness, distribution_format, access_url, owner_id, validation_status, status, created_at, updated_at`

func (r *metadataRepository) Create(record *models.MetadataRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = models.StatusDraft
	}
	if record.ValidationStatus == "" {
		record.ValidationStatus = models.ValidationPending
	}

	query := `INSERT INTO metadata_records
	        (id, title, author, organization, data_type, abstract, purpose, lineage, accuracy, completeness, distribution_format, access_url, owner_id, validation_status, status)
	        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	        RETURNING created_at, updated_at`
	return r.db.QueryRowx(query,
		record.ID, record.Title, record.Author, record.Organization, record.DataType,
		record.Abstract, record.Purpose, record.Lineage, record.Accuracy, record.Completeness,
		record.DistributionFormat, record.AccessURL, record.OwnerID, record.ValidationStatus, record.Status).
		Scan(&record.CreatedAt, &record.UpdatedAt)
}

func (r *metadataRepository) GetByID(id string) (*models.MetadataRecord, error) {
	var record models.MetadataRecord
	query := `SELECT ` + metadataColumns + ` FROM metadata_records WHERE id = $1`
	err := r.db.Get(&record, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *metadataRepository) Update(record *models.MetadataRecord) error {
	res, err := r.db.Exec(`UPDATE metadata_records SET
	        title = $1, author = $2, organization = $3, data_type = $4, abstract = $5,
	        purpose = $6, lineage = $7, accuracy = $8, completeness = $9,
	        distribution_format = $10, access_url = $11, updated_at = now()
	        WHERE id = $12`,
		record.Title, record.Author, record.Organization, record.DataType, record.Abstract,
		record.Purpose, record.Lineage, record.Accuracy, record.Completeness,
		record.DistributionFormat, record.AccessURL, record.ID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *metadataRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM metadata_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// Search filters the catalog with optional free text over title, author and
// abstract, plus exact filters, returning one page and the total match count.
func (r *metadataRepository) Search(q models.MetadataSearch) (*models.MetadataPage, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1

	if q.Query != "" {
		where += fmt.Sprintf(" AND (title ILIKE $%d OR author ILIKE $%d OR abstract ILIKE $%d)", idx, idx, idx)
		args = append(args, "%"+q.Query+"%")
		idx++
	}
	if q.Organization != "" {
		where += fmt.Sprintf(" AND organization = $%d", idx)
		args = append(args, q.Organization)
		idx++
	}
	if q.DataType != "" {
		where += fmt.Sprintf(" AND data_type = $%d", idx)
		args = append(args, q.DataType)
		idx++
	}
	if q.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, q.Status)
		idx++
	}

	var total int
	if err := r.db.Get(&total, `SELECT COUNT(*) FROM metadata_records`+where, args...); err != nil {
		return nil, err
	}

	query := `SELECT ` + metadataColumns + ` FROM metadata_records` + where +
		fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, q.Limit, q.Offset)

	records := []*models.MetadataRecord{}
	if err := r.db.Select(&records, query, args...); err != nil {
		return nil, err
	}

	return &models.MetadataPage{
		Records: records,
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}, nil
}

func (r *metadataRepository) UpdateStatus(id, status string) error {
	res, err := r.db.Exec(`UPDATE metadata_records SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *metadataRepository) UpdateValidation(id, validationStatus string) error {
	res, err := r.db.Exec(`UPDATE metadata_records SET validation_status = $1, updated_at = now() WHERE id = $2`, validationStatus, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}
