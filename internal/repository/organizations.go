package repository

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"ngdi-portal/internal/models"
)

type OrganizationRepository interface {
	Create(org *models.Organization) error
	GetByName(name string) (*models.Organization, error)
	List() ([]*models.Organization, error)
}

type organizationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewOrganizationRepository(db *sqlx.DB, logger *zap.Logger) OrganizationRepository {
	return &organizationRepository{db: db, logger: logger}
}

func (r *organizationRepository) Create(org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	query := `INSERT INTO organizations (id, name, description) VALUES ($1, $2, $3)
	          RETURNING created_at, updated_at`
	return r.db.QueryRowx(query, org.ID, org.Name, org.Description).
		Scan(&org.CreatedAt, &org.UpdatedAt)
}

func (r *organizationRepository) GetByName(name string) (*models.Organization, error) {
	var org models.Organization
	query := `SELECT id, name, description, created_at, updated_at FROM organizations WHERE name = $1`
	err := r.db.Get(&org, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) List() ([]*models.Organization, error) {
	var orgs []*models.Organization
	query := `SELECT id, name, description, created_at, updated_at FROM organizations ORDER BY name`
	if err := r.db.Select(&orgs, query); err != nil {
		return nil, err
	}
	return orgs, nil
}
