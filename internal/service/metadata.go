package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ngdi-portal/internal/models"
	"ngdi-portal/internal/repository"
)

var (
	ErrRecordNotFound  = errors.New("metadata record not found")
	ErrForbidden       = errors.New("forbidden")
	ErrNotValidated    = errors.New("record has not been validated")
	ErrInvalidDataType = errors.New("invalid data type")
)

// Notifier receives portal events worth pushing to administrators. The
// Telegram bot implements it; a no-op stands in when notifications are off.
type Notifier interface {
	RecordPublished(record *models.MetadataRecord)
	UserRegistered(user *models.User)
}

type NoOpNotifier struct{}

func (NoOpNotifier) RecordPublished(*models.MetadataRecord) {}
func (NoOpNotifier) UserRegistered(*models.User)            {}

type MetadataService interface {
	Create(actor *models.User, record *models.MetadataRecord) error
	Get(actor *models.User, id string) (*models.MetadataRecord, error)
	Update(actor *models.User, record *models.MetadataRecord) error
	Delete(actor *models.User, id string) error
	Search(actor *models.User, q models.MetadataSearch) (*models.MetadataPage, error)
	Validate(actor *models.User, id string, approve bool) error
	Publish(actor *models.User, id string) error
}

type metadataService struct {
	records  repository.MetadataRepository
	notifier Notifier
	logger   *zap.Logger
}

func NewMetadataService(records repository.MetadataRepository, notifier Notifier, logger *zap.Logger) MetadataService {
	if notifier == nil {
		notifier = NoOpNotifier{}
	}
	return &metadataService{
		records:  records,
		notifier: notifier,
		logger:   logger,
	}
}

func validDataType(dataType string) bool {
	switch dataType {
	case models.DataTypeVector, models.DataTypeRaster, models.DataTypeTable:
		return true
	}
	return false
}

// Create stores a new draft record. Node officers may only create records for
// their own organization; admins are unrestricted.
func (s *metadataService) Create(actor *models.User, record *models.MetadataRecord) error {
	if !validDataType(record.DataType) {
		return ErrInvalidDataType
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleNodeOfficer:
		if actor.Organization == nil || *actor.Organization != record.Organization {
			return ErrForbidden
		}
	default:
		return ErrForbidden
	}

	record.OwnerID = actor.ID
	record.Status = models.StatusDraft
	record.ValidationStatus = models.ValidationPending

	if err := s.records.Create(record); err != nil {
		s.logger.Error("Failed to create metadata record", zap.Error(err))
		return fmt.Errorf("failed to create record: %w", err)
	}

	return nil
}

// Get reads a single record. Unpublished records are only visible to actors
// who may manage them; everyone else gets not-found, so a record's existence
// is not leaked through the read path.
func (s *metadataService) Get(actor *models.User, id string) (*models.MetadataRecord, error) {
	record, err := s.getRecord(id)
	if err != nil {
		return nil, err
	}

	if record.Status != models.StatusPublished && !s.canManage(actor, record) {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

func (s *metadataService) getRecord(id string) (*models.MetadataRecord, error) {
	record, err := s.records.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return record, nil
}

// Update rewrites the descriptive fields and resets validation: an edited
// record must be validated again before it can be published.
func (s *metadataService) Update(actor *models.User, record *models.MetadataRecord) error {
	existing, err := s.getRecord(record.ID)
	if err != nil {
		return err
	}

	if !s.canManage(actor, existing) {
		return ErrForbidden
	}
	if !validDataType(record.DataType) {
		return ErrInvalidDataType
	}

	if err := s.records.Update(record); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRecordNotFound
		}
		s.logger.Error("Failed to update metadata record", zap.String("id", record.ID), zap.Error(err))
		return fmt.Errorf("failed to update record: %w", err)
	}

	if err := s.records.UpdateValidation(record.ID, models.ValidationPending); err != nil {
		s.logger.Error("Failed to reset validation status", zap.String("id", record.ID), zap.Error(err))
		return fmt.Errorf("failed to reset validation: %w", err)
	}

	return nil
}

func (s *metadataService) Delete(actor *models.User, id string) error {
	if actor.Role != models.RoleAdmin {
		return ErrForbidden
	}

	if err := s.records.Delete(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	return nil
}

// Search runs a catalog query. Anonymous and regular users only ever see
// published records; node officers and admins may filter freely.
func (s *metadataService) Search(actor *models.User, q models.MetadataSearch) (*models.MetadataPage, error) {
	privileged := actor != nil &&
		(actor.Role == models.RoleAdmin || actor.Role == models.RoleNodeOfficer)
	if !privileged {
		q.Status = models.StatusPublished
	}

	page, err := s.records.Search(q)
	if err != nil {
		s.logger.Error("Metadata search failed", zap.Error(err))
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return page, nil
}

// Validate records the review outcome. Review is an admin action.
func (s *metadataService) Validate(actor *models.User, id string, approve bool) error {
	if actor.Role != models.RoleAdmin {
		return ErrForbidden
	}

	if _, err := s.getRecord(id); err != nil {
		return err
	}

	outcome := models.ValidationValidated
	if !approve {
		outcome = models.ValidationRejected
	}

	if err := s.records.UpdateValidation(id, outcome); err != nil {
		return err
	}

	if !approve {
		// A rejected record drops back to draft so the owner can rework it.
		return s.records.UpdateStatus(id, models.StatusDraft)
	}
	return s.records.UpdateStatus(id, models.StatusUnderReview)
}

// Publish moves a validated record to the published state.
func (s *metadataService) Publish(actor *models.User, id string) error {
	record, err := s.getRecord(id)
	if err != nil {
		return err
	}

	if !s.canManage(actor, record) {
		return ErrForbidden
	}
	if record.ValidationStatus != models.ValidationValidated {
		return ErrNotValidated
	}

	if err := s.records.UpdateStatus(id, models.StatusPublished); err != nil {
		return err
	}

	record.Status = models.StatusPublished
	s.notifier.RecordPublished(record)

	return nil
}

// canManage reports whether the actor may mutate the record: admins always,
// node officers for records they own or records of their organization.
func (s *metadataService) canManage(actor *models.User, record *models.MetadataRecord) bool {
	if actor == nil {
		return false
	}
	if actor.Role == models.RoleAdmin {
		return true
	}
	if actor.Role != models.RoleNodeOfficer {
		return false
	}
	if record.OwnerID == actor.ID {
		return true
	}
	return actor.Organization != nil && *actor.Organization == record.Organization
}
