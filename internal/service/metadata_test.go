package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ngdi-portal/internal/models"
)

func strPtr(s string) *string { return &s }

func adminActor() *models.User {
	return &models.User{ID: "admin-1", Role: models.RoleAdmin}
}

func officerActor(org string) *models.User {
	return &models.User{ID: "officer-1", Role: models.RoleNodeOfficer, Organization: strPtr(org)}
}

func sampleRecord(org string) *models.MetadataRecord {
	return &models.MetadataRecord{
		Title:        "Lagos State Road Network",
		Author:       "Survey Team",
		Organization: org,
		DataType:     models.DataTypeVector,
		Abstract:     "Digitized road centerlines.",
	}
}

func newMetadataFixture(t *testing.T) (MetadataService, *fakeMetadataRepo, *recordingNotifier) {
	t.Helper()
	records := newFakeMetadataRepo()
	notifier := &recordingNotifier{}
	return NewMetadataService(records, notifier, zap.NewNop()), records, notifier
}

func TestMetadataCreateRoles(t *testing.T) {
	svc, _, _ := newMetadataFixture(t)

	require.NoError(t, svc.Create(adminActor(), sampleRecord("Any Org")))

	officer := officerActor("Lands Bureau")
	require.NoError(t, svc.Create(officer, sampleRecord("Lands Bureau")))
	require.ErrorIs(t, svc.Create(officer, sampleRecord("Other Org")), ErrForbidden)

	regular := &models.User{ID: "u-1", Role: models.RoleUser}
	require.ErrorIs(t, svc.Create(regular, sampleRecord("Lands Bureau")), ErrForbidden)
}

func TestMetadataCreateStartsAsDraft(t *testing.T) {
	svc, records, _ := newMetadataFixture(t)

	record := sampleRecord("Lands Bureau")
	require.NoError(t, svc.Create(adminActor(), record))

	stored, err := records.GetByID(record.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, stored.Status)
	require.Equal(t, models.ValidationPending, stored.ValidationStatus)
	require.Equal(t, "admin-1", stored.OwnerID)
}

func TestMetadataCreateRejectsUnknownDataType(t *testing.T) {
	svc, _, _ := newMetadataFixture(t)

	record := sampleRecord("Any Org")
	record.DataType = "hologram"
	require.ErrorIs(t, svc.Create(adminActor(), record), ErrInvalidDataType)
}

func TestMetadataUpdateResetsValidation(t *testing.T) {
	svc, records, _ := newMetadataFixture(t)

	officer := officerActor("Lands Bureau")
	record := sampleRecord("Lands Bureau")
	require.NoError(t, svc.Create(officer, record))
	require.NoError(t, records.UpdateValidation(record.ID, models.ValidationValidated))

	record.Abstract = "Revised abstract."
	require.NoError(t, svc.Update(officer, record))

	stored, err := records.GetByID(record.ID)
	require.NoError(t, err)
	require.Equal(t, models.ValidationPending, stored.ValidationStatus)
}

func TestMetadataUpdateForbiddenForOtherOrg(t *testing.T) {
	svc, _, _ := newMetadataFixture(t)

	record := sampleRecord("Lands Bureau")
	require.NoError(t, svc.Create(adminActor(), record))

	outsider := officerActor("Other Org")
	outsider.ID = "officer-2"
	require.ErrorIs(t, svc.Update(outsider, record), ErrForbidden)
}

func TestMetadataDeleteAdminOnly(t *testing.T) {
	svc, _, _ := newMetadataFixture(t)

	record := sampleRecord("Lands Bureau")
	require.NoError(t, svc.Create(adminActor(), record))

	require.ErrorIs(t, svc.Delete(officerActor("Lands Bureau"), record.ID), ErrForbidden)
	require.NoError(t, svc.Delete(adminActor(), record.ID))
	require.ErrorIs(t, svc.Delete(adminActor(), record.ID), ErrRecordNotFound)
}

func TestMetadataGetVisibility(t *testing.T) {
	svc, records, _ := newMetadataFixture(t)

	officer := officerActor("Lands Bureau")
	draft := sampleRecord("Lands Bureau")
	require.NoError(t, svc.Create(officer, draft))

	// The read path hides unpublished records from anonymous callers and
	// regular users just like search does, and reports not-found rather
	// than forbidden so the record's existence is not leaked.
	_, err := svc.Get(nil, draft.ID)
	require.ErrorIs(t, err, ErrRecordNotFound)

	_, err = svc.Get(&models.User{ID: "u-1", Role: models.RoleUser}, draft.ID)
	require.ErrorIs(t, err, ErrRecordNotFound)

	// The owning officer, a same-org officer and admins still see it.
	got, err := svc.Get(officer, draft.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, got.Status)

	colleague := officerActor("Lands Bureau")
	colleague.ID = "officer-2"
	_, err = svc.Get(colleague, draft.ID)
	require.NoError(t, err)

	outsider := officerActor("Other Org")
	outsider.ID = "officer-3"
	_, err = svc.Get(outsider, draft.ID)
	require.ErrorIs(t, err, ErrRecordNotFound)

	_, err = svc.Get(adminActor(), draft.ID)
	require.NoError(t, err)

	// Once published, everyone can read it.
	require.NoError(t, records.UpdateStatus(draft.ID, models.StatusPublished))
	got, err = svc.Get(nil, draft.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPublished, got.Status)
}

func TestMetadataSearchVisibility(t *testing.T) {
	svc, records, _ := newMetadataFixture(t)

	draft := sampleRecord("Lands Bureau")
	require.NoError(t, svc.Create(adminActor(), draft))

	published := sampleRecord("Lands Bureau")
	published.Title = "Published Dataset"
	require.NoError(t, svc.Create(adminActor(), published))
	require.NoError(t, records.UpdateStatus(published.ID, models.StatusPublished))

	// Anonymous searches are forced to published records.
	page, err := svc.Search(nil, models.MetadataSearch{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "Published Dataset", page.Records[0].Title)

	// Regular users get the same restriction.
	page, err = svc.Search(&models.User{Role: models.RoleUser}, models.MetadataSearch{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)

	// Admins see everything.
	page, err = svc.Search(adminActor(), models.MetadataSearch{})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
}

func TestMetadataValidateAndPublish(t *testing.T) {
	svc, records, notifier := newMetadataFixture(t)

	officer := officerActor("Lands Bureau")
	record := sampleRecord("Lands Bureau")
	require.NoError(t, svc.Create(officer, record))

	// Publishing an unvalidated record is refused.
	require.ErrorIs(t, svc.Publish(officer, record.ID), ErrNotValidated)

	// Validation is an admin action.
	require.ErrorIs(t, svc.Validate(officer, record.ID, true), ErrForbidden)
	require.NoError(t, svc.Validate(adminActor(), record.ID, true))

	stored, err := records.GetByID(record.ID)
	require.NoError(t, err)
	require.Equal(t, models.ValidationValidated, stored.ValidationStatus)
	require.Equal(t, models.StatusUnderReview, stored.Status)

	require.NoError(t, svc.Publish(officer, record.ID))

	stored, err = records.GetByID(record.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPublished, stored.Status)
	require.Len(t, notifier.published, 1)
	require.Equal(t, record.ID, notifier.published[0].ID)
}

func TestMetadataRejectDropsToDraft(t *testing.T) {
	svc, records, _ := newMetadataFixture(t)

	record := sampleRecord("Lands Bureau")
	require.NoError(t, svc.Create(adminActor(), record))
	require.NoError(t, records.UpdateStatus(record.ID, models.StatusUnderReview))

	require.NoError(t, svc.Validate(adminActor(), record.ID, false))

	stored, err := records.GetByID(record.ID)
	require.NoError(t, err)
	require.Equal(t, models.ValidationRejected, stored.ValidationStatus)
	require.Equal(t, models.StatusDraft, stored.Status)
}
