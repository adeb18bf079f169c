package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"ngdi-portal/internal/models"
)

var ErrNotFound = errors.New("record not found")

type UserRepository interface {
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	ListUsers(limit, offset int) ([]*models.User, error)
	UpdateRole(id, role string) error
	SetDisabled(id string, disabled bool) error
	UpdateProfile(id string, name string, organization, department, phone, image *string) error
	CountUsers() (int, error)
	SyncExternalIdentity(identity models.ExternalIdentity) (*models.User, error)
	GetAccount(provider, providerAccountID string) (*models.Account, error)
	ListAccountsByUser(userID string) ([]*models.Account, error)
}

type userRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewUserRepository(db *sqlx.DB, logger *zap.Logger) UserRepository {
	return &userRepository{db: db, logger: logger}
}

const userColumns = `id, email, password_hash, name, role, organization, department, phone, image, email_verified_at, disabled, created_at, updated_at`

func (r *userRepository) CreateUser(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	query := `INSERT INTO users (id, email, password_hash, name, role, organization, department, phone, image, email_verified_at)
	          VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING created_at, updated_at`
	return r.db.QueryRowx(query, user.ID, user.Email, user.PasswordHash, user.Name, user.Role,
		user.Organization, user.Department, user.Phone, user.Image, user.EmailVerifiedAt).
		Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1)`
	err := r.db.Get(&user, query, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetUserByID(id string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	err := r.db.Get(&user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListUsers(limit, offset int) ([]*models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var users []*models.User
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.Select(&users, query, limit, offset); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdateRole(id, role string) error {
	res, err := r.db.Exec(`UPDATE users SET role = $1, updated_at = now() WHERE id = $2`, role, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *userRepository) SetDisabled(id string, disabled bool) error {
	res, err := r.db.Exec(`UPDATE users SET disabled = $1, updated_at = now() WHERE id = $2`, disabled, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *userRepository) UpdateProfile(id string, name string, organization, department, phone, image *string) error {
	res, err := r.db.Exec(`UPDATE users
	        SET name = $1,
	            organization = COALESCE($2, organization),
	            department = COALESCE($3, department),
	            phone = COALESCE($4, phone),
	            image = COALESCE($5, image),
	            updated_at = now()
	        WHERE id = $6`,
		name, organization, department, phone, image, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *userRepository) CountUsers() (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM users`)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SyncExternalIdentity upserts a user by email and the linked account row for
// the (provider, provider_account_id) pair in one transaction. Creating the
// user but failing to link the account would be an invariant violation, so
// any error rolls the whole sync back.
func (r *userRepository) SyncExternalIdentity(identity models.ExternalIdentity) (*models.User, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin identity sync: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var verifiedAt *time.Time
	if identity.EmailVerified {
		now := time.Now().UTC()
		verifiedAt = &now
	}

	// Only mutable profile fields are overwritten on conflict; role,
	// password hash and contact fields are left untouched.
	var user models.User
	err = tx.QueryRowx(`INSERT INTO users (id, email, name, role, image, email_verified_at)
	        VALUES ($1, lower($2), $3, $4, $5, $6)
	        ON CONFLICT (email) DO UPDATE SET
	            name = EXCLUDED.name,
	            image = COALESCE(EXCLUDED.image, users.image),
	            email_verified_at = COALESCE(users.email_verified_at, EXCLUDED.email_verified_at),
	            updated_at = now()
	        RETURNING `+userColumns,
		uuid.NewString(), identity.Email, identity.Name, models.RoleUser, identity.Image, verifiedAt).
		StructScan(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO accounts (id, user_id, provider, provider_account_id, access_token)
	        VALUES ($1, $2, $3, $4, $5)
	        ON CONFLICT (provider, provider_account_id) DO UPDATE SET
	            access_token = EXCLUDED.access_token,
	            updated_at = now()`,
		uuid.NewString(), user.ID, identity.Provider, identity.ProviderAccountID, identity.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account linkage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit identity sync: %w", err)
	}

	return &user, nil
}

func (r *userRepository) GetAccount(provider, providerAccountID string) (*models.Account, error) {
	var account models.Account
	query := `SELECT id, user_id, provider, provider_account_id, access_token, refresh_token, created_at, updated_at
	          FROM accounts WHERE provider = $1 AND provider_account_id = $2`
	err := r.db.Get(&account, query, provider, providerAccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *userRepository) ListAccountsByUser(userID string) ([]*models.Account, error) {
	var accounts []*models.Account
	query := `SELECT id, user_id, provider, provider_account_id, access_token, refresh_token, created_at, updated_at
	          FROM accounts WHERE user_id = $1 ORDER BY created_at`
	if err := r.db.Select(&accounts, query, userID); err != nil {
		return nil, err
	}
	return accounts, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
