package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/internal/audit"
	"github.com/jmucavele/pdv-backend/pkg/config"
	"github.com/jmucavele/pdv-backend/pkg/db"
	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
	"github.com/jmucavele/pdv-backend/pkg/pagination"
	"github.com/jmucavele/pdv-backend/pkg/security"
)

// Service exposes operator account management. Every mutation requires the
// manage-users capability, which only admins hold.
type Service interface {
	Create(ctx context.Context, actor audit.Actor, input CreateInput) (*UserDTO, error)
	Update(ctx context.Context, actor audit.Actor, userID uuid.UUID, input UpdateInput) (*UserDTO, error)
	Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	List(ctx context.Context, actor audit.Actor, input ListInput) (*ListResult, error)
}

// UserDTO is the API projection of an operator account.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Role        enums.UserRole `json:"role"`
	IsActive    bool           `json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CreateInput holds the payload to register an operator.
type CreateInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      enums.UserRole
}

// UpdateInput holds optional mutation values for an operator.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Role      *enums.UserRole
	IsActive  *bool
	Password  *string
}

// ListInput filters user listings.
type ListInput struct {
	ActiveOnly bool
	Limit      int
	Cursor     string
}

// ListResult bundles a page of users with its next cursor.
type ListResult struct {
	Users      []UserDTO `json:"users"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo        *Repository
	tx          txRunner
	passwordCfg config.PasswordConfig
}

// NewService constructs a user service instance.
func NewService(repo *Repository, tx txRunner, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, passwordCfg: passwordCfg}, nil
}

func (s *service) Create(ctx context.Context, actor audit.Actor, input CreateInput) (*UserDTO, error) {
	if !actor.Role.Can(enums.CapManageUsers) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "user management not allowed")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid email required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         input.Role,
		IsActive:     true,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, user); err != nil {
			if db.IsUniqueViolation(err, "email") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already in use")
			}
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionCreate,
			EntityType: "user",
			EntityID:   user.ID,
			Detail:     map[string]string{"role": user.Role.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return toDTO(user), nil
}

func (s *service) Update(ctx context.Context, actor audit.Actor, userID uuid.UUID, input UpdateInput) (*UserDTO, error) {
	if !actor.Role.Can(enums.CapManageUsers) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "user management not allowed")
	}

	var updated *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		user, err := repo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if input.FirstName != nil {
			user.FirstName = strings.TrimSpace(*input.FirstName)
		}
		if input.LastName != nil {
			user.LastName = strings.TrimSpace(*input.LastName)
		}
		if input.Role != nil {
			if !input.Role.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
			}
			user.Role = *input.Role
		}
		if input.IsActive != nil {
			user.IsActive = *input.IsActive
		}
		if input.Password != nil {
			if len(*input.Password) < 8 {
				return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
			}
			hash, err := security.HashPassword(*input.Password, s.passwordCfg)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
			}
			user.PasswordHash = hash
		}
		if err := repo.Update(ctx, user); err != nil {
			return err
		}
		updated = user
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionUpdate,
			EntityType: "user",
			EntityID:   user.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return toDTO(updated), nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toDTO(user), nil
}

func (s *service) List(ctx context.Context, actor audit.Actor, input ListInput) (*ListResult, error) {
	if !actor.Role.Can(enums.CapManageUsers) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "user management not allowed")
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, ListParams{
		ActiveOnly: input.ActiveOnly,
		Limit:      input.Limit,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, err
	}

	result := &ListResult{Users: make([]UserDTO, 0, len(rows))}
	for i := range rows {
		result.Users = append(result.Users, *toDTO(&rows[i]))
	}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// FromModel converts a stored user into its API projection.
func FromModel(user *models.User) *UserDTO {
	return toDTO(user)
}

func toDTO(user *models.User) *UserDTO {
	return &UserDTO{
		ID:          user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Role:        user.Role,
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}
