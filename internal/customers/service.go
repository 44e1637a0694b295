package customers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/internal/audit"
	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
	"github.com/jmucavele/pdv-backend/pkg/pagination"
)

// Service exposes customer management operations. Any authenticated
// operator can manage customers; sellers need them at the counter.
type Service interface {
	Create(ctx context.Context, actor audit.Actor, input CreateInput) (*CustomerDTO, error)
	Update(ctx context.Context, actor audit.Actor, customerID uuid.UUID, input UpdateInput) (*CustomerDTO, error)
	Get(ctx context.Context, customerID uuid.UUID) (*CustomerDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
}

// CustomerDTO is the API projection of a customer.
type CustomerDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Document  *string   `json:"document,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateInput holds the payload to register a customer.
type CreateInput struct {
	Name     string
	Email    *string
	Phone    *string
	Document *string
}

// UpdateInput holds optional mutation values for a customer.
type UpdateInput struct {
	Name     *string
	Email    *string
	Phone    *string
	Document *string
	IsActive *bool
}

// ListInput filters customer listings.
type ListInput struct {
	Search     string
	ActiveOnly bool
	Limit      int
	Cursor     string
}

// ListResult bundles a page of customers with its next cursor.
type ListResult struct {
	Customers  []CustomerDTO `json:"customers"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo *Repository
	tx   txRunner
}

// NewService constructs a customer service instance.
func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, actor audit.Actor, input CreateInput) (*CustomerDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}

	customer := &models.Customer{
		Name:     name,
		Email:    input.Email,
		Phone:    input.Phone,
		Document: input.Document,
		IsActive: true,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, customer); err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionCreate,
			EntityType: "customer",
			EntityID:   customer.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return toDTO(customer), nil
}

func (s *service) Update(ctx context.Context, actor audit.Actor, customerID uuid.UUID, input UpdateInput) (*CustomerDTO, error) {
	var updated *models.Customer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		customer, err := repo.FindByID(ctx, customerID)
		if err != nil {
			return err
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
			}
			customer.Name = name
		}
		if input.Email != nil {
			customer.Email = input.Email
		}
		if input.Phone != nil {
			customer.Phone = input.Phone
		}
		if input.Document != nil {
			customer.Document = input.Document
		}
		if input.IsActive != nil {
			customer.IsActive = *input.IsActive
		}
		if err := repo.Update(ctx, customer); err != nil {
			return err
		}
		updated = customer
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionUpdate,
			EntityType: "customer",
			EntityID:   customer.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return toDTO(updated), nil
}

func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*CustomerDTO, error) {
	customer, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return toDTO(customer), nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, ListParams{
		Search:     input.Search,
		ActiveOnly: input.ActiveOnly,
		Limit:      input.Limit,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, err
	}

	result := &ListResult{Customers: make([]CustomerDTO, 0, len(rows))}
	for i := range rows {
		result.Customers = append(result.Customers, *toDTO(&rows[i]))
	}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func toDTO(customer *models.Customer) *CustomerDTO {
	return &CustomerDTO{
		ID:        customer.ID,
		Name:      customer.Name,
		Email:     customer.Email,
		Phone:     customer.Phone,
		Document:  customer.Document,
		IsActive:  customer.IsActive,
		CreatedAt: customer.CreatedAt,
	}
}
