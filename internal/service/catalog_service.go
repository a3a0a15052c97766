package service

import (
	"context"
	"strings"

	"dogsitter/internal/domain"
	"dogsitter/internal/models"
)

// ServiceUpdate is a partial catalog change. Nil fields are left alone.
type ServiceUpdate struct {
	Name        *string       `json:"name"`
	Description *string       `json:"description"`
	Price       *models.Money `json:"price"`
	IsActive    *bool         `json:"is_active"`
}

// CatalogService manages the priced add-ons. Changes are admin only.
type CatalogService struct {
	repo domain.CatalogRepository
}

func NewCatalogService(repo domain.CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

func validateService(svc *models.Service) error {
	if svc.Name == "" {
		return validationError("name is required")
	}
	if svc.Price < 0 {
		return validationError("price cannot be negative")
	}
	if !svc.Price.Valid() {
		return validationError("price cannot exceed %s", models.MaxMoney)
	}
	return nil
}

// List returns active services; admins may include inactive ones.
func (s *CatalogService) List(ctx context.Context, actor domain.Actor, includeInactive bool) ([]models.Service, error) {
	return s.repo.ListServices(ctx, !(includeInactive && actor.IsAdmin))
}

func (s *CatalogService) Get(ctx context.Context, actor domain.Actor, id int64) (*models.Service, error) {
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive && !actor.IsAdmin {
		return nil, domain.ErrNotFound
	}
	return svc, nil
}

func (s *CatalogService) Create(ctx context.Context, actor domain.Actor, svc models.Service) (*models.Service, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	svc.Name = strings.TrimSpace(svc.Name)
	svc.Description = strings.TrimSpace(svc.Description)
	svc.IsActive = true
	if err := validateService(&svc); err != nil {
		return nil, err
	}
	if err := s.repo.CreateService(ctx, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *CatalogService) Update(ctx context.Context, actor domain.Actor, id int64, upd ServiceUpdate) (*models.Service, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if v := trimmed(upd.Name); v != nil {
		svc.Name = *v
	}
	if v := trimmed(upd.Description); v != nil {
		svc.Description = *v
	}
	if upd.Price != nil {
		svc.Price = *upd.Price
	}
	if upd.IsActive != nil {
		svc.IsActive = *upd.IsActive
	}
	if err := validateService(svc); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateService(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// Deactivate hides the service from new bookings. Existing bookings keep
// their price snapshot.
func (s *CatalogService) Deactivate(ctx context.Context, actor domain.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.repo.DeactivateService(ctx, id)
}

// Seed upserts services by name and returns how many were applied.
func (s *CatalogService) Seed(ctx context.Context, services []models.Service) (int, error) {
	n := 0
	for i := range services {
		svc := services[i]
		svc.Name = strings.TrimSpace(svc.Name)
		svc.IsActive = true
		if err := validateService(&svc); err != nil {
			return n, err
		}
		if err := s.repo.UpsertServiceByName(ctx, &svc); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
