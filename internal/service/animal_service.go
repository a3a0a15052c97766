package service

import (
	"context"
	"strings"

	"dogsitter/internal/domain"
	"dogsitter/internal/models"
)

type AnimalInput struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Breed        string `json:"breed"`
	Age          int    `json:"age"`
	Size         string `json:"size"`
	SpecialNeeds string `json:"special_needs"`
	PhotoURL     string `json:"photo"`
}

// AnimalUpdate is a partial animal change. Nil fields are left alone.
type AnimalUpdate struct {
	Name         *string `json:"name"`
	Type         *string `json:"type"`
	Breed        *string `json:"breed"`
	Age          *int    `json:"age"`
	Size         *string `json:"size"`
	SpecialNeeds *string `json:"special_needs"`
	PhotoURL     *string `json:"photo"`
}

// AnimalService manages pets. Owners only see their own animals.
type AnimalService struct {
	animals domain.AnimalRepository
}

func NewAnimalService(animals domain.AnimalRepository) *AnimalService {
	return &AnimalService{animals: animals}
}

func validateAnimal(a *models.Animal) error {
	if a.Name == "" {
		return validationError("name is required")
	}
	if !models.IsValidAnimalType(a.Type) {
		return validationError("type must be one of dog, cat, other")
	}
	if !models.IsValidAnimalSize(a.Size) {
		return validationError("size must be one of small, medium, large")
	}
	if a.Age < 0 {
		return validationError("age cannot be negative")
	}
	return nil
}

func (s *AnimalService) Create(ctx context.Context, actor domain.Actor, in AnimalInput) (*models.Animal, error) {
	a := &models.Animal{
		UserID:       actor.UserID,
		Name:         strings.TrimSpace(in.Name),
		Type:         in.Type,
		Breed:        strings.TrimSpace(in.Breed),
		Age:          in.Age,
		Size:         in.Size,
		SpecialNeeds: strings.TrimSpace(in.SpecialNeeds),
		PhotoURL:     strings.TrimSpace(in.PhotoURL),
	}
	if a.Size == "" {
		a.Size = models.SizeMedium
	}
	if err := validateAnimal(a); err != nil {
		return nil, err
	}
	if err := s.animals.CreateAnimal(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get hides animals of other owners behind ErrNotFound.
func (s *AnimalService) Get(ctx context.Context, actor domain.Actor, id int64) (*models.Animal, error) {
	a, err := s.animals.GetAnimal(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != actor.UserID && !actor.IsAdmin {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (s *AnimalService) List(ctx context.Context, actor domain.Actor) ([]models.Animal, error) {
	return s.animals.ListAnimals(ctx, models.AnimalFilter{UserID: actor.UserID})
}

// Search filters the caller's animals by type, size and name or breed.
// Admins search across all owners.
func (s *AnimalService) Search(ctx context.Context, actor domain.Actor, filter models.AnimalFilter) ([]models.Animal, error) {
	if filter.Type != "" && !models.IsValidAnimalType(filter.Type) {
		return nil, validationError("unknown animal type %q", filter.Type)
	}
	if filter.Size != "" && !models.IsValidAnimalSize(filter.Size) {
		return nil, validationError("unknown animal size %q", filter.Size)
	}
	if !actor.IsAdmin {
		filter.UserID = actor.UserID
	}
	if filter.Limit <= 0 || filter.Limit > models.AnimalSearchLimit {
		filter.Limit = models.AnimalSearchLimit
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.animals.ListAnimals(ctx, filter)
}

func (s *AnimalService) Update(ctx context.Context, actor domain.Actor, id int64, upd AnimalUpdate) (*models.Animal, error) {
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if v := trimmed(upd.Name); v != nil {
		a.Name = *v
	}
	if upd.Type != nil {
		a.Type = *upd.Type
	}
	if v := trimmed(upd.Breed); v != nil {
		a.Breed = *v
	}
	if upd.Age != nil {
		a.Age = *upd.Age
	}
	if upd.Size != nil {
		a.Size = *upd.Size
	}
	if v := trimmed(upd.SpecialNeeds); v != nil {
		a.SpecialNeeds = *v
	}
	if v := trimmed(upd.PhotoURL); v != nil {
		a.PhotoURL = *v
	}
	if err := validateAnimal(a); err != nil {
		return nil, err
	}

	if err := s.animals.UpdateAnimal(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AnimalService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	return s.animals.DeleteAnimal(ctx, id)
}
