// Package plants implements plant collection management: identification,
// care schedule generation, and persistence.
package plants

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/sprouthq/plantcare/internal/models"
	"github.com/sprouthq/plantcare/internal/plantid"
	"github.com/sprouthq/plantcare/internal/store"
)

// Identifier names a plant from photos.
type Identifier interface {
	Identify(ctx context.Context, req plantid.Request) (string, error)
}

// ScheduleGenerator produces an AI care schedule for a named plant.
type ScheduleGenerator interface {
	GenerateCareSchedule(ctx context.Context, plantName string) (*models.CareSchedule, error)
}

// ImageStore persists plant photos.
type ImageStore interface {
	SaveImage(data []byte, filename string) (string, error)
}

// Service creates plants from photos.
type Service struct {
	store      store.Store
	identifier Identifier
	schedules  ScheduleGenerator
	images     ImageStore
}

// NewService creates a plant service.
func NewService(s store.Store, id Identifier, gen ScheduleGenerator, img ImageStore) *Service {
	return &Service{store: s, identifier: id, schedules: gen, images: img}
}

// CreateRequest holds the inputs for adding a plant.
type CreateRequest struct {
	ImageData []byte
	Latitude  *float64
	Longitude *float64
}

// Create identifies the plant from its photo, generates a care schedule,
// stores the photo, and persists the plant record.
func (s *Service) Create(ctx context.Context, req CreateRequest, userID string) (*models.Plant, error) {
	encoded := base64.StdEncoding.EncodeToString(req.ImageData)

	name, err := s.identifier.Identify(ctx, plantid.Request{
		Images:    []string{encoded},
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		return nil, fmt.Errorf("identify plant: %w", err)
	}

	schedule, err := s.schedules.GenerateCareSchedule(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("generate care schedule: %w", err)
	}

	imagePath, err := s.images.SaveImage(req.ImageData, ulid.Make().String()+".jpg")
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	plant := &models.Plant{
		UserID:       userID,
		Name:         name,
		CareSchedule: *schedule,
		ImagePath:    imagePath,
	}

	if err := s.store.CreatePlant(ctx, plant); err != nil {
		return nil, err
	}
	return plant, nil
}

// Resolve finds a plant by ID or by name for the given user.
func Resolve(ctx context.Context, s store.Store, ref, userID string) (*models.Plant, error) {
	p, err := s.GetPlant(ctx, ref, userID)
	if err == nil {
		return p, nil
	}
	return s.GetPlantByName(ctx, ref, userID)
}
