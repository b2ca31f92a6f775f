package store

import (
	"context"
	"errors"

	"github.com/sprouthq/plantcare/internal/models"
)

// ErrNotFound is returned when a plant or session does not exist (or is not
// visible to the requesting user).
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for plantcare.
type Store interface {
	// Plants
	CreatePlant(ctx context.Context, p *models.Plant) error
	GetPlant(ctx context.Context, id, userID string) (*models.Plant, error)
	GetPlantByName(ctx context.Context, name, userID string) (*models.Plant, error)
	ListPlants(ctx context.Context, userID string) ([]*models.Plant, error)
	UpdatePlant(ctx context.Context, p *models.Plant) error
	DeletePlant(ctx context.Context, id, userID string) error

	// Diagnosis sessions
	CreateSession(ctx context.Context, s *models.DiagnosisSession) error
	GetSession(ctx context.Context, id string) (*models.DiagnosisSession, error)
	ListSessionsByPlant(ctx context.Context, plantID string) ([]*models.DiagnosisSession, error)
	UpdateSession(ctx context.Context, s *models.DiagnosisSession) error
	DeleteSession(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
