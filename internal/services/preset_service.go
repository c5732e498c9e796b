package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/jewelry/internal/apperr"
	"github.com/example/jewelry/internal/models"
)

// PresetService manages size presets per product type and clasp images.
type PresetService struct {
	db *gorm.DB
}

// NewPresetService constructs a PresetService.
func NewPresetService(db *gorm.DB) *PresetService {
	return &PresetService{db: db}
}

// SizePresetInput replaces the sizes and heights of a product type.
type SizePresetInput struct {
	Sizes   []string `json:"sizes"`
	Heights []string `json:"heights"`
}

// ClaspImageInput describes a clasp image.
type ClaspImageInput struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

func cleanValues(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ListSizePresets returns every preset ordered by type.
func (s *PresetService) ListSizePresets(ctx context.Context) ([]models.SizePreset, error) {
	var presets []models.SizePreset
	if err := s.db.WithContext(ctx).Order("type asc").Find(&presets).Error; err != nil {
		return nil, fmt.Errorf("list size presets: %w", err)
	}
	return presets, nil
}

// GetSizePreset returns the preset for one product type.
func (s *PresetService) GetSizePreset(ctx context.Context, productType string) (*models.SizePreset, error) {
	var preset models.SizePreset
	if err := s.db.WithContext(ctx).First(&preset, "type = ?", strings.TrimSpace(productType)).Error; err != nil {
		return nil, lookupErr(err, "size preset")
	}
	return &preset, nil
}

// UpsertSizePreset creates or replaces the preset for a product type.
func (s *PresetService) UpsertSizePreset(ctx context.Context, productType string, in SizePresetInput) (*models.SizePreset, error) {
	productType = strings.TrimSpace(productType)
	if productType == "" {
		return nil, apperr.Validation("type is required", apperr.FieldError{Field: "type", Message: "type is required"})
	}

	var preset models.SizePreset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&preset, "type = ?", productType).Error
		if err != nil && !isNotFound(err) {
			return err
		}
		preset.Type = productType
		preset.Sizes = cleanValues(in.Sizes)
		preset.Heights = cleanValues(in.Heights)
		return tx.Save(&preset).Error
	})
	if err != nil {
		return nil, fmt.Errorf("save size preset: %w", err)
	}
	return &preset, nil
}

// ListClaspImages returns every clasp image ordered by name.
func (s *PresetService) ListClaspImages(ctx context.Context) ([]models.ClaspImage, error) {
	var images []models.ClaspImage
	if err := s.db.WithContext(ctx).Order("name asc").Find(&images).Error; err != nil {
		return nil, fmt.Errorf("list clasp images: %w", err)
	}
	return images, nil
}

// CreateClaspImage stores a clasp image.
func (s *PresetService) CreateClaspImage(ctx context.Context, in ClaspImageInput) (*models.ClaspImage, error) {
	var fields apperr.Fields
	if strings.TrimSpace(in.Name) == "" {
		fields.Add("name", "name is required")
	}
	if strings.TrimSpace(in.ImageURL) == "" {
		fields.Add("imageUrl", "imageUrl is required")
	}
	if err := fields.Err("invalid clasp image"); err != nil {
		return nil, err
	}

	image := models.ClaspImage{Name: strings.TrimSpace(in.Name), ImageURL: strings.TrimSpace(in.ImageURL)}
	if err := s.db.WithContext(ctx).Create(&image).Error; err != nil {
		return nil, fmt.Errorf("create clasp image: %w", err)
	}
	return &image, nil
}

// DeleteClaspImage removes a clasp image.
func (s *PresetService) DeleteClaspImage(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.ClaspImage{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete clasp image: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("clasp image not found")
	}
	return nil
}
