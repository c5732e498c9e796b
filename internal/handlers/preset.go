package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/jewelry/internal/services"
)

// PresetHandler serves size presets and clasp images.
type PresetHandler struct {
	presets *services.PresetService
}

// NewPresetHandler constructs PresetHandler.
func NewPresetHandler(presets *services.PresetService) *PresetHandler {
	return &PresetHandler{presets: presets}
}

// ListSizePresets returns every size preset.
func (h *PresetHandler) ListSizePresets(c *fiber.Ctx) error {
	presets, err := h.presets.ListSizePresets(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(presets)
}

// GetSizePreset returns the preset of one product type.
func (h *PresetHandler) GetSizePreset(c *fiber.Ctx) error {
	preset, err := h.presets.GetSizePreset(c.UserContext(), c.Params("type"))
	if err != nil {
		return err
	}
	return c.JSON(preset)
}

// UpsertSizePreset creates or replaces a preset.
func (h *PresetHandler) UpsertSizePreset(c *fiber.Ctx) error {
	var req services.SizePresetInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	preset, err := h.presets.UpsertSizePreset(c.UserContext(), c.Params("type"), req)
	if err != nil {
		return err
	}
	return c.JSON(preset)
}

// ListClaspImages returns every clasp image.
func (h *PresetHandler) ListClaspImages(c *fiber.Ctx) error {
	images, err := h.presets.ListClaspImages(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(images)
}

// CreateClaspImage stores a clasp image.
func (h *PresetHandler) CreateClaspImage(c *fiber.Ctx) error {
	var req services.ClaspImageInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	image, err := h.presets.CreateClaspImage(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(image)
}

// DeleteClaspImage removes a clasp image.
func (h *PresetHandler) DeleteClaspImage(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "clasp image")
	if err != nil {
		return err
	}

	if err := h.presets.DeleteClaspImage(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "clasp image deleted"})
}
