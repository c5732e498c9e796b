package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/jewelry/internal/apperr"
	"github.com/example/jewelry/internal/storage"
)

// UploadHandler stores images through the object store.
type UploadHandler struct {
	store storage.ObjectStore
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(store storage.ObjectStore) *UploadHandler {
	return &UploadHandler{store: store}
}

func uploadErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrUnsupportedImage), errors.Is(err, storage.ErrInvalidDataURL):
		return invalidField("image", err.Error())
	case errors.Is(err, storage.ErrTooLarge):
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, err.Error())
	}
	return apperr.Internal(err)
}

// UploadImage accepts a multipart "image" file.
func (h *UploadHandler) UploadImage(c *fiber.Ctx) error {
	header, err := c.FormFile("image")
	if err != nil {
		return invalidField("image", "image file is required")
	}
	if header.Size > storage.MaxUploadBytes {
		return uploadErr(storage.ErrTooLarge)
	}

	file, err := header.Open()
	if err != nil {
		return apperr.Internal(err)
	}
	defer file.Close()

	url, err := h.store.SaveImage(c.UserContext(), file)
	if err != nil {
		return uploadErr(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}

type base64Request struct {
	Image string `json:"image"`
}

// UploadImageBase64 accepts {"image": "data:image/png;base64,..."}.
func (h *UploadHandler) UploadImageBase64(c *fiber.Ctx) error {
	var req base64Request
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	r, err := storage.DecodeDataURL(req.Image)
	if err != nil {
		return uploadErr(err)
	}
	url, err := h.store.SaveImage(c.UserContext(), r)
	if err != nil {
		return uploadErr(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}
