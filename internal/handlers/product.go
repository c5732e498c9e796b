package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/jewelry/internal/middleware"
	"github.com/example/jewelry/internal/services"
	"github.com/example/jewelry/internal/utils"
)

// ProductHandler manages product CRUD.
type ProductHandler struct {
	catalogs *services.CatalogService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(catalogs *services.CatalogService) *ProductHandler {
	return &ProductHandler{catalogs: catalogs}
}

// ListProducts returns paginated products the caller can read.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	catalogID, err := queryID(c, "catalogId")
	if err != nil {
		return err
	}
	filter := services.ProductFilter{
		CatalogID: catalogID,
		Type:      strings.TrimSpace(c.Query("type")),
		Search:    c.Query("search"),
	}

	products, total, err := h.catalogs.ListProducts(c.UserContext(), middleware.Subject(c), filter, pg)
	if err != nil {
		return err
	}
	return paginated(c, products, pg, total)
}

// GetProduct returns a single product by ID.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "product")
	if err != nil {
		return err
	}

	product, err := h.catalogs.GetProduct(c.UserContext(), middleware.Subject(c), id)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

type createProductRequest struct {
	services.ProductInput
	CatalogID string `json:"catalogId"`
}

// CreateProduct persists a product into the catalog named in the body.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req createProductRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	product, err := h.catalogs.CreateProduct(c.UserContext(), middleware.Subject(c), req.CatalogID, req.ProductInput)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// UpdateProduct edits an existing product.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "product")
	if err != nil {
		return err
	}

	var req services.UpdateProductInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	product, err := h.catalogs.UpdateProduct(c.UserContext(), middleware.Subject(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// DeleteProduct removes a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "product")
	if err != nil {
		return err
	}

	if err := h.catalogs.DeleteProduct(c.UserContext(), middleware.Subject(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "product deleted"})
}

type assignRequest struct {
	CatalogID string `json:"catalogId"`
}

// AssignProduct moves a product to another catalog.
func (h *ProductHandler) AssignProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "product")
	if err != nil {
		return err
	}

	var req assignRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	catalogID, ok := parseBodyID(req.CatalogID)
	if !ok {
		return invalidField("catalogId", "a valid catalogId is required")
	}

	product, err := h.catalogs.AssignProduct(c.UserContext(), middleware.Subject(c), id, catalogID)
	if err != nil {
		return err
	}
	return c.JSON(product)
}
