package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/jewelry/internal/middleware"
	"github.com/example/jewelry/internal/services"
)

// CatalogHandler manages catalogs and the products nested under them.
type CatalogHandler struct {
	catalogs *services.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalogs *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogs: catalogs}
}

// ListCatalogs returns every catalog the caller can read.
func (h *CatalogHandler) ListCatalogs(c *fiber.Ctx) error {
	catalogs, err := h.catalogs.ListCatalogs(c.UserContext(), middleware.Subject(c))
	if err != nil {
		return err
	}
	return c.JSON(catalogs)
}

// GetCatalog returns a catalog with its ordered products.
func (h *CatalogHandler) GetCatalog(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "catalog")
	if err != nil {
		return err
	}

	catalog, err := h.catalogs.GetCatalog(c.UserContext(), middleware.Subject(c), id)
	if err != nil {
		return err
	}
	return c.JSON(catalog)
}

// CreateCatalog persists a new catalog.
func (h *CatalogHandler) CreateCatalog(c *fiber.Ctx) error {
	var req services.CreateCatalogInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	catalog, err := h.catalogs.CreateCatalog(c.UserContext(), middleware.Subject(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(catalog)
}

// UpdateCatalog edits an existing catalog.
func (h *CatalogHandler) UpdateCatalog(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "catalog")
	if err != nil {
		return err
	}

	var req services.UpdateCatalogInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	catalog, err := h.catalogs.UpdateCatalog(c.UserContext(), middleware.Subject(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(catalog)
}

type permissionsRequest struct {
	IsPublic       *bool    `json:"isPublic"`
	AllowedUserIDs []string `json:"allowedUserIds"`
}

// UpdatePermissions replaces a catalog's visibility and allow-list.
func (h *CatalogHandler) UpdatePermissions(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "catalog")
	if err != nil {
		return err
	}

	var req permissionsRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	catalog, err := h.catalogs.UpdatePermissions(c.UserContext(), middleware.Subject(c), id, req.IsPublic, req.AllowedUserIDs)
	if err != nil {
		return err
	}
	return c.JSON(catalog)
}

// DeleteCatalog removes a catalog and all of its products.
func (h *CatalogHandler) DeleteCatalog(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "catalog")
	if err != nil {
		return err
	}

	if err := h.catalogs.DeleteCatalog(c.UserContext(), middleware.Subject(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "catalog deleted"})
}

// AddProduct creates a product at the end of the catalog.
func (h *CatalogHandler) AddProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "catalog")
	if err != nil {
		return err
	}

	var req services.ProductInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	product, err := h.catalogs.AddProduct(c.UserContext(), middleware.Subject(c), id, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

type bulkProductsRequest struct {
	Products           []services.ProductInput `json:"products"`
	ExistingProductIDs []string                `json:"existingProductIds"`
}

// BulkAddProducts creates and reassigns products in one call.
func (h *CatalogHandler) BulkAddProducts(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "catalog")
	if err != nil {
		return err
	}

	var req bulkProductsRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	products, err := h.catalogs.BulkAddProducts(c.UserContext(), middleware.Subject(c), id, req.Products, req.ExistingProductIDs)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(products)
}

// RemoveProduct deletes a product from the catalog.
func (h *CatalogHandler) RemoveProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "catalog")
	if err != nil {
		return err
	}
	productID, err := paramID(c, "productId", "product")
	if err != nil {
		return err
	}

	if err := h.catalogs.RemoveProduct(c.UserContext(), middleware.Subject(c), id, productID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "product removed"})
}

type reorderRequest struct {
	ProductIDs []string `json:"productIds"`
}

// ReorderProducts replaces the display order of the catalog's products.
func (h *CatalogHandler) ReorderProducts(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "catalog")
	if err != nil {
		return err
	}

	var req reorderRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	products, err := h.catalogs.ReorderProducts(c.UserContext(), middleware.Subject(c), id, req.ProductIDs)
	if err != nil {
		return err
	}
	return c.JSON(products)
}
