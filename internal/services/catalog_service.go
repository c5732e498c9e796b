package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/jewelry/internal/apperr"
	"github.com/example/jewelry/internal/models"
	"github.com/example/jewelry/internal/policy"
	"github.com/example/jewelry/internal/utils"
)

// CatalogOptions tune how visibility is evaluated.
type CatalogOptions struct {
	Mode policy.Mode
	// InMemoryFilter loads every catalog and filters in the application instead of
	// pushing the visibility predicate into SQL. It is a degraded mode for stores
	// that cannot run the subquery; results are identical.
	InMemoryFilter bool
}

// CatalogService owns catalogs, their products and product ordering.
type CatalogService struct {
	db       *gorm.DB
	notifier Notifier
	opts     CatalogOptions
	logger   *slog.Logger
}

// NewCatalogService constructs a CatalogService. notifier may be nil.
func NewCatalogService(db *gorm.DB, notifier Notifier, opts CatalogOptions, logger *slog.Logger) *CatalogService {
	if opts.Mode == "" {
		opts.Mode = policy.ModeCatalogScoped
	}
	return &CatalogService{db: db, notifier: notifier, opts: opts, logger: logger}
}

// CreateCatalogInput describes a new catalog. OwnerID defaults to the caller.
type CreateCatalogInput struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	OwnerID        string   `json:"ownerId"`
	AllowedUserIDs []string `json:"allowedUserIds"`
	IsPublic       bool     `json:"isPublic"`
}

// UpdateCatalogInput carries catalog edits; nil fields are left unchanged.
type UpdateCatalogInput struct {
	Name           *string   `json:"name"`
	Description    *string   `json:"description"`
	IsPublic       *bool     `json:"isPublic"`
	AllowedUserIDs *[]string `json:"allowedUserIds"`
}

// ProductInput describes a product to create.
type ProductInput struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Type             string          `json:"type"`
	SerialNumber     string          `json:"serialNumber"`
	ImageURL         string          `json:"imageUrl"`
	Price            decimal.Decimal `json:"price"`
	Weight           string          `json:"weight"`
	Height           string          `json:"height"`
	Clasp            string          `json:"clasp"`
	Size             string          `json:"size"`
	AvailableSizes   []string        `json:"availableSizes"`
	AvailableHeights []string        `json:"availableHeights"`
	AccessibleTo     []string        `json:"accessibleTo"`
	IsActive         *bool           `json:"isActive"`
}

// UpdateProductInput carries product edits; nil fields are left unchanged.
type UpdateProductInput struct {
	Name             *string          `json:"name"`
	Description      *string          `json:"description"`
	Type             *string          `json:"type"`
	SerialNumber     *string          `json:"serialNumber"`
	ImageURL         *string          `json:"imageUrl"`
	Price            *decimal.Decimal `json:"price"`
	Weight           *string          `json:"weight"`
	Height           *string          `json:"height"`
	Clasp            *string          `json:"clasp"`
	Size             *string          `json:"size"`
	AvailableSizes   *[]string        `json:"availableSizes"`
	AvailableHeights *[]string        `json:"availableHeights"`
	AccessibleTo     *[]string        `json:"accessibleTo"`
	IsActive         *bool            `json:"isActive"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CatalogID uuid.UUID
	Type      string
	Search    string
}

func withAllowedUsers(db *gorm.DB) *gorm.DB {
	return db.Preload("AllowedUsers")
}

func orderedProducts(db *gorm.DB) *gorm.DB {
	return db.Order("position asc, created_at asc")
}

// loadCatalog fetches a catalog with its allow-list.
func (s *CatalogService) loadCatalog(ctx context.Context, id uuid.UUID) (*models.Catalog, error) {
	var catalog models.Catalog
	if err := withAllowedUsers(s.db.WithContext(ctx)).First(&catalog, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "catalog")
	}
	return &catalog, nil
}

// editableCatalog fetches a catalog and checks the caller may change it.
func (s *CatalogService) editableCatalog(ctx context.Context, actor policy.Subject, id uuid.UUID) (*models.Catalog, error) {
	catalog, err := s.loadCatalog(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanEdit(catalog.View(), actor) {
		return nil, apperr.Forbidden("you cannot edit this catalog")
	}
	return catalog, nil
}

// resolveUsers canonicalizes raw ids and checks every one names an existing user.
func (s *CatalogService) resolveUsers(ctx context.Context, field string, raw []string) ([]uuid.UUID, error) {
	ids, invalid := policy.ParseIDs(raw)
	if len(invalid) > 0 {
		return nil, apperr.Validation("invalid user id", apperr.FieldError{
			Field:   field,
			Message: "invalid user id: " + strings.Join(invalid, ", "),
		})
	}
	if len(ids) == 0 {
		return ids, nil
	}

	var found int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}
	if found != int64(len(ids)) {
		return nil, apperr.Validation("unknown user id", apperr.FieldError{Field: field, Message: "one or more users do not exist"})
	}
	return ids, nil
}

// CreateCatalog persists a catalog and its allow-list, then notifies its readers.
func (s *CatalogService) CreateCatalog(ctx context.Context, actor policy.Subject, in CreateCatalogInput) (*models.Catalog, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("admin access required")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required", apperr.FieldError{Field: "name", Message: "name is required"})
	}

	ownerID := actor.UserID
	if strings.TrimSpace(in.OwnerID) != "" {
		owners, err := s.resolveUsers(ctx, "ownerId", []string{in.OwnerID})
		if err != nil {
			return nil, err
		}
		ownerID = owners[0]
	}

	allowed, err := s.resolveUsers(ctx, "allowedUserIds", in.AllowedUserIDs)
	if err != nil {
		return nil, err
	}

	catalog := models.Catalog{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		OwnerID:     ownerID,
		IsPublic:    in.IsPublic,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("AllowedUsers", "Products", "Owner").Create(&catalog).Error; err != nil {
			return fmt.Errorf("create catalog: %w", err)
		}
		catalog.SetAllowedUsers(allowed)
		return replaceAllowList(tx, catalog.ID, catalog.AllowedUsers)
	}); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.CatalogCreated(catalog)
	}
	return &catalog, nil
}

func replaceAllowList(tx *gorm.DB, catalogID uuid.UUID, rows []models.CatalogAllowedUser) error {
	if err := tx.Where("catalog_id = ?", catalogID).Delete(&models.CatalogAllowedUser{}).Error; err != nil {
		return fmt.Errorf("clear allow-list: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("write allow-list: %w", err)
	}
	return nil
}

// visibleCatalogIDs is a subquery selecting the ids of catalogs actor can read.
func (s *CatalogService) visibleCatalogIDs(ctx context.Context, actor policy.Subject) *gorm.DB {
	db := s.db.WithContext(ctx)
	allowed := db.Model(&models.CatalogAllowedUser{}).Select("catalog_id").Where("user_id = ?", actor.UserID)
	return db.Model(&models.Catalog{}).Select("id").
		Where("is_public = ? OR owner_id = ? OR id IN (?)", true, actor.UserID, allowed)
}

// ListCatalogs returns every catalog actor can read, newest first.
func (s *CatalogService) ListCatalogs(ctx context.Context, actor policy.Subject) ([]models.Catalog, error) {
	query := withAllowedUsers(s.db.WithContext(ctx)).Order("created_at desc")

	var catalogs []models.Catalog
	if actor.IsAdmin() || s.opts.InMemoryFilter {
		if err := query.Find(&catalogs).Error; err != nil {
			return nil, fmt.Errorf("list catalogs: %w", err)
		}
		catalogs = policy.ListAccessible(catalogs, func(c models.Catalog) policy.CatalogView { return c.View() }, actor)
	} else {
		if err := query.Where("id IN (?)", s.visibleCatalogIDs(ctx, actor)).Find(&catalogs).Error; err != nil {
			return nil, fmt.Errorf("list catalogs: %w", err)
		}
	}

	if err := s.attachProductCounts(ctx, catalogs, actor); err != nil {
		return nil, err
	}
	for i := range catalogs {
		hideAllowList(&catalogs[i], actor)
	}
	return catalogs, nil
}

// hideAllowList clears the allow-list for readers who cannot edit the catalog.
func hideAllowList(c *models.Catalog, actor policy.Subject) {
	if !policy.CanEdit(c.View(), actor) {
		c.AllowedUserIDs = []uuid.UUID{}
	}
}

func (s *CatalogService) attachProductCounts(ctx context.Context, catalogs []models.Catalog, actor policy.Subject) error {
	if len(catalogs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(catalogs))
	for _, c := range catalogs {
		ids = append(ids, c.ID)
	}

	type row struct {
		CatalogID uuid.UUID
		Count     int64
	}
	var rows []row
	query := s.db.WithContext(ctx).Model(&models.Product{}).
		Select("catalog_id, count(*) as count").
		Where("catalog_id IN ?", ids)
	if !actor.IsAdmin() {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Group("catalog_id").Scan(&rows).Error; err != nil {
		return fmt.Errorf("count products: %w", err)
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		counts[r.CatalogID] = r.Count
	}
	for i := range catalogs {
		catalogs[i].ProductCount = counts[catalogs[i].ID]
	}
	return nil
}

// GetCatalog returns a readable catalog with its ordered products.
// Readers who cannot edit the catalog only see active products.
func (s *CatalogService) GetCatalog(ctx context.Context, actor policy.Subject, id uuid.UUID) (*models.Catalog, error) {
	catalog, err := s.loadCatalog(ctx, id)
	if err != nil {
		return nil, err
	}
	view := catalog.View()
	if !policy.CanRead(view, actor) {
		return nil, apperr.Forbidden("you do not have access to this catalog")
	}

	query := orderedProducts(s.db.WithContext(ctx)).Where("catalog_id = ?", id)
	if !policy.CanEdit(view, actor) {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&catalog.Products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	catalog.ProductCount = int64(len(catalog.Products))
	hideAllowList(catalog, actor)

	return catalog, nil
}

// UpdateCatalog applies edits, including visibility and allow-list changes.
func (s *CatalogService) UpdateCatalog(ctx context.Context, actor policy.Subject, id uuid.UUID, in UpdateCatalogInput) (*models.Catalog, error) {
	catalog, err := s.editableCatalog(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("name is required", apperr.FieldError{Field: "name", Message: "name cannot be empty"})
		}
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.IsPublic != nil {
		updates["is_public"] = *in.IsPublic
	}

	var allowed []uuid.UUID
	if in.AllowedUserIDs != nil {
		if allowed, err = s.resolveUsers(ctx, "allowedUserIds", *in.AllowedUserIDs); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Catalog{}).Where("id = ?", catalog.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("update catalog: %w", err)
			}
		}
		if in.AllowedUserIDs != nil {
			catalog.SetAllowedUsers(allowed)
			return replaceAllowList(tx, catalog.ID, catalog.AllowedUsers)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.GetCatalog(ctx, actor, id)
}

// UpdatePermissions replaces the visibility flag and allow-list.
func (s *CatalogService) UpdatePermissions(ctx context.Context, actor policy.Subject, id uuid.UUID, isPublic *bool, allowedUserIDs []string) (*models.Catalog, error) {
	if allowedUserIDs == nil {
		allowedUserIDs = []string{}
	}
	return s.UpdateCatalog(ctx, actor, id, UpdateCatalogInput{IsPublic: isPublic, AllowedUserIDs: &allowedUserIDs})
}

// DeleteCatalog removes a catalog, its allow-list and all of its products.
// Orders keep their snapshots.
func (s *CatalogService) DeleteCatalog(ctx context.Context, actor policy.Subject, id uuid.UUID) error {
	catalog, err := s.editableCatalog(ctx, actor, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("catalog_id = ?", catalog.ID).Delete(&models.Product{}).Error; err != nil {
			return fmt.Errorf("delete products: %w", err)
		}
		if err := tx.Where("catalog_id = ?", catalog.ID).Delete(&models.CatalogAllowedUser{}).Error; err != nil {
			return fmt.Errorf("delete allow-list: %w", err)
		}
		if err := tx.Delete(&models.Catalog{}, "id = ?", catalog.ID).Error; err != nil {
			return fmt.Errorf("delete catalog: %w", err)
		}
		return nil
	})
}

func (s *CatalogService) validateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	var fields apperr.Fields
	if strings.TrimSpace(in.Name) == "" {
		fields.Add("name", "name is required")
	}
	if strings.TrimSpace(in.SerialNumber) == "" {
		fields.Add("serialNumber", "serialNumber is required")
	}
	if in.Price.IsNegative() {
		fields.Add("price", "price cannot be negative")
	}
	accessibleTo, invalid := policy.ParseIDs(in.AccessibleTo)
	if len(invalid) > 0 {
		fields.Add("accessibleTo", "invalid user id: "+strings.Join(invalid, ", "))
	}
	if err := fields.Err("invalid product"); err != nil {
		return nil, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	return &models.Product{
		Name:             strings.TrimSpace(in.Name),
		Description:      strings.TrimSpace(in.Description),
		Type:             strings.TrimSpace(in.Type),
		SerialNumber:     strings.TrimSpace(in.SerialNumber),
		ImageURL:         in.ImageURL,
		Price:            in.Price.Round(2),
		Weight:           in.Weight,
		Height:           in.Height,
		Clasp:            in.Clasp,
		Size:             in.Size,
		AvailableSizes:   in.AvailableSizes,
		AvailableHeights: in.AvailableHeights,
		AccessibleTo:     accessibleTo,
		IsActive:         active,
	}, nil
}

func (s *CatalogService) serialTaken(ctx context.Context, serials []string, excludeID uuid.UUID) (string, error) {
	if len(serials) == 0 {
		return "", nil
	}
	var taken []string
	query := s.db.WithContext(ctx).Model(&models.Product{}).Where("serial_number IN ?", serials)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Limit(1).Pluck("serial_number", &taken).Error; err != nil {
		return "", fmt.Errorf("check serial number: %w", err)
	}
	if len(taken) > 0 {
		return taken[0], nil
	}
	return "", nil
}

func nextPosition(tx *gorm.DB, catalogID uuid.UUID) (int, error) {
	var last int64
	if err := tx.Model(&models.Product{}).Where("catalog_id = ?", catalogID).
		Select("COALESCE(MAX(position), -1)").Row().Scan(&last); err != nil {
		return 0, fmt.Errorf("read product positions: %w", err)
	}
	return int(last) + 1, nil
}

// AddProduct creates a product at the end of the catalog's ordering.
func (s *CatalogService) AddProduct(ctx context.Context, actor policy.Subject, catalogID uuid.UUID, in ProductInput) (*models.Product, error) {
	catalog, err := s.editableCatalog(ctx, actor, catalogID)
	if err != nil {
		return nil, err
	}

	product, err := s.validateProduct(ctx, in)
	if err != nil {
		return nil, err
	}

	if taken, err := s.serialTaken(ctx, []string{product.SerialNumber}, uuid.Nil); err != nil {
		return nil, err
	} else if taken != "" {
		return nil, apperr.Conflict("serial number " + taken + " already exists")
	}

	product.CatalogID = catalog.ID
	product.CreatedBy = actor.UserID

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pos, err := nextPosition(tx, catalog.ID)
		if err != nil {
			return err
		}
		product.Position = pos
		return tx.Create(product).Error
	}); err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict("serial number " + product.SerialNumber + " already exists")
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ProductAdded(*catalog, *product)
	}
	return product, nil
}

// BulkAddProducts creates newProducts and moves existingIDs into the catalog,
// appending each to the ordering once. Products already in the catalog are left in place.
func (s *CatalogService) BulkAddProducts(ctx context.Context, actor policy.Subject, catalogID uuid.UUID, newProducts []ProductInput, existingIDs []string) ([]models.Product, error) {
	catalog, err := s.editableCatalog(ctx, actor, catalogID)
	if err != nil {
		return nil, err
	}

	created := make([]*models.Product, 0, len(newProducts))
	serials := make([]string, 0, len(newProducts))
	seenSerial := make(map[string]struct{}, len(newProducts))
	for i, in := range newProducts {
		product, err := s.validateProduct(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		if _, dup := seenSerial[product.SerialNumber]; dup {
			return nil, apperr.Conflict("serial number " + product.SerialNumber + " appears more than once")
		}
		seenSerial[product.SerialNumber] = struct{}{}
		product.CatalogID = catalog.ID
		product.CreatedBy = actor.UserID
		created = append(created, product)
		serials = append(serials, product.SerialNumber)
	}
	if taken, err := s.serialTaken(ctx, serials, uuid.Nil); err != nil {
		return nil, err
	} else if taken != "" {
		return nil, apperr.Conflict("serial number " + taken + " already exists")
	}

	ids, invalid := policy.ParseIDs(existingIDs)
	if len(invalid) > 0 {
		return nil, apperr.Validation("invalid product id", apperr.FieldError{
			Field:   "existingProductIds",
			Message: "invalid product id: " + strings.Join(invalid, ", "),
		})
	}

	var existing []models.Product
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&existing).Error; err != nil {
			return nil, fmt.Errorf("load products: %w", err)
		}
		if len(existing) != len(ids) {
			return nil, apperr.NotFound("one or more products not found")
		}
	}

	moving := make([]models.Product, 0, len(existing))
	checked := map[uuid.UUID]bool{catalog.ID: true}
	for _, p := range existing {
		if p.CatalogID == catalog.ID {
			continue
		}
		if ok, seen := checked[p.CatalogID]; seen {
			if !ok {
				return nil, apperr.Forbidden("you cannot move products out of catalog " + p.CatalogID.String())
			}
		} else {
			source, err := s.loadCatalog(ctx, p.CatalogID)
			if err != nil && !apperr.Is(err, apperr.KindNotFound) {
				return nil, err
			}
			// A product whose catalog no longer exists is an orphan and may be adopted.
			ok := source == nil || policy.CanEdit(source.View(), actor)
			checked[p.CatalogID] = ok
			if !ok {
				return nil, apperr.Forbidden("you cannot move products out of catalog " + p.CatalogID.String())
			}
		}
		moving = append(moving, p)
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pos, err := nextPosition(tx, catalog.ID)
		if err != nil {
			return err
		}
		for _, p := range created {
			p.Position = pos
			pos++
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}
		for i := range moving {
			moving[i].CatalogID = catalog.ID
			moving[i].Position = pos
			pos++
			if err := tx.Model(&models.Product{}).Where("id = ?", moving[i].ID).
				Updates(map[string]interface{}{"catalog_id": catalog.ID, "position": moving[i].Position}).Error; err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict("serial number already exists")
		}
		return nil, fmt.Errorf("bulk add products: %w", err)
	}

	if s.notifier != nil {
		for _, p := range created {
			s.notifier.ProductAdded(*catalog, *p)
		}
		for _, p := range moving {
			s.notifier.ProductAdded(*catalog, p)
		}
	}

	var products []models.Product
	if err := orderedProducts(s.db.WithContext(ctx)).Where("catalog_id = ?", catalog.ID).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	return products, nil
}

// AssignProduct moves a product to another catalog, appending it to that ordering.
func (s *CatalogService) AssignProduct(ctx context.Context, actor policy.Subject, productID, catalogID uuid.UUID) (*models.Product, error) {
	if _, err := s.BulkAddProducts(ctx, actor, catalogID, nil, []string{productID.String()}); err != nil {
		return nil, err
	}
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		return nil, lookupErr(err, "product")
	}
	return &product, nil
}

// ReorderProducts replaces the catalog's ordering. productIDs must name exactly
// the catalog's current products, each once.
func (s *CatalogService) ReorderProducts(ctx context.Context, actor policy.Subject, catalogID uuid.UUID, productIDs []string) ([]models.Product, error) {
	catalog, err := s.editableCatalog(ctx, actor, catalogID)
	if err != nil {
		return nil, err
	}

	ids, invalid := policy.ParseIDs(productIDs)
	if len(invalid) > 0 {
		return nil, apperr.Validation("invalid product id", apperr.FieldError{
			Field:   "productIds",
			Message: "invalid product id: " + strings.Join(invalid, ", "),
		})
	}
	if len(ids) != len(productIDs) {
		return nil, apperr.Validation("duplicate product id", apperr.FieldError{Field: "productIds", Message: "each product must appear once"})
	}

	var current []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("catalog_id = ?", catalog.ID).Pluck("id", &current).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	currentSet := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	mismatch := len(ids) != len(current)
	for _, id := range ids {
		if _, ok := currentSet[id]; !ok {
			mismatch = true
			break
		}
	}
	if mismatch {
		return nil, apperr.Validation("product list does not match catalog", apperr.FieldError{
			Field:   "productIds",
			Message: "must list exactly the catalog's current products",
		})
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for pos, id := range ids {
			if err := tx.Model(&models.Product{}).Where("id = ?", id).Update("position", pos).Error; err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("reorder products: %w", err)
	}

	var products []models.Product
	if err := orderedProducts(s.db.WithContext(ctx)).Where("catalog_id = ?", catalog.ID).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	return products, nil
}

// RemoveProduct deletes a product that belongs to the given catalog.
func (s *CatalogService) RemoveProduct(ctx context.Context, actor policy.Subject, catalogID, productID uuid.UUID) error {
	catalog, err := s.editableCatalog(ctx, actor, catalogID)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Where("id = ? AND catalog_id = ?", productID, catalog.ID).Delete(&models.Product{})
	if res.Error != nil {
		return fmt.Errorf("delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product not found")
	}
	return nil
}

// CreateProduct is AddProduct addressed by a catalog id carried in the body.
func (s *CatalogService) CreateProduct(ctx context.Context, actor policy.Subject, catalogID string, in ProductInput) (*models.Product, error) {
	id, ok := policy.ParseID(catalogID)
	if !ok {
		return nil, apperr.Validation("catalogId is required", apperr.FieldError{Field: "catalogId", Message: "a valid catalogId is required"})
	}
	return s.AddProduct(ctx, actor, id, in)
}

// loadProduct fetches a product and its catalog. The catalog is nil for orphans.
func (s *CatalogService) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, *models.Catalog, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, nil, lookupErr(err, "product")
	}
	catalog, err := s.loadCatalog(ctx, product.CatalogID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return &product, nil, nil
		}
		return nil, nil, err
	}
	return &product, catalog, nil
}

// GetProduct returns a product the caller may read.
func (s *CatalogService) GetProduct(ctx context.Context, actor policy.Subject, id uuid.UUID) (*models.Product, error) {
	product, catalog, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	var view policy.CatalogView
	if catalog != nil {
		view = catalog.View()
	}
	if !policy.CanReadProduct(s.opts.Mode, view, product.AccessibleTo, actor) {
		return nil, apperr.Forbidden("you do not have access to this product")
	}
	if !product.IsActive && !policy.CanEdit(view, actor) {
		return nil, apperr.NotFound("product not found")
	}
	return product, nil
}

// ListProducts returns one page of products the caller may read.
func (s *CatalogService) ListProducts(ctx context.Context, actor policy.Subject, filter ProductFilter, pg utils.Pagination) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})

	if !actor.IsAdmin() {
		visible := s.visibleCatalogIDs(ctx, actor)
		if s.opts.Mode == policy.ModeLegacyProductScoped {
			query = query.Where("catalog_id IN (?) OR accessible_to LIKE ?", visible, "%"+actor.UserID.String()+"%")
		} else {
			query = query.Where("catalog_id IN (?)", visible)
		}
		query = query.Where("is_active = ?", true)
	}

	if filter.CatalogID != uuid.Nil {
		query = query.Where("catalog_id = ?", filter.CatalogID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		q := likePattern(search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(serial_number) LIKE ?", q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	var products []models.Product
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	return products, total, nil
}

// UpdateProduct applies edits to a product in a catalog the caller can edit.
func (s *CatalogService) UpdateProduct(ctx context.Context, actor policy.Subject, id uuid.UUID, in UpdateProductInput) (*models.Product, error) {
	product, catalog, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if catalog == nil && !actor.IsAdmin() || catalog != nil && !policy.CanEdit(catalog.View(), actor) {
		return nil, apperr.Forbidden("you cannot edit this product")
	}

	updates := map[string]interface{}{}
	var fields apperr.Fields

	setString := func(column string, v *string) {
		if v != nil {
			updates[column] = strings.TrimSpace(*v)
		}
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		fields.Add("name", "name cannot be empty")
	}
	if in.SerialNumber != nil && strings.TrimSpace(*in.SerialNumber) == "" {
		fields.Add("serialNumber", "serialNumber cannot be empty")
	}
	if in.Price != nil && in.Price.IsNegative() {
		fields.Add("price", "price cannot be negative")
	}
	var accessibleTo []uuid.UUID
	if in.AccessibleTo != nil {
		var invalid []string
		accessibleTo, invalid = policy.ParseIDs(*in.AccessibleTo)
		if len(invalid) > 0 {
			fields.Add("accessibleTo", "invalid user id: "+strings.Join(invalid, ", "))
		}
	}
	if err := fields.Err("invalid product"); err != nil {
		return nil, err
	}

	setString("name", in.Name)
	setString("description", in.Description)
	setString("type", in.Type)
	setString("serial_number", in.SerialNumber)
	setString("image_url", in.ImageURL)
	setString("weight", in.Weight)
	setString("height", in.Height)
	setString("clasp", in.Clasp)
	setString("size", in.Size)
	if in.Price != nil {
		updates["price"] = in.Price.Round(2)
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}

	if in.SerialNumber != nil {
		serial := strings.TrimSpace(*in.SerialNumber)
		if taken, err := s.serialTaken(ctx, []string{serial}, product.ID); err != nil {
			return nil, err
		} else if taken != "" {
			return nil, apperr.Conflict("serial number " + taken + " already exists")
		}
	}

	// Serialized columns go through the model so gorm applies the json serializer.
	if in.AvailableSizes != nil {
		product.AvailableSizes = *in.AvailableSizes
	}
	if in.AvailableHeights != nil {
		product.AvailableHeights = *in.AvailableHeights
	}
	if in.AccessibleTo != nil {
		product.AccessibleTo = accessibleTo
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Product{}).Where("id = ?", product.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if in.AvailableSizes != nil || in.AvailableHeights != nil || in.AccessibleTo != nil {
			return tx.Model(product).Select("AvailableSizes", "AvailableHeights", "AccessibleTo").Updates(product).Error
		}
		return nil
	}); err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict("serial number already exists")
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	var updated models.Product
	if err := s.db.WithContext(ctx).First(&updated, "id = ?", product.ID).Error; err != nil {
		return nil, lookupErr(err, "product")
	}
	return &updated, nil
}

// DeleteProduct removes a product from whichever catalog holds it.
func (s *CatalogService) DeleteProduct(ctx context.Context, actor policy.Subject, id uuid.UUID) error {
	product, catalog, err := s.loadProduct(ctx, id)
	if err != nil {
		return err
	}
	if catalog == nil {
		if !actor.IsAdmin() {
			return apperr.Forbidden("you cannot delete this product")
		}
		return s.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", product.ID).Error
	}
	return s.RemoveProduct(ctx, actor, catalog.ID, product.ID)
}

// CanReadCatalog is the read check exposed to other services.
func (s *CatalogService) CanReadCatalog(ctx context.Context, actor policy.Subject, id uuid.UUID) (*models.Catalog, error) {
	catalog, err := s.loadCatalog(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanRead(catalog.View(), actor) {
		return nil, apperr.Forbidden("you do not have access to this catalog")
	}
	return catalog, nil
}
