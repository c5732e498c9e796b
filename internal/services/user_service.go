package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/jewelry/internal/apperr"
	"github.com/example/jewelry/internal/models"
	"github.com/example/jewelry/internal/policy"
	"github.com/example/jewelry/internal/utils"
)

// UserService owns user accounts, credentials and push registrations.
type UserService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, logger *slog.Logger) *UserService {
	return &UserService{db: db, logger: logger}
}

// RegisterInput is a self-service sign-up.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// CreateUserInput is an admin-created account.
type CreateUserInput struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Name     string      `json:"name"`
	Phone    string      `json:"phone"`
	Role     policy.Role `json:"role"`
	IsActive *bool       `json:"isActive"`
}

// Register creates a regular, active account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.Create(ctx, CreateUserInput{
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
		Phone:    in.Phone,
		Role:     policy.RoleUser,
	})
}

// Create validates and persists a new account.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = policy.RoleUser
	}

	var fields apperr.Fields
	if email == "" {
		fields.Add("email", "email is required")
	} else if !validEmail(email) {
		fields.Add("email", "email is invalid")
	}
	if len(in.Password) < utils.MinPasswordLength {
		fields.Add("password", fmt.Sprintf("password must be at least %d characters", utils.MinPasswordLength))
	}
	if strings.TrimSpace(in.Name) == "" {
		fields.Add("name", "name is required")
	}
	if !in.Role.Valid() {
		fields.Add("role", "role must be user or admin")
	}
	if err := fields.Err("invalid user"); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, apperr.Conflict("user with this email already exists")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	user := models.User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     active,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict("user with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &user, nil
}

// InviteInput is an admin invitation; the password is generated.
type InviteInput struct {
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Phone string      `json:"phone"`
	Role  policy.Role `json:"role"`
}

// Invite creates an account with a temporary password which is returned once.
func (s *UserService) Invite(ctx context.Context, in InviteInput) (*models.User, string, error) {
	password, err := utils.GenerateTempPassword(12)
	if err != nil {
		return nil, "", fmt.Errorf("generate password: %w", err)
	}
	user, err := s.Create(ctx, CreateUserInput{
		Email:    in.Email,
		Password: password,
		Name:     in.Name,
		Phone:    in.Phone,
		Role:     in.Role,
	})
	if err != nil {
		return nil, "", err
	}
	return user, password, nil
}

// Login verifies credentials. Unknown email and wrong password are indistinguishable.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("account is disabled")
	}

	return &user, nil
}

// Get loads one user.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "user")
	}
	return &user, nil
}

// UserFilter narrows admin listings.
type UserFilter struct {
	Search string
	Role   policy.Role
	Active *bool
}

// List returns one page of users and the total matching the filter.
func (s *UserService) List(ctx context.Context, filter UserFilter, pg utils.Pagination) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})

	if filter.Search != "" {
		q := likePattern(filter.Search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", q, q, q)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

// UpdateUserInput carries admin edits; nil fields are left unchanged.
type UpdateUserInput struct {
	Name  *string      `json:"name"`
	Phone *string      `json:"phone"`
	Email *string      `json:"email"`
	Role  *policy.Role `json:"role"`
}

// Update applies admin edits.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	var fields apperr.Fields
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			fields.Add("name", "name cannot be empty")
		}
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if !validEmail(email) {
			fields.Add("email", "email is invalid")
		}
		updates["email"] = email
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			fields.Add("role", "role must be user or admin")
		}
		updates["role"] = *in.Role
	}
	if err := fields.Err("invalid user"); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, apperr.Validation("no fields to update")
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict("user with this email already exists")
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return s.Get(ctx, id)
}

// ProfileInput carries self-service edits. Changing the password requires the current one.
type ProfileInput struct {
	Name            *string `json:"name"`
	Phone           *string `json:"phone"`
	Password        *string `json:"password"`
	CurrentPassword string  `json:"currentPassword"`
}

// UpdateProfile lets users edit their own account.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	var fields apperr.Fields
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			fields.Add("name", "name cannot be empty")
		}
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Password != nil {
		if len(*in.Password) < utils.MinPasswordLength {
			fields.Add("password", fmt.Sprintf("password must be at least %d characters", utils.MinPasswordLength))
		} else if !utils.CheckPassword(user.PasswordHash, in.CurrentPassword) {
			fields.Add("currentPassword", "current password is incorrect")
		} else {
			hash, err := utils.HashPassword(*in.Password)
			if err != nil {
				return nil, fmt.Errorf("hash password: %w", err)
			}
			updates["password_hash"] = hash
		}
	}
	if err := fields.Err("invalid profile"); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, apperr.Validation("no fields to update")
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.Get(ctx, id)
}

// SetActive enables or disables an account. Admins cannot disable themselves.
func (s *UserService) SetActive(ctx context.Context, actor policy.Subject, id uuid.UUID, active bool) (*models.User, error) {
	if !active && actor.UserID == id {
		return nil, apperr.InvalidState("you cannot deactivate your own account")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("update user status: %w", err)
	}
	user.IsActive = active
	return user, nil
}

// Delete removes an account together with every reference that would grant it
// access: allow-list rows, push tokens and notifications. Orders are kept.
func (s *UserService) Delete(ctx context.Context, actor policy.Subject, id uuid.UUID) error {
	if actor.UserID == id {
		return apperr.InvalidState("you cannot delete your own account")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.CatalogAllowedUser{}).Error; err != nil {
			return fmt.Errorf("remove allow-list entries: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.PushToken{}).Error; err != nil {
			return fmt.Errorf("remove push tokens: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Notification{}).Error; err != nil {
			return fmt.Errorf("remove notifications: %w", err)
		}
		if err := tx.Delete(&models.User{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if count > 0 {
		return nil
	}

	if _, err := s.Create(ctx, CreateUserInput{
		Email:    email,
		Password: password,
		Name:     "Administrator",
		Role:     policy.RoleAdmin,
	}); err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", "email", email)
	return nil
}

// ActivePrincipals returns every active account for recipient selection.
func (s *UserService) ActivePrincipals(ctx context.Context) ([]policy.Principal, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Select("id", "role", "is_active").
		Where("is_active = ?", true).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	out := make([]policy.Principal, 0, len(users))
	for i := range users {
		out = append(out, users[i].Principal())
	}
	return out, nil
}

// AddPushToken registers a device token for the user. A token already bound to
// another account is moved to this one.
func (s *UserService) AddPushToken(ctx context.Context, userID uuid.UUID, token, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation("token is required", apperr.FieldError{Field: "token", Message: "token is required"})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("token = ?", token).Delete(&models.PushToken{}).Error; err != nil {
			return fmt.Errorf("clear push token: %w", err)
		}
		return tx.Create(&models.PushToken{UserID: userID, Token: token, Platform: platform}).Error
	})
}

// RemovePushToken drops a device registration owned by the user.
func (s *UserService) RemovePushToken(ctx context.Context, userID uuid.UUID, token string) error {
	return s.db.WithContext(ctx).Where("user_id = ? AND token = ?", userID, strings.TrimSpace(token)).
		Delete(&models.PushToken{}).Error
}

// PushTokens lists the device tokens registered for a user.
func (s *UserService) PushTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var tokens []string
	if err := s.db.WithContext(ctx).Model(&models.PushToken{}).
		Where("user_id = ?", userID).Pluck("token", &tokens).Error; err != nil {
		return nil, fmt.Errorf("list push tokens: %w", err)
	}
	return tokens, nil
}
