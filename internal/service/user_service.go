package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/config"
	"github.com/hakraj/exboard/internal/mailer"
	"github.com/hakraj/exboard/internal/model"
	"github.com/hakraj/exboard/internal/repository"
	"github.com/hakraj/exboard/internal/response"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ErrRegNoTaken is returned when registering with an existing reg number.
var ErrRegNoTaken = errors.New("registration number already taken")

// UserService handles user account business logic.
type UserService struct {
	userRepo    *repository.UserRepository
	authService *AuthService
	mailer      *mailer.Mailer
	cfg         *config.Config
	log         zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	userRepo *repository.UserRepository,
	authService *AuthService,
	m *mailer.Mailer,
	cfg *config.Config,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		authService: authService,
		mailer:      m,
		cfg:         cfg,
		log:         log.With().Str("component", "user_service").Logger(),
	}
}

// Register creates a new student account.
func (s *UserService) Register(ctx context.Context, name, regNo, email, password string) (*model.User, error) {
	if _, err := s.userRepo.GetByRegNo(ctx, regNo); err == nil {
		return nil, ErrRegNoTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check reg_no: %w", err)
	}

	hash, err := s.authService.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Name:         name,
		RegNo:        regNo,
		Email:        email,
		Role:         model.RoleStudent,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate verifies reg number + password and returns the user.
func (s *UserService) Authenticate(ctx context.Context, regNo, password string) (*model.User, error) {
	user, err := s.userRepo.GetByRegNo(ctx, regNo)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.authService.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// UpdateProfile changes the caller's name and, when provided, password.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, name, password string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Name = name
	if password != "" {
		hash, err := s.authService.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// ForgotPassword issues a reset link when reg number and email match an
// account. It reports nothing to the caller either way, so the endpoint
// cannot be used to probe which registration numbers exist.
func (s *UserService) ForgotPassword(ctx context.Context, regNo, email string) error {
	user, err := s.userRepo.GetByRegNo(ctx, regNo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}
	if user.Email != email {
		return nil
	}

	token, err := s.authService.GenerateResetToken(user)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.cfg.PortalBaseURL, token)
	if !s.mailer.Enabled() {
		s.log.Info().Str("reg_no", regNo).Str("reset_url", resetURL).Msg("Mail disabled, reset link logged")
		return nil
	}
	if err := s.mailer.SendPasswordReset(user.Email, user.Name, resetURL); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// ResetPassword replaces the password of the user a valid reset token
// belongs to.
func (s *UserService) ResetPassword(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	hash, err := s.authService.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// List retrieves users with pagination, optionally filtered by role.
func (s *UserService) List(ctx context.Context, role *model.Role, page, perPage int) ([]model.User, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	users, total, err := s.userRepo.List(ctx, role, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if users == nil {
		users = []model.User{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return users, pagination, nil
}

// Delete removes a user account.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.userRepo.Delete(ctx, id)
}

// Promote elevates a user to the admin role.
func (s *UserService) Promote(ctx context.Context, id uuid.UUID) error {
	return s.userRepo.SetRole(ctx, id, model.RoleAdmin)
}
