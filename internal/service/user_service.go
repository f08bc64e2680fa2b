package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/repository"
)

// UserService exposes user lookups and provisioning.
type UserService interface {
	Me(ctx context.Context, actor Actor) (dto.UserResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.UserCreateRequest) (dto.UserResponse, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	sanitizer textSanitizer
	logger    zerolog.Logger
}

// NewUserService builds the user service.
func NewUserService(repo repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		validator: validate,
		sanitizer: newTextSanitizer(),
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Me(ctx context.Context, actor Actor) (dto.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) Create(ctx context.Context, actor Actor, payload dto.UserCreateRequest) (dto.UserResponse, error) {
	if !actor.IsInstructor() {
		return dto.UserResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return dto.UserResponse{}, ErrConflict
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Email:        email,
		Name:         s.sanitizer.Plain(payload.Name),
		IsInstructor: payload.IsInstructor,
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Uint("created_by", actor.ID).Msg("user provisioned")
	return dto.NewUserResponse(user), nil
}
