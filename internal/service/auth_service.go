package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/domain/repository"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
	"github.com/lekenzi/QuizNexus/pkg/auth"
)

const minPasswordLength = 6

// TokenIssuer выпускает токены доступа
type TokenIssuer interface {
	GenerateToken(user *entity.User) (string, error)
}

// AuthService предоставляет регистрацию и вход пользователей
type AuthService struct {
	userRepo repository.UserRepository
	prefRepo repository.PreferenceRepository
	tokens   TokenIssuer
}

// RegisterInput содержит данные для регистрации
type RegisterInput struct {
	Username      string     `json:"username" binding:"required"`
	Password      string     `json:"password" binding:"required"`
	FullName      string     `json:"full_name"`
	Qualification string     `json:"qualification"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
}

// AuthResult - результат успешного входа
type AuthResult struct {
	User  *entity.User `json:"user"`
	Token string       `json:"access_token"`
}

// NewAuthService создает новый сервис аутентификации
func NewAuthService(userRepo repository.UserRepository, prefRepo repository.PreferenceRepository, tokens TokenIssuer) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for AuthService")
	}
	if tokens == nil {
		return nil, fmt.Errorf("TokenIssuer is required for AuthService")
	}
	return &AuthService{userRepo: userRepo, prefRepo: prefRepo, tokens: tokens}, nil
}

var _ TokenIssuer = (*auth.JWTService)(nil)

// Register создает пользователя с ролью user и настройки уведомлений по умолчанию
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*entity.User, error) {
	username := normalizeUsername(input.Username)
	if _, err := mail.ParseAddress(username); err != nil {
		return nil, fmt.Errorf("%w: username must be an email address", apperrors.ErrValidation)
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLength)
	}

	_, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return nil, fmt.Errorf("%w: user with this username already exists", apperrors.ErrConflict)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}

	user := &entity.User{
		Username:      username,
		Password:      input.Password, // хешируется в BeforeSave
		FullName:      strings.TrimSpace(input.FullName),
		Qualification: strings.TrimSpace(input.Qualification),
		DateOfBirth:   input.DateOfBirth,
		Role:          entity.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.prefRepo != nil {
		if _, err := s.prefRepo.GetOrCreate(ctx, user.ID); err != nil {
			// Настройки создадутся при первом тике напоминаний
			log.Printf("[AuthService] Не удалось создать настройки для пользователя ID=%d: %v", user.ID, err)
		}
	}

	log.Printf("[AuthService] Зарегистрирован пользователь ID=%d (%s)", user.ID, user.Username)
	return user, nil
}

// Login проверяет пароль и выпускает токен доступа
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByUsername(ctx, normalizeUsername(username))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
