package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
)

func newTestAuthService(t *testing.T) (*AuthService, *MockUserRepository, *MockPreferenceRepository, *MockTokenIssuer) {
	t.Helper()
	userRepo := new(MockUserRepository)
	prefRepo := new(MockPreferenceRepository)
	tokens := new(MockTokenIssuer)
	svc, err := NewAuthService(userRepo, prefRepo, tokens)
	require.NoError(t, err)
	return svc, userRepo, prefRepo, tokens
}

func TestAuthService_Register_Success(t *testing.T) {
	// Arrange
	svc, userRepo, prefRepo, _ := newTestAuthService(t)
	ctx := context.Background()

	userRepo.On("GetByUsername", ctx, "alice@example.com").Return(nil, apperrors.ErrNotFound)
	userRepo.On("Create", ctx, mock.AnythingOfType("*entity.User")).
		Run(func(args mock.Arguments) { args.Get(1).(*entity.User).ID = 7 }).
		Return(nil)
	prefRepo.On("GetOrCreate", ctx, uint(7)).Return(entity.NewUserPreference(7), nil)

	// Act
	user, err := svc.Register(ctx, RegisterInput{
		Username: "  Alice@Example.com ",
		Password: "secret123",
		FullName: " Alice ",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(7), user.ID)
	assert.Equal(t, "alice@example.com", user.Username)
	assert.Equal(t, "Alice", user.FullName)
	assert.Equal(t, entity.RoleUser, user.Role)
	userRepo.AssertExpectations(t)
	prefRepo.AssertExpectations(t)
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	// Arrange
	svc, userRepo, _, _ := newTestAuthService(t)
	ctx := context.Background()
	userRepo.On("GetByUsername", ctx, "bob@example.com").Return(&entity.User{ID: 1}, nil)

	// Act
	_, err := svc.Register(ctx, RegisterInput{Username: "bob@example.com", Password: "secret123"})

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)

	cases := map[string]RegisterInput{
		"not an email":   {Username: "bob", Password: "secret123"},
		"short password": {Username: "bob@example.com", Password: "123"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), input)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	// Arrange
	svc, userRepo, _, tokens := newTestAuthService(t)
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &entity.User{ID: 3, Username: "carol@example.com", Password: string(hash), Role: entity.RoleUser}

	userRepo.On("GetByUsername", ctx, "carol@example.com").Return(user, nil)
	userRepo.On("GetByUsername", ctx, "ghost@example.com").Return(nil, apperrors.ErrNotFound)
	tokens.On("GenerateToken", user).Return("signed-token", nil)

	// Act
	ok, okErr := svc.Login(ctx, "Carol@example.com", "secret123")
	_, wrongErr := svc.Login(ctx, "carol@example.com", "nope")
	_, ghostErr := svc.Login(ctx, "ghost@example.com", "secret123")

	// Assert
	require.NoError(t, okErr)
	assert.Equal(t, "signed-token", ok.Token)
	assert.Equal(t, uint(3), ok.User.ID)
	assert.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	assert.ErrorIs(t, ghostErr, ErrInvalidCredentials)
	tokens.AssertNumberOfCalls(t, "GenerateToken", 1)
}
