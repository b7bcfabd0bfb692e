package services_test

import (
	"testing"
	"time"

	"chatline/auth"
	"chatline/errors"
	"chatline/mocks"
	"chatline/repositories"
	"chatline/services"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testPassword = "Chatline#2024"

func newAuthFixture(t *testing.T) (services.IAuthService, *mocks.MockIUserRepository, *auth.Gate) {
	t.Helper()
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	gate := auth.NewGate("test-secret", time.Hour)
	return services.NewAuthService(users, gate), users, gate
}

func TestAuthService_Register_ReturnsUsableToken(t *testing.T) {
	req := require.New(t)
	service, users, gate := newAuthFixture(t)

	users.EXPECT().
		CreateUser("Alice", "alice@example.com", gomock.Any()).
		DoAndReturn(func(name, email, hashedPassword string) (string, error) {
			// The repository must only ever see the argon2id hash.
			req.NotEqual(testPassword, hashedPassword)
			req.Contains(hashedPassword, "$argon2id$")
			return "user-42", nil
		})

	token, err := service.Register("Alice", "alice@example.com", testPassword)
	req.NoError(err)

	userID, err := gate.Authenticate(string(token))
	req.NoError(err)
	req.Equal("user-42", userID)
}

func TestAuthService_Register_WeakPasswordRejectedBeforeStorage(t *testing.T) {
	req := require.New(t)
	service, _, _ := newAuthFixture(t)

	// No CreateUser expectation: validation fails first.
	_, err := service.Register("Alice", "alice@example.com", "short")
	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	req := require.New(t)
	service, users, _ := newAuthFixture(t)

	users.EXPECT().
		CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.ErrUserAlreadyExists)

	_, err := service.Register("Alice", "alice@example.com", testPassword)
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestAuthService_Login_Succeeds(t *testing.T) {
	req := require.New(t)
	service, users, gate := newAuthFixture(t)

	hash, err := auth.HashPassword(testPassword)
	req.NoError(err)
	users.EXPECT().
		GetUserByEmail("alice@example.com").
		Return(repositories.User{ID: "user-42", Email: "alice@example.com", PasswordHash: hash}, nil)

	token, err := service.Login("alice@example.com", testPassword)
	req.NoError(err)

	userID, err := gate.Authenticate(string(token))
	req.NoError(err)
	req.Equal("user-42", userID)
}

func TestAuthService_Login_FailuresAreIndistinguishable(t *testing.T) {
	req := require.New(t)
	service, users, _ := newAuthFixture(t)

	hash, err := auth.HashPassword(testPassword)
	req.NoError(err)

	// Unknown email and wrong password must yield the same error.
	users.EXPECT().
		GetUserByEmail("ghost@example.com").
		Return(repositories.User{}, errors.ErrInvalidCredentials)
	_, errUnknown := service.Login("ghost@example.com", testPassword)

	users.EXPECT().
		GetUserByEmail("alice@example.com").
		Return(repositories.User{ID: "user-42", PasswordHash: hash}, nil)
	_, errWrongPassword := service.Login("alice@example.com", "Wrong#Pass1")

	req.ErrorIs(errUnknown, errors.ErrInvalidCredentials)
	req.ErrorIs(errWrongPassword, errors.ErrInvalidCredentials)
	req.Equal(errUnknown, errWrongPassword)
}
