//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"

	"chatline/auth"
	"chatline/errors"
	"chatline/repositories"
)

type IAuthService interface {
	Register(name, email, password string) (Token, error)
	Login(email, password string) (Token, error)
}

type Token string

type AuthService struct {
	users repositories.IUserRepository
	gate  *auth.Gate
}

func NewAuthService(users repositories.IUserRepository, gate *auth.Gate) IAuthService {
	return &AuthService{users: users, gate: gate}
}

func (s *AuthService) Register(name, email, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}

	// Business rules first, before any expensive cryptographic work.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing happens here so the repository never sees a plain password.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.users.CreateUser(name, email, hashedPassword)
	if err != nil {
		return "", err
	}

	token, err := s.gate.GenerateToken(userID)
	if err != nil {
		return "", err
	}
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	// A generic error on every failure path prevents user enumeration.
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.gate.GenerateToken(user.ID)
	if err != nil {
		return "", err
	}
	return Token(token), nil
}
