// Package service provides the login business logic, delegating token
// exchange to the registry broker and bundle sealing to the envelope cipher.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/HubViewer/internal/models"
)

// ErrMissingFields is returned when a login request lacks required fields.
var ErrMissingFields = errors.New("missing required fields")

// TokenExchanger defines the registry operations required by the service.
type TokenExchanger interface {
	// ObtainToken exchanges user credentials for a bearer token.
	ObtainToken(ctx context.Context, user, secret string) (string, error)
	// ValidateToken checks a token against a repository and returns the
	// upstream status code.
	ValidateToken(ctx context.Context, token, repository string) (int, error)
}

// CredentialSealer encrypts account bundles handed to clients.
type CredentialSealer interface {
	SealCredentials(creds models.Credentials) (string, error)
}

// AccountLogin is the outcome of a multi-account login.
type AccountLogin struct {
	// Bundle is the encrypted account the client sends back in the Account header.
	Bundle       string
	Token        string
	Organization string
}

// Service implements login operations.
type Service struct {
	tokens TokenExchanger
	sealer CredentialSealer
}

// NewAuthService constructs a new Service.
func NewAuthService(tokens TokenExchanger, sealer CredentialSealer) *Service {
	return &Service{tokens: tokens, sealer: sealer}
}

// LoginAccount verifies the credentials of an account by exchanging them
// for a token once, then seals them so later requests can refresh the token
// without the client ever holding it.
func (s *Service) LoginAccount(ctx context.Context, organization, user, secret string) (AccountLogin, error) {
	organization = strings.TrimSpace(organization)
	user = strings.TrimSpace(user)
	if organization == "" || user == "" || secret == "" {
		return AccountLogin{}, ErrMissingFields
	}

	token, err := s.tokens.ObtainToken(ctx, user, secret)
	if err != nil {
		return AccountLogin{}, err
	}

	bundle, err := s.sealer.SealCredentials(models.Credentials{
		User:         user,
		Token:        secret,
		Organization: organization,
	})
	if err != nil {
		return AccountLogin{}, fmt.Errorf("seal account: %w", err)
	}

	return AccountLogin{Bundle: bundle, Token: token, Organization: organization}, nil
}

// LoginToken validates an existing token against repository and returns
// the repository with surrounding spaces and slashes removed.
func (s *Service) LoginToken(ctx context.Context, token, repository string) (string, error) {
	repository = strings.Trim(strings.TrimSpace(repository), "/")
	if token == "" || repository == "" {
		return "", ErrMissingFields
	}
	if _, err := s.tokens.ValidateToken(ctx, token, repository); err != nil {
		return "", err
	}
	return repository, nil
}
