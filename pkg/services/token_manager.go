// Package services holds the business logic between HTTP handlers and the
// connection store: credential lifecycle, resource enumeration and the
// report pipeline.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/staylens-io/staylens-engine/pkg/apperrors"
	"github.com/staylens-io/staylens-engine/pkg/crypto"
	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/oauth"
	"github.com/staylens-io/staylens-engine/pkg/repositories"
)

// ProviderResolver resolves the OAuth adapter for a source. Satisfied by
// oauth.Registry.
type ProviderResolver interface {
	Provider(source models.SourceType) (oauth.Provider, error)
}

// TokenManager hands out a usable access token for a connection, refreshing
// through the provider when the stored one has expired.
type TokenManager interface {
	// AccessToken returns the connection and a plaintext access token valid
	// at call time. A stored unexpired token is returned without any
	// upstream call. Concurrent requests for the same (project, source)
	// share a single refresh.
	AccessToken(ctx context.Context, projectID uuid.UUID, source models.SourceType) (*models.Connection, string, error)
}

type tokenManager struct {
	repo      repositories.ConnectionRepository
	providers ProviderResolver
	cipher    *crypto.TokenCipher
	logger    *zap.Logger
	group     singleflight.Group
	now       func() time.Time
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(repo repositories.ConnectionRepository, providers ProviderResolver, cipher *crypto.TokenCipher, logger *zap.Logger) TokenManager {
	return &tokenManager{
		repo:      repo,
		providers: providers,
		cipher:    cipher,
		logger:    logger,
		now:       time.Now,
	}
}

type refreshResult struct {
	conn        *models.Connection
	accessToken string
}

func (m *tokenManager) AccessToken(ctx context.Context, projectID uuid.UUID, source models.SourceType) (*models.Connection, string, error) {
	conn, encRefresh, encAccess, err := m.repo.GetBySource(ctx, projectID, source)
	if err != nil {
		return nil, "", err
	}
	if conn.Status == models.ConnectionStatusInvalid {
		return nil, "", apperrors.ErrTokenRefreshFailed
	}

	accessToken, err := m.cipher.Decrypt(encAccess)
	if err != nil {
		// Undecryptable token material (key rotation) falls through to a
		// refresh rather than failing the request.
		m.logger.Warn("Stored access token undecryptable, refreshing",
			zap.String("project_id", projectID.String()),
			zap.String("source", source.String()))
		accessToken = ""
	}
	conn.AccessToken = accessToken
	if conn.HasValidAccessToken(m.now()) {
		return conn, accessToken, nil
	}

	key := projectID.String() + "|" + source.String()
	v, err, _ := m.group.Do(key, func() (any, error) {
		return m.refresh(ctx, conn, encRefresh)
	})
	if err != nil {
		return nil, "", err
	}
	res := v.(*refreshResult)
	return res.conn, res.accessToken, nil
}

// refresh exchanges the stored refresh token for a new access token and
// persists it before returning. A persistence failure is logged and the
// fresh token is still handed to the caller.
func (m *tokenManager) refresh(ctx context.Context, conn *models.Connection, encRefresh string) (*refreshResult, error) {
	refreshToken, err := m.cipher.Decrypt(encRefresh)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	if refreshToken == "" {
		return nil, apperrors.ErrTokenRefreshFailed
	}

	provider, err := m.providers.Provider(conn.Source)
	if err != nil {
		return nil, err
	}

	tok, err := provider.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenRefreshFailed) {
			// Revoked grant: the connection needs a full re-authorization.
			if markErr := m.repo.MarkInvalid(ctx, conn.ProjectID, conn.Source); markErr != nil {
				m.logger.Error("Failed to mark connection invalid",
					zap.String("project_id", conn.ProjectID.String()),
					zap.String("source", conn.Source.String()),
					zap.Error(markErr))
			}
		}
		return nil, err
	}

	encAccess, err := m.cipher.Encrypt(tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	// Only a rotated refresh token supersedes the stored one.
	encNewRefresh := ""
	if tok.RefreshToken != "" {
		encNewRefresh, err = m.cipher.Encrypt(tok.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}

	if err := m.repo.UpdateTokens(ctx, conn.ProjectID, conn.Source, encAccess, tok.ExpiresAt, encNewRefresh); err != nil {
		m.logger.Error("Failed to persist refreshed token, continuing with in-memory token",
			zap.String("project_id", conn.ProjectID.String()),
			zap.String("source", conn.Source.String()),
			zap.Error(fmt.Errorf("%w: %v", apperrors.ErrPersistenceFailed, err)))
	}

	conn.AccessToken = tok.AccessToken
	expiry := tok.ExpiresAt
	conn.AccessTokenExpiry = &expiry
	return &refreshResult{conn: conn, accessToken: tok.AccessToken}, nil
}

var _ TokenManager = (*tokenManager)(nil)
