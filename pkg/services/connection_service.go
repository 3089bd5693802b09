package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/apperrors"
	"github.com/staylens-io/staylens-engine/pkg/crypto"
	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/oauth"
	"github.com/staylens-io/staylens-engine/pkg/repositories"
	"github.com/staylens-io/staylens-engine/pkg/sources"
)

// SourceResolver resolves the integration clients for a source. Satisfied by
// registry.Registry.
type SourceResolver interface {
	Enumerator(source models.SourceType) (sources.Enumerator, bool)
	Fetcher(source models.SourceType) (sources.Fetcher, bool)
}

// ConnectionService drives the connection lifecycle: authorization,
// resource selection, listing and disconnect.
type ConnectionService interface {
	// AuthorizationURL builds the provider consent URL with a signed state
	// carrying the project identity.
	AuthorizationURL(projectID uuid.UUID, source models.SourceType) (string, error)

	// CompleteAuthorization handles the provider redirect: verifies state,
	// exchanges the code and stores the credentials. The connection lands in
	// the pending state until a resource is selected.
	CompleteAuthorization(ctx context.Context, state, code string) (*models.Connection, error)

	// ListResources enumerates the upstream entities selectable for the
	// connection. An identity with access to nothing yields an empty list.
	ListResources(ctx context.Context, projectID uuid.UUID, source models.SourceType) ([]models.Resource, error)

	// SelectResource pins the connection to one upstream resource and
	// activates it. Resource metadata (currency, page token) is captured.
	SelectResource(ctx context.Context, projectID uuid.UUID, source models.SourceType, resourceID string) (*models.Connection, error)

	// Disconnect invalidates the connection. The row and its history are
	// kept; reports stop being served until the user re-authorizes.
	Disconnect(ctx context.Context, projectID uuid.UUID, source models.SourceType) error

	// List returns all of the project's connections without token material.
	List(ctx context.Context, projectID uuid.UUID) ([]*models.Connection, error)
}

type connectionService struct {
	repo      repositories.ConnectionRepository
	providers ProviderResolver
	srcs      SourceResolver
	tokens    TokenManager
	cipher    *crypto.TokenCipher
	state     *oauth.StateCodec
	logger    *zap.Logger
}

// NewConnectionService creates a ConnectionService.
func NewConnectionService(
	repo repositories.ConnectionRepository,
	providers ProviderResolver,
	srcs SourceResolver,
	tokens TokenManager,
	cipher *crypto.TokenCipher,
	state *oauth.StateCodec,
	logger *zap.Logger,
) ConnectionService {
	return &connectionService{
		repo:      repo,
		providers: providers,
		srcs:      srcs,
		tokens:    tokens,
		cipher:    cipher,
		state:     state,
		logger:    logger,
	}
}

func (s *connectionService) AuthorizationURL(projectID uuid.UUID, source models.SourceType) (string, error) {
	provider, err := s.providers.Provider(source)
	if err != nil {
		return "", err
	}
	state, err := s.state.Encode(projectID, source)
	if err != nil {
		return "", err
	}
	return provider.AuthorizationURL(state), nil
}

func (s *connectionService) CompleteAuthorization(ctx context.Context, state, code string) (*models.Connection, error) {
	projectID, source, err := s.state.Decode(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrOAuthExchangeFailed, err)
	}

	provider, err := s.providers.Provider(source)
	if err != nil {
		return nil, err
	}
	tok, err := provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	encRefresh, err := s.cipher.Encrypt(tok.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	conn := &models.Connection{
		ProjectID: projectID,
		Source:    source,
		Metadata:  map[string]string{},
	}
	if err := s.repo.Upsert(ctx, conn, encRefresh); err != nil {
		return nil, err
	}

	// The access token from the exchange is short-lived; persist it so the
	// resource-selection call right after connect skips a refresh.
	if tok.AccessToken != "" {
		encAccess, err := s.cipher.Encrypt(tok.AccessToken)
		if err == nil {
			err = s.repo.UpdateTokens(ctx, projectID, source, encAccess, tok.ExpiresAt, "")
		}
		if err != nil {
			s.logger.Warn("Failed to store initial access token",
				zap.String("project_id", projectID.String()),
				zap.String("source", source.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("Connection authorized",
		zap.String("project_id", projectID.String()),
		zap.String("source", source.String()))
	return conn, nil
}

func (s *connectionService) ListResources(ctx context.Context, projectID uuid.UUID, source models.SourceType) ([]models.Resource, error) {
	enumerator, ok := s.srcs.Enumerator(source)
	if !ok {
		return nil, fmt.Errorf("no enumerator for source %q", source)
	}

	_, accessToken, err := s.tokens.AccessToken(ctx, projectID, source)
	if err != nil {
		return nil, err
	}

	resources, err := enumerator.ListResources(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if resources == nil {
		resources = []models.Resource{}
	}
	return resources, nil
}

func (s *connectionService) SelectResource(ctx context.Context, projectID uuid.UUID, source models.SourceType, resourceID string) (*models.Connection, error) {
	resources, err := s.ListResources(ctx, projectID, source)
	if err != nil {
		return nil, err
	}

	var selected *models.Resource
	for i := range resources {
		if resources[i].ID == resourceID {
			selected = &resources[i]
			break
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("resource %q is not accessible to the connected identity", resourceID)
	}

	metadata := map[string]string{"display_name": selected.DisplayName}
	for k, v := range selected.Metadata {
		metadata[k] = v
	}

	if err := s.repo.SetResource(ctx, projectID, source, resourceID, metadata); err != nil {
		return nil, err
	}

	conn, _, _, err := s.repo.GetBySource(ctx, projectID, source)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Resource selected",
		zap.String("project_id", projectID.String()),
		zap.String("source", source.String()),
		zap.String("resource_id", resourceID))
	return conn, nil
}

func (s *connectionService) Disconnect(ctx context.Context, projectID uuid.UUID, source models.SourceType) error {
	if err := s.repo.MarkInvalid(ctx, projectID, source); err != nil {
		return err
	}
	s.logger.Info("Connection disconnected",
		zap.String("project_id", projectID.String()),
		zap.String("source", source.String()))
	return nil
}

func (s *connectionService) List(ctx context.Context, projectID uuid.UUID) ([]*models.Connection, error) {
	connections, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if connections == nil {
		connections = []*models.Connection{}
	}
	return connections, nil
}

var _ ConnectionService = (*connectionService)(nil)
