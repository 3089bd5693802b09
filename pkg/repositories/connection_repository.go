// Package repositories provides PostgreSQL data access for connections.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/staylens-io/staylens-engine/pkg/apperrors"
	"github.com/staylens-io/staylens-engine/pkg/database"
	"github.com/staylens-io/staylens-engine/pkg/models"
)

// ConnectionRepository defines data access for per-(project, source) OAuth
// connections. Token values are stored encrypted as opaque TEXT -
// encryption/decryption is handled by the service layer.
type ConnectionRepository interface {
	// Upsert inserts the connection for (project, source), or replaces the
	// credentials of an existing one. A replaced connection drops its
	// selected resource and returns to the pending state.
	Upsert(ctx context.Context, conn *models.Connection, encRefreshToken string) error

	// GetBySource retrieves the connection for (project, source) together
	// with its encrypted refresh and access tokens.
	// Returns apperrors.ErrConnectionNotFound when none exists.
	GetBySource(ctx context.Context, projectID uuid.UUID, source models.SourceType) (*models.Connection, string, string, error)

	// ListByProject retrieves all connections for a project, without token
	// material.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Connection, error)

	// SetResource records the chosen upstream resource and any secondary
	// metadata (currency, display name, page access token) and activates
	// the connection.
	SetResource(ctx context.Context, projectID uuid.UUID, source models.SourceType, resourceID string, metadata map[string]string) error

	// UpdateTokens persists a refreshed access token and expiry. A non-empty
	// encRefreshToken supersedes the stored refresh token (providers that
	// rotate refresh tokens on refresh).
	UpdateTokens(ctx context.Context, projectID uuid.UUID, source models.SourceType, encAccessToken string, expiry time.Time, encRefreshToken string) error

	// MarkInvalid flags the connection as needing re-authorization. The row
	// is kept - the core never hard-deletes connections.
	MarkInvalid(ctx context.Context, projectID uuid.UUID, source models.SourceType) error
}

type connectionRepository struct {
	db *database.DB
}

// NewConnectionRepository creates a pgx-backed connection repository.
func NewConnectionRepository(db *database.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Upsert(ctx context.Context, conn *models.Connection, encRefreshToken string) error {
	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now
	conn.Status = models.ConnectionStatusPending

	metadata, err := marshalMetadata(conn.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO connections (project_id, source, refresh_token, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT connections_project_source_unique DO UPDATE
		SET refresh_token = EXCLUDED.refresh_token,
		    access_token = '',
		    access_token_expiry = NULL,
		    external_resource_id = '',
		    status = EXCLUDED.status,
		    metadata = EXCLUDED.metadata,
		    updated_at = EXCLUDED.updated_at
		RETURNING id`

	err = r.db.QueryRow(ctx, query,
		conn.ProjectID,
		conn.Source,
		encRefreshToken,
		conn.Status,
		metadata,
		conn.CreatedAt,
		conn.UpdatedAt,
	).Scan(&conn.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert connection: %w", err)
	}
	return nil
}

func (r *connectionRepository) GetBySource(ctx context.Context, projectID uuid.UUID, source models.SourceType) (*models.Connection, string, string, error) {
	query := `
		SELECT id, project_id, source, external_resource_id, refresh_token,
		       access_token, access_token_expiry, status, metadata, created_at, updated_at
		FROM connections
		WHERE project_id = $1 AND source = $2`

	var conn models.Connection
	var encRefresh, encAccess string
	var metadata []byte
	err := r.db.QueryRow(ctx, query, projectID, source).Scan(
		&conn.ID,
		&conn.ProjectID,
		&conn.Source,
		&conn.ExternalResourceID,
		&encRefresh,
		&encAccess,
		&conn.AccessTokenExpiry,
		&conn.Status,
		&metadata,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", "", apperrors.ErrConnectionNotFound
		}
		return nil, "", "", fmt.Errorf("failed to get connection: %w", err)
	}

	if err := unmarshalMetadata(metadata, &conn); err != nil {
		return nil, "", "", err
	}
	return &conn, encRefresh, encAccess, nil
}

func (r *connectionRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Connection, error) {
	query := `
		SELECT id, project_id, source, external_resource_id, access_token_expiry,
		       status, metadata, created_at, updated_at
		FROM connections
		WHERE project_id = $1
		ORDER BY source`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		var conn models.Connection
		var metadata []byte
		err := rows.Scan(
			&conn.ID,
			&conn.ProjectID,
			&conn.Source,
			&conn.ExternalResourceID,
			&conn.AccessTokenExpiry,
			&conn.Status,
			&metadata,
			&conn.CreatedAt,
			&conn.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		if err := unmarshalMetadata(metadata, &conn); err != nil {
			return nil, err
		}
		connections = append(connections, &conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}
	return connections, nil
}

func (r *connectionRepository) SetResource(ctx context.Context, projectID uuid.UUID, source models.SourceType, resourceID string, metadata map[string]string) error {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE connections
		SET external_resource_id = $3,
		    metadata = metadata || $4,
		    status = $5,
		    updated_at = $6
		WHERE project_id = $1 AND source = $2`

	result, err := r.db.Exec(ctx, query, projectID, source, resourceID, meta, models.ConnectionStatusActive, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set resource: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrConnectionNotFound
	}
	return nil
}

func (r *connectionRepository) UpdateTokens(ctx context.Context, projectID uuid.UUID, source models.SourceType, encAccessToken string, expiry time.Time, encRefreshToken string) error {
	query := `
		UPDATE connections
		SET access_token = $3,
		    access_token_expiry = $4,
		    refresh_token = CASE WHEN $5 = '' THEN refresh_token ELSE $5 END,
		    updated_at = $6
		WHERE project_id = $1 AND source = $2`

	result, err := r.db.Exec(ctx, query, projectID, source, encAccessToken, expiry, encRefreshToken, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrConnectionNotFound
	}
	return nil
}

func (r *connectionRepository) MarkInvalid(ctx context.Context, projectID uuid.UUID, source models.SourceType) error {
	query := `
		UPDATE connections
		SET status = $3, access_token = '', access_token_expiry = NULL, updated_at = $4
		WHERE project_id = $1 AND source = $2`

	result, err := r.db.Exec(ctx, query, projectID, source, models.ConnectionStatusInvalid, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark connection invalid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrConnectionNotFound
	}
	return nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

func unmarshalMetadata(data []byte, conn *models.Connection) error {
	if len(data) == 0 {
		conn.Metadata = map[string]string{}
		return nil
	}
	if err := json.Unmarshal(data, &conn.Metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return nil
}

// Ensure connectionRepository implements ConnectionRepository at compile time.
var _ ConnectionRepository = (*connectionRepository)(nil)
