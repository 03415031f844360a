package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/plugin/encrypt/aesgcm"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgManager stores wrapped DEKs in the conversation_keys table over a
// dedicated pgx pool. The schema is owned by the store migrator.
type pgManager struct {
	pool *pgxpool.Pool
	w    *wrapper
}

// NewPostgres opens a pgx pool against cfg.DBURL and returns a postgres-backed
// Manager.
func NewPostgres(ctx context.Context, cfg *config.Config) (Manager, error) {
	w, err := newWrapper(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("keys: postgres connect: %w", err)
	}
	return &pgManager{pool: pool, w: w}, nil
}

func (m *pgManager) Close() { m.pool.Close() }

func (m *pgManager) CreateIfAbsent(ctx context.Context, conversationID uuid.UUID) error {
	dek, err := aesgcm.GenerateKey()
	if err != nil {
		return err
	}
	wrapped, err := m.w.wrap(dek)
	if err != nil {
		return err
	}
	// ON CONFLICT DO NOTHING: a concurrent creator's key wins and ours is
	// discarded, so exactly one key ever exists per conversation.
	_, err = m.pool.Exec(ctx,
		`INSERT INTO conversation_keys (conversation_id, wrapped_dek, revision, created_at)
		 VALUES ($1, $2, 0, now())
		 ON CONFLICT (conversation_id) DO NOTHING`,
		conversationID, wrapped,
	)
	if err != nil {
		return fmt.Errorf("keys: create: %w", err)
	}
	return nil
}

func (m *pgManager) Get(ctx context.Context, conversationID uuid.UUID) ([]byte, error) {
	var wrapped []byte
	err := m.pool.QueryRow(ctx,
		`SELECT wrapped_dek FROM conversation_keys WHERE conversation_id=$1`,
		conversationID,
	).Scan(&wrapped)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("keys: load: %w", err)
	}
	return m.w.unwrap(wrapped)
}

func (m *pgManager) Delete(ctx context.Context, conversationID uuid.UUID) error {
	_, err := m.pool.Exec(ctx,
		`DELETE FROM conversation_keys WHERE conversation_id=$1`,
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("keys: delete: %w", err)
	}
	return nil
}
