// Package credentials persists the sealed per-(user, tier) API keys.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/models"
)

var (
	_ contracts.CredentialStore = (*SQLStore)(nil)
	_ contracts.CredentialStore = (*MemoryStore)(nil)
)

// ── PostgreSQL ───────────────────────────────────────────────

// SQLStore keeps credentials in the api_credentials table.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, userID, tier string) (*models.ApiCredential, error) {
	cred := &models.ApiCredential{UserID: userID, Tier: tier}
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT encrypted_key, status, created_at FROM api_credentials WHERE user_id = $1 AND tier = $2`,
		userID, tier,
	).Scan(&cred.EncryptedKey, &status, &cred.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credentials/postgres: get: %w", err)
	}
	cred.Status = models.CredentialStatus(status)
	return cred, nil
}

// Create inserts the credential unless one already exists for the owner.
func (s *SQLStore) Create(ctx context.Context, cred *models.ApiCredential) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO api_credentials (user_id, tier, encrypted_key, status, created_at)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (user_id, tier) DO NOTHING`,
		cred.UserID, cred.Tier, cred.EncryptedKey, string(cred.Status), cred.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("credentials/postgres: create: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("credentials/postgres: rows affected: %w", err)
	}
	return n == 1, nil
}

// ── In-memory ────────────────────────────────────────────────

// MemoryStore is the zero-config credential store.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]models.ApiCredential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]models.ApiCredential)}
}

func ownerKey(userID, tier string) string {
	return userID + "\x00" + tier
}

func (m *MemoryStore) Get(_ context.Context, userID, tier string) (*models.ApiCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[ownerKey(userID, tier)]
	if !ok {
		return nil, nil
	}
	c.EncryptedKey = append([]byte(nil), c.EncryptedKey...)
	return &c, nil
}

func (m *MemoryStore) Create(_ context.Context, cred *models.ApiCredential) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := ownerKey(cred.UserID, cred.Tier)
	if _, exists := m.creds[k]; exists {
		return false, nil
	}
	c := *cred
	c.EncryptedKey = append([]byte(nil), cred.EncryptedKey...)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.creds[k] = c
	return true, nil
}
