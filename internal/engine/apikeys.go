package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"earlyadopters/internal/domain"
	"earlyadopters/internal/repo"
)

const apiKeyPrefix = "ea_"

// CreateAPIKey issues a key for actor. The plaintext is returned once; only
// its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, actor, name string) (domain.APIKey, string, error) {
	addr, err := account("create api key", "actor", actor)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate api key: %w", err)
	}
	plain := apiKeyPrefix + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   addr,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.timestamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plain, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, actor string) ([]domain.APIKey, error) {
	keys, err := e.Repo.ListAPIKeys(ctx, actor)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []domain.APIKey{}
	}
	return keys, nil
}

// RevokeAPIKey deletes one of actor's keys.
func (e Engine) RevokeAPIKey(ctx context.Context, actor, id string) error {
	keys, err := e.Repo.ListAPIKeys(ctx, actor)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.ID == id {
			return e.Repo.DeleteAPIKey(ctx, id)
		}
	}
	return fmt.Errorf("api key %s: %w", id, repo.ErrNotFound)
}
