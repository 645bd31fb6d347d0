package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore keeps blobs in the workspace database so documents survive
// restarts when no IPFS node is configured. CIDs match what a node assigns.
type SQLStore struct {
	DB *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

func (s *SQLStore) Put(ctx context.Context, data []byte) (string, error) {
	c, err := ComputeCID(data)
	if err != nil {
		return "", err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO content_blobs(cid, data, created_at) VALUES (?, ?, ?) ON CONFLICT(cid) DO NOTHING`,
		c.String(), data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("store content: %w", err)
	}
	return URIFromCID(c), nil
}

func (s *SQLStore) Get(ctx context.Context, uri string) ([]byte, error) {
	c, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.DB.QueryRowContext(ctx, `SELECT data FROM content_blobs WHERE cid=?`, c.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
