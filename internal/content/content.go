// Package content stores off-chain documents (project metadata, activity
// details, reward notes) by content address and hands out ipfs:// URIs.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

const Scheme = "ipfs://"

var (
	ErrNotFound   = errors.New("content not found")
	ErrInvalidURI = errors.New("invalid content uri")
)

// Store puts and fetches immutable blobs.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, uri string) ([]byte, error)
}

// ComputeCID returns the CIDv1 (raw codec, sha2-256) of data, which is what
// an IPFS node assigns to a single-block file added with CIDv1.
func ComputeCID(data []byte) (cid.Cid, error) {
	hash, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, hash), nil
}

func URIFromCID(c cid.Cid) string {
	return Scheme + c.String()
}

// ParseURI accepts ipfs://<cid>, /ipfs/<cid> or a bare CID.
func ParseURI(uri string) (cid.Cid, error) {
	s := strings.TrimSpace(uri)
	switch {
	case strings.HasPrefix(s, Scheme):
		s = strings.TrimPrefix(s, Scheme)
	case strings.HasPrefix(s, "/ipfs/"):
		s = strings.TrimPrefix(s, "/ipfs/")
	}
	s = strings.SplitN(s, "/", 2)[0]
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return c, nil
}

// Detail is the document an activity detail URI points at.
type Detail struct {
	Content string `json:"content"`
}

// ReadDetail resolves an activity detail document. JSON documents yield their
// "content" field; anything else is used as plain text.
func ReadDetail(ctx context.Context, s Store, uri string) (string, error) {
	data, err := s.Get(ctx, uri)
	if err != nil {
		return "", err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var d Detail
		if err := json.Unmarshal(trimmed, &d); err == nil {
			return strings.TrimSpace(d.Content), nil
		}
	}
	return string(trimmed), nil
}

// PutJSON stores v as compact JSON.
func PutJSON(ctx context.Context, s Store, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal content: %w", err)
	}
	return s.Put(ctx, data)
}
