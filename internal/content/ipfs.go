package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	files "github.com/ipfs/boxo/files"
	"github.com/ipfs/boxo/path"
	ipfsApi "github.com/ipfs/kubo/client/rpc"
	"github.com/ipfs/kubo/core/coreiface/options"
	log "github.com/sirupsen/logrus"
)

// IPFSStore talks to a kubo node over its RPC API.
type IPFSStore struct {
	api *ipfsApi.HttpApi
}

// NewIPFSStore accepts host:port, http(s) URLs, or /ip4|/dns multiaddrs.
func NewIPFSStore(apiAddr string, timeout time.Duration) (*IPFSStore, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:       10,
			IdleConnTimeout:    90 * time.Second,
			DisableCompression: true,
		},
	}
	api, err := ipfsApi.NewURLApiWithClient(APIURL(apiAddr), httpClient)
	if err != nil {
		return nil, fmt.Errorf("create IPFS client: %w", err)
	}
	return &IPFSStore{api: api}, nil
}

// APIURL normalises the configured kubo RPC address to an http URL.
func APIURL(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "http://127.0.0.1:5001"
	}
	if strings.HasPrefix(addr, "/ip4/") || strings.HasPrefix(addr, "/dns/") || strings.HasPrefix(addr, "/dns4/") {
		// /ip4/172.29.0.2/tcp/5001 -> http://172.29.0.2:5001
		parts := strings.Split(addr, "/")
		if len(parts) >= 5 {
			return fmt.Sprintf("http://%s:%s", parts[2], parts[4])
		}
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		return "http://" + addr
	}
	return addr
}

func (s *IPFSStore) Put(ctx context.Context, data []byte) (string, error) {
	p, err := s.api.Unixfs().Add(ctx, files.NewBytesFile(data),
		options.Unixfs.CidVersion(1),
		options.Unixfs.Pin(true),
	)
	if err != nil {
		return "", fmt.Errorf("add to IPFS: %w", err)
	}
	uri := URIFromCID(p.RootCid())
	log.WithField("uri", uri).Debug("stored content in IPFS")
	return uri, nil
}

func (s *IPFSStore) Get(ctx context.Context, uri string) ([]byte, error) {
	c, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	node, err := s.api.Unixfs().Get(ctx, path.FromCid(c))
	if err != nil {
		return nil, fmt.Errorf("get from IPFS: %w", err)
	}
	file := files.ToFile(node)
	if file == nil {
		return nil, fmt.Errorf("%s is not a file", uri)
	}
	defer file.Close()
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, file); err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return buf.Bytes(), nil
}

// Ping checks that the node answers.
func (s *IPFSStore) Ping(ctx context.Context) error {
	_, err := s.api.Key().Self(ctx)
	return err
}
