package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emberline/storefront-backend/pkg/config"
	"github.com/emberline/storefront-backend/pkg/logger"
)

const (
	metadataHeaderPrefix = "x-ms-meta-"
	defaultOpTimeout     = 10 * time.Second
	pingTimeout          = 5 * time.Second
)

// ErrNotFound is returned when the named object does not exist in the container.
var ErrNotFound = errors.New("blob: object not found")

// BuildURL composes a fully-qualified, authorized object address:
// {accountURL}/{container}/{blobName}?{sasToken}. Pure string composition;
// a malformed input yields a malformed address surfaced downstream. Callers
// must not pass a blobName that already carries a query component.
func BuildURL(accountURL, container, blobName, sasToken string) string {
	return fmt.Sprintf("%s/%s/%s?%s",
		strings.TrimRight(accountURL, "/"), container, blobName, sasToken)
}

// Client talks to a SAS-authorized blob container over plain HTTP. All
// authorization rides on the container-scoped token appended to each URL;
// the client holds no other credentials.
type Client struct {
	httpClient *http.Client
	accountURL string
	container  string
	sasToken   string
	opTimeout  time.Duration
}

type Pinger interface {
	Ping(ctx context.Context) error
}

func NewClient(cfg config.StorageConfig, logg *logger.Logger) (*Client, error) {
	if cfg.AccountURL == "" {
		return nil, errors.New("storage account url is required")
	}

	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}

	client := &Client{
		httpClient: &http.Client{Timeout: opTimeout},
		accountURL: strings.TrimRight(cfg.AccountURL, "/"),
		container:  cfg.ContainerName,
		sasToken:   cfg.SASToken,
		opTimeout:  opTimeout,
	}

	if logg != nil {
		logg.Info(context.Background(), "blob storage client initialized")
	}

	return client, nil
}

// Container returns the configured container name, empty when unconfigured.
func (c *Client) Container() string {
	if c == nil {
		return ""
	}
	return c.container
}

// SASToken returns the shared container credential, empty when unconfigured.
func (c *Client) SASToken() string {
	if c == nil {
		return ""
	}
	return c.sasToken
}

// URL returns the authorized address for blobName in the configured container.
func (c *Client) URL(blobName string) string {
	if c == nil {
		return ""
	}
	return BuildURL(c.accountURL, c.container, blobName, c.sasToken)
}

// Upload writes data under blobName with the given metadata, overwriting any
// existing object. It returns the canonical authorized address on success.
func (c *Client) Upload(ctx context.Context, blobName string, data []byte, metadata map[string]string, contentType string) (string, error) {
	if err := c.ensureConfigured(); err != nil {
		return "", err
	}
	if blobName == "" {
		return "", errors.New("blob name is required")
	}
	if len(data) == 0 {
		return "", errors.New("blob payload is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	target := c.URL(blobName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range metadata {
		req.Header.Set(metadataHeaderPrefix+key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", blobName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", responseError("upload", blobName, resp)
	}

	return target, nil
}

// Metadata fetches the metadata mapping for blobName. Keys are lowercased; the
// backend treats them case-insensitively. A missing object maps to ErrNotFound.
func (c *Client) Metadata(ctx context.Context, blobName string) (map[string]string, error) {
	if err := c.ensureConfigured(); err != nil {
		return nil, err
	}
	if blobName == "" {
		return nil, errors.New("blob name is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.URL(blobName), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reading metadata for %s: %w", blobName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, responseError("metadata", blobName, resp)
	}

	metadata := map[string]string{}
	for header, values := range resp.Header {
		lower := strings.ToLower(header)
		if !strings.HasPrefix(lower, metadataHeaderPrefix) || len(values) == 0 {
			continue
		}
		metadata[strings.TrimPrefix(lower, metadataHeaderPrefix)] = values[0]
	}
	return metadata, nil
}

// Download fetches the object bytes and served content type for blobName.
func (c *Client) Download(ctx context.Context, blobName string) ([]byte, string, error) {
	if err := c.ensureConfigured(); err != nil {
		return nil, "", err
	}
	if blobName == "" {
		return nil, "", errors.New("blob name is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(blobName), nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("downloading %s: %w", blobName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, "", responseError("download", blobName, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s body: %w", blobName, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Ping verifies the container is reachable with the configured credential.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("blob client not initialized")
	}
	if err := c.ensureConfigured(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/%s?restype=container&comp=list&maxresults=1&%s",
		c.accountURL, c.container, c.sasToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if len(body) > 0 {
			return fmt.Errorf("blob container check failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		return fmt.Errorf("blob container check failed: %s", resp.Status)
	}
	return nil
}

func (c *Client) ensureConfigured() error {
	if c == nil {
		return errors.New("blob client not initialized")
	}
	if c.container == "" {
		return errors.New("blob container not configured")
	}
	if c.sasToken == "" {
		return errors.New("blob credential not configured")
	}
	return nil
}

func responseError(op, blobName string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if len(body) > 0 {
		return fmt.Errorf("%s %s: %s: %s", op, blobName, resp.Status, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("%s %s: %s", op, blobName, resp.Status)
}
