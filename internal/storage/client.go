package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"codemart/internal/config"
	"codemart/internal/logger"
)

var ErrSignFailed = errors.New("failed to generate signed download URL")

// Signer produces time-limited download links for stored artifacts.
type Signer interface {
	SignURL(ctx context.Context, path string, ttlSeconds int) (string, error)
}

// Uploader pushes artifact archives into the bucket.
type Uploader interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader) error
}

// Client wraps a Supabase-style object storage API: uploads go to the
// object endpoint, signed URLs come from the sign endpoint and are
// valid for the requested TTL only.
type Client struct {
	cfg    config.StorageConfig
	http   *http.Client
	logger *logger.Logger
}

func NewClient(cfg config.StorageConfig, log *logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log,
	}
}

func (c *Client) Upload(ctx context.Context, path, contentType string, body io.Reader) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.cfg.BaseURL, c.cfg.Bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("STORAGE", fmt.Sprintf("Upload request failed for %s: %v", path, err))
		return fmt.Errorf("artifact upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("STORAGE", fmt.Sprintf("Upload of %s returned status %d", path, resp.StatusCode))
		return fmt.Errorf("artifact upload failed: status %d", resp.StatusCode)
	}

	c.logger.Info("STORAGE", fmt.Sprintf("Uploaded artifact %s", path))
	return nil
}

type signRequest struct {
	ExpiresIn int `json:"expiresIn"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

func (c *Client) SignURL(ctx context.Context, path string, ttlSeconds int) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", c.cfg.BaseURL, c.cfg.Bucket, path)

	body, err := json.Marshal(signRequest{ExpiresIn: ttlSeconds})
	if err != nil {
		return "", fmt.Errorf("failed to marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create sign request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("STORAGE", fmt.Sprintf("Sign request failed for %s: %v", path, err))
		return "", fmt.Errorf("%w: %v", ErrSignFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("STORAGE", fmt.Sprintf("Sign request for %s returned status %d", path, resp.StatusCode))
		return "", fmt.Errorf("%w: status %d", ErrSignFailed, resp.StatusCode)
	}

	var signed signResponse
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return "", fmt.Errorf("failed to decode sign response: %w", err)
	}
	if signed.SignedURL == "" {
		return "", ErrSignFailed
	}

	return c.cfg.BaseURL + signed.SignedURL, nil
}
