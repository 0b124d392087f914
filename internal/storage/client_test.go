package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codemart/internal/config"
	"codemart/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	var gotPath, gotAuth, gotContentType, gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(config.StorageConfig{
		BaseURL: server.URL,
		APIKey:  "service-key",
		Bucket:  "artifacts",
	}, logger.NewLogger())

	err := client.Upload(context.Background(), "products/p1/kit.zip", "application/zip", strings.NewReader("zipbytes"))
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/artifacts/products/p1/kit.zip", gotPath)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "application/zip", gotContentType)
	assert.Equal(t, "zipbytes", gotBody)
}

func TestUploadRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(config.StorageConfig{BaseURL: server.URL, Bucket: "artifacts"}, logger.NewLogger())

	err := client.Upload(context.Background(), "products/p1/kit.zip", "application/zip", strings.NewReader("zip"))
	assert.Error(t, err)
}

func TestSignURL(t *testing.T) {
	var gotExpiresIn int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/storage/v1/object/sign/artifacts/products/p1/kit.zip", r.URL.Path)

		var req signRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotExpiresIn = req.ExpiresIn

		json.NewEncoder(w).Encode(map[string]string{
			"signedURL": "/storage/v1/object/sign/artifacts/products/p1/kit.zip?token=abc",
		})
	}))
	defer server.Close()

	client := NewClient(config.StorageConfig{
		BaseURL: server.URL,
		APIKey:  "service-key",
		Bucket:  "artifacts",
	}, logger.NewLogger())

	url, err := client.SignURL(context.Background(), "products/p1/kit.zip", 3600)
	require.NoError(t, err)

	assert.Equal(t, 3600, gotExpiresIn)
	assert.Equal(t, server.URL+"/storage/v1/object/sign/artifacts/products/p1/kit.zip?token=abc", url)
}

func TestSignURLFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(config.StorageConfig{BaseURL: server.URL, Bucket: "artifacts"}, logger.NewLogger())

	_, err := client.SignURL(context.Background(), "missing.zip", 3600)
	assert.ErrorIs(t, err, ErrSignFailed)
}

func TestSignURLEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	client := NewClient(config.StorageConfig{BaseURL: server.URL, Bucket: "artifacts"}, logger.NewLogger())

	_, err := client.SignURL(context.Background(), "a.zip", 3600)
	assert.ErrorIs(t, err, ErrSignFailed)
}
