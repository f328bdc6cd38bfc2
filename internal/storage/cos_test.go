package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/callgrind-analysis/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCOSStorage_Validation(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *COSConfig
		errMsg string
	}{
		{"MissingBucket", &COSConfig{Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"}, "bucket and region are required"},
		{"MissingRegion", &COSConfig{Bucket: "b", SecretID: "id", SecretKey: "key"}, "bucket and region are required"},
		{"MissingCredentials", &COSConfig{Bucket: "b", Region: "ap-guangzhou"}, "credentials are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := NewCOSStorage(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, storage)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCOSStorage_GetURL(t *testing.T) {
	storage, err := NewCOSStorage(&COSConfig{
		Bucket:    "profiles-1250000000",
		Region:    "ap-guangzhou",
		SecretID:  "test-id",
		SecretKey: "test-key",
	})
	require.NoError(t, err)

	assert.Equal(t,
		"https://profiles-1250000000.cos.ap-guangzhou.myqcloud.com/callgrind/app/report.json.zst",
		storage.GetURL("callgrind/app/report.json.zst"))
}

func TestCOSStorage_CustomDomain(t *testing.T) {
	storage, err := NewCOSStorage(&COSConfig{
		Bucket:    "b",
		Region:    "r",
		SecretID:  "id",
		SecretKey: "key",
		Domain:    "example.internal",
		Scheme:    "http",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://b.cos.r.example.internal/k", storage.GetURL("/k"))
}

func TestNewStorage(t *testing.T) {
	t.Run("COS", func(t *testing.T) {
		storage, err := NewStorage(&config.StorageConfig{
			Type:      "cos",
			Bucket:    "test-bucket",
			Region:    "ap-guangzhou",
			SecretID:  "test-id",
			SecretKey: "test-key",
		})
		require.NoError(t, err)
		assert.IsType(t, &COSStorage{}, storage)
	})

	t.Run("Local", func(t *testing.T) {
		storage, err := NewStorage(&config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, storage)
	})

	t.Run("EmptyTypeIsLocal", func(t *testing.T) {
		storage, err := NewStorage(&config.StorageConfig{LocalPath: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, storage)
	})
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *config.StorageConfig
		errMsg string
	}{
		{"NilConfig", nil, "storage config is nil"},
		{"InvalidStorageType", &config.StorageConfig{Type: "s3"}, "unsupported storage type"},
		{"COSMissingBucket", &config.StorageConfig{Type: "cos", Region: "r", SecretID: "i", SecretKey: "k"}, "COS bucket is required"},
		{"COSMissingRegion", &config.StorageConfig{Type: "cos", Bucket: "b", SecretID: "i", SecretKey: "k"}, "COS region is required"},
		{"COSMissingCredentials", &config.StorageConfig{Type: "cos", Bucket: "b", Region: "r"}, "COS credentials are required"},
		{"LocalMissingPath", &config.StorageConfig{Type: "local"}, "local storage path is required"},
		{"ValidCOS", &config.StorageConfig{Type: "cos", Bucket: "b", Region: "r", SecretID: "i", SecretKey: "k"}, ""},
		{"ValidLocal", &config.StorageConfig{Type: "local", LocalPath: "/tmp/storage"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCOSStorage_UploadHeaders(t *testing.T) {
	var (
		gotPath string
		gotBody string
		gotHdr  http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotPath, gotBody, gotHdr = r.URL.Path, string(body), r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bucketURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	store := newCOSStorage(bucketURL, "id", "key")

	err = store.Upload(context.Background(), "callgrind/app/run-1.json.gz", strings.NewReader("{}"), &ObjectMeta{
		ContentType:     "application/json",
		ContentEncoding: "gzip",
		Metadata:        map[string]string{"Profile-ID": "run-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/callgrind/app/run-1.json.gz", gotPath)
	assert.Equal(t, "{}", gotBody)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, "gzip", gotHdr.Get("Content-Encoding"))
	assert.Equal(t, "run-1", gotHdr.Get("X-Cos-Meta-Profile-Id"))
	assert.NotEmpty(t, gotHdr.Get("Authorization"))
}

func TestUserMetadata(t *testing.T) {
	assert.Nil(t, userMetadata(nil))

	h := userMetadata(map[string]string{"Events": "Ir,Dr"})
	require.NotNil(t, h)
	assert.Equal(t, "Ir,Dr", h.Get("x-cos-meta-events"))
}
