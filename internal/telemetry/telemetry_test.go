package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu    sync.Mutex
	paths []string
	auth  []string
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.paths = append(c.paths, r.URL.Path)
	c.auth = append(c.auth, r.Header.Get("Authorization"))
	c.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (c *collector) seen() ([]string, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...), append([]string(nil), c.auth...)
}

func TestInitializeDisabled(t *testing.T) {
	p, err := Initialize(context.Background(), Config{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Nil(t, p.Metrics())
	assert.NoError(t, p.Shutdown(context.Background()))

	// A nil Metrics must still be recordable
	p.Metrics().RecordSubscription(context.Background(), "created")
}

func TestInitializeRequiresEndpoint(t *testing.T) {
	p, err := Initialize(context.Background(), Config{Enabled: true}, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestSignalPath(t *testing.T) {
	assert.Equal(t, "/otlp/v1/traces", signalPath("", "traces"))
	assert.Equal(t, "/otlp/v1/metrics", signalPath("/otlp/", "metrics"))
	assert.Equal(t, "/v1/metrics", signalPath("/", "metrics"))
	assert.Equal(t, "/collector/v1/traces", signalPath("/collector", "traces"))
}

func TestBasicAuthHeader(t *testing.T) {
	assert.Nil(t, BasicAuthHeader("", ""))
	assert.Equal(t, map[string]string{"Authorization": "Basic MTIzOnNlY3JldA=="}, BasicAuthHeader("123", "secret"))
}

func TestProviderExportsStorefrontMetrics(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)

	p, err := Initialize(context.Background(), Config{
		ServiceName:    "storefront-api",
		ServiceVersion: "test",
		Environment:    "test",
		OTLPEndpoint:   strings.TrimPrefix(srv.URL, "http://"),
		OTLPHeaders:    BasicAuthHeader("123", "secret"),
		BasePath:       "/",
		Insecure:       true,
		Enabled:        true,
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NotNil(t, p.Metrics())

	p.Metrics().RecordSubscription(context.Background(), "created")
	p.Metrics().RecordUpload(context.Background(), "product-images", "ok", 512)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	paths, auth := c.seen()
	assert.Contains(t, paths, "/v1/metrics")
	assert.NotContains(t, paths, "/otlp/v1/metrics")
	for _, h := range auth {
		assert.Equal(t, "Basic MTIzOnNlY3JldA==", h)
	}
}
