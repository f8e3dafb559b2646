package remotecache

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()
	store := &sync.Map{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.Method {
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			store.Store(r.URL.Path, body)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet, http.MethodHead:
			v, ok := store.Load(r.URL.Path)
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if r.Method == http.MethodGet {
				_, _ = w.Write(v.([]byte))
			}
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(server.Close)
	return server, store
}

func testConfig(endpoint string) Config {
	return Config{
		Provider:  "s3",
		Endpoint:  endpoint,
		Bucket:    "neex-cache",
		AccessKey: "AKID",
		SecretKey: "secret",
		Region:    "us-east-1",
	}
}

func TestPutThenGetRoundTrips(t *testing.T) {
	server, _ := newTestServer(t)
	client := New(testConfig(server.URL))

	hash := "deadbeef0123456789"
	payload := []byte("compressed artifact payload")
	require.NoError(t, client.Put(hash, payload))

	got, ok, err := client.Get(hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestGetMissReturnsOKFalseNotError(t *testing.T) {
	server, _ := newTestServer(t)
	client := New(testConfig(server.URL))

	_, ok, err := client.Get("never-uploaded")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasReflectsExistence(t *testing.T) {
	server, _ := newTestServer(t)
	client := New(testConfig(server.URL))

	hash := "abc123"
	assert.False(t, client.Has(hash))
	require.NoError(t, client.Put(hash, []byte("x")))
	assert.True(t, client.Has(hash))
}

func TestGetDegradesToMissOnUnreachableEndpoint(t *testing.T) {
	client := New(testConfig("http://127.0.0.1:1"))
	client.httpClient.RetryMax = 0

	_, ok, err := client.Get("anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestObjectKeyShardsOnFirstTwoHexCharacters(t *testing.T) {
	client := New(testConfig("http://example.invalid"))
	assert.Equal(t, "cache/de/adbeef.tar.gz", client.objectKey("deadbeef"))
}
