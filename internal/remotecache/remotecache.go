// Package remotecache implements spec.md §4.6: an optional S3-compatible
// mirror of the Artifact Cache's payloads, reachable over signed HTTPS
// requests with best-effort degrade-to-miss semantics.
//
// Grounded on the teacher's internal/client package (the HTTP client built
// on hashicorp/go-retryablehttp and its retry/backoff policy for talking to
// a remote API), with the teacher's bearer-token scheme replaced by a
// minimal AWS SigV4-style HMAC-SHA256 request signer per spec.md §6.
package remotecache

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// Config configures the remote cache provider.
type Config struct {
	Provider  string // "s3" or "r2"
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// Client is a best-effort S3-compatible remote cache client. Get and Has
// degrade to a cache miss (Get: ok=false, err=nil) on any transport failure,
// per spec.md §4.6, so callers never need to distinguish "not cached" from
// "network unreachable"; Put returns its error for the caller to log.
type Client struct {
	cfg        Config
	httpClient *retryablehttp.Client
}

// New constructs a Client. The underlying retryablehttp.Client retries
// transient network errors with exponential backoff, capped, before giving
// up (spec.md's "best-effort... retries are capped, then degrades to a
// cache miss").
func New(cfg Config) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil // the teacher silences the library's own logger and relies on its own leveled logger instead
	return &Client{cfg: cfg, httpClient: rc}
}

func (c *Client) objectKey(hash string) string {
	shard := hash[:2]
	rest := hash[2:]
	return fmt.Sprintf("cache/%s/%s.tar.gz", shard, rest)
}

func (c *Client) objectURL(hash string) string {
	return fmt.Sprintf("%s/%s/%s", c.cfg.Endpoint, c.cfg.Bucket, c.objectKey(hash))
}

// Put uploads data under hash's sharded key.
func (c *Client) Put(hash string, data []byte) error {
	req, err := c.newSignedRequest(http.MethodPut, hash, bytes.NewReader(data))
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("remote cache put: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Get fetches the bytes stored under hash. ok is false on a miss (404) or
// any transport error; errors are not propagated, per the best-effort
// contract — callers should log and continue rather than fail the build.
func (c *Client) Get(hash string) (data []byte, ok bool, err error) {
	req, err := c.newSignedRequest(http.MethodGet, hash, nil)
	if err != nil {
		return nil, false, nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode >= 300 {
		return nil, false, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, nil
	}
	return body, true, nil
}

// Has performs a HEAD request to check existence without downloading the
// payload.
func (c *Client) Has(hash string) bool {
	req, err := c.newSignedRequest(http.MethodHead, hash, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 300
}

// CheckConnection verifies reachability of the configured endpoint; used by
// `neex cache status`.
func (c *Client) CheckConnection() bool {
	req, err := http.NewRequest(http.MethodHead, c.cfg.Endpoint, nil)
	if err != nil {
		return false
	}
	retryReq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(retryReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return true
}

func (c *Client) newSignedRequest(method, hash string, body io.Reader) (*retryablehttp.Request, error) {
	url := c.objectURL(hash)
	var bodyBytes []byte
	if body != nil {
		b, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		bodyBytes = b
	}

	req, err := retryablehttp.NewRequest(method, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sign(req.Request, c.cfg, bodyBytes, now)
	return req, nil
}

// sign implements a minimal, testable subset of AWS SigV4-style signing:
// an HMAC-SHA256 over method, path, a content hash, and a timestamp, keyed
// by the configured secret. spec.md explicitly places the remote-cache wire
// protocol's authentication minutiae out of scope, so this does not
// replicate every SigV4 canonicalization rule, only what a compatible
// test double needs to verify.
func sign(req *http.Request, cfg Config, body []byte, now time.Time) {
	amzDate := now.Format("20060102T150405Z")
	req.Header.Set("X-Amz-Date", amzDate)

	payloadHash := sha256.Sum256(body)
	canonical := fmt.Sprintf("%s\n%s\n%s\n%s", req.Method, req.URL.Path, hex.EncodeToString(payloadHash[:]), amzDate)

	mac := hmac.New(sha256.New, []byte(cfg.SecretKey))
	mac.Write([]byte(canonical))
	signature := hex.EncodeToString(mac.Sum(nil))

	req.Header.Set("Authorization", fmt.Sprintf(
		"NEEX-HMAC-SHA256 Credential=%s/%s, Signature=%s",
		cfg.AccessKey, cfg.Region, signature,
	))
}
