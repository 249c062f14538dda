package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"SchoolSuite/internal/config"
	"SchoolSuite/internal/retry"
)

// Client talks to the Supabase storage bucket holding student profile photos.
type Client struct {
	baseURL    string
	serviceKey string
	anonKey    string
	bucket     string
	http       *http.Client
	retry      retry.Policy
}

// NewClientFromEnv builds a Client from SUPABASE_* env vars. Returns an error
// when the URL, bucket or both keys are missing.
func NewClientFromEnv() (*Client, error) {
	// Trim accidental quoting from .env values
	trim := func(k string) string { return strings.Trim(os.Getenv(k), "\"") }
	c := &Client{
		baseURL:    strings.TrimRight(trim("SUPABASE_URL"), "/"),
		serviceKey: trim("SUPABASE_SERVICE_ROLE_KEY"),
		anonKey:    trim("SUPABASE_ANON_KEY"),
		bucket:     trim("SUPABASE_BUCKET"),
		http:       &http.Client{Timeout: 60 * time.Second},
		retry:      retry.Policy{MaxAttempts: config.MaxRetries, Delay: retry.Linear(config.RetryDelay)},
	}
	if c.baseURL == "" || c.bucket == "" || (c.serviceKey == "" && c.anonKey == "") {
		return nil, fmt.Errorf("supabase configuration missing; set SUPABASE_URL, SUPABASE_BUCKET and at least one of SUPABASE_SERVICE_ROLE_KEY or SUPABASE_ANON_KEY")
	}
	return c, nil
}

func (c *Client) objectURL(objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, strings.Join(segments, "/"))
}

func (c *Client) setAuth(req *http.Request) {
	if c.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)
		req.Header.Set("apikey", c.serviceKey)
	} else {
		req.Header.Set("apikey", c.anonKey)
	}
}

// Upload PUTs the object, overwriting any existing one at the same path.
func (c *Client) Upload(ctx context.Context, objectPath, contentType string, data []byte) error {
	return c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL(objectPath), bytes.NewReader(data))
		if err != nil {
			return err
		}
		c.setAuth(req)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-upsert", "true")
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("storage upload failed: %d %s", resp.StatusCode, string(b))
	})
}

// Download fetches the object bytes.
func (c *Client) Download(ctx context.Context, objectPath string) ([]byte, error) {
	var data []byte
	err := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(objectPath), nil)
		if err != nil {
			return err
		}
		c.setAuth(req)
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("storage download failed: %d %s", resp.StatusCode, string(b))
		}
		data, err = io.ReadAll(resp.Body)
		return err
	})
	return data, err
}

// Delete removes the object. Used for cleanup when a later DB write fails.
func (c *Client) Delete(ctx context.Context, objectPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.objectURL(objectPath), nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("storage delete failed: %d %s", resp.StatusCode, string(b))
}
