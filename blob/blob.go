// Package blob talks to the external file store holding document files
// and property images. Deletion failures are reported to callers, who
// treat them as non-fatal.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"
)

// Storage releases externally stored files by their public URL.
type Storage interface {
	Delete(ctx context.Context, url string) error
	// DeleteMany deletes a batch and returns how many were accepted.
	DeleteMany(ctx context.Context, urls []string) (int, error)
}

var fileKeyPattern = regexp.MustCompile(`/f/([^/?]+)`)

// FileKey extracts the storage key from a file URL of the form
// https://host/f/{key}. Empty when the URL does not carry a key.
func FileKey(url string) string {
	m := fileKeyPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// Client calls the blob store's REST API.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Delete(ctx context.Context, url string) error {
	_, err := c.deleteKeys(ctx, []string{url})
	return err
}

func (c *Client) DeleteMany(ctx context.Context, urls []string) (int, error) {
	return c.deleteKeys(ctx, urls)
}

func (c *Client) deleteKeys(ctx context.Context, urls []string) (int, error) {
	keys := make([]string, 0, len(urls))
	for _, u := range urls {
		if k := FileKey(u); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}

	body, err := json.Marshal(map[string]any{"fileKeys": keys})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v6/deleteFiles", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Uploadthing-Api-Key", c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("blob delete failed: status %d", resp.StatusCode)
	}

	var out struct {
		Success      bool `json:"success"`
		DeletedCount int  `json:"deletedCount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if !out.Success {
		return out.DeletedCount, fmt.Errorf("blob delete rejected")
	}
	return out.DeletedCount, nil
}
