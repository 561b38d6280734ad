package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// StorageClient handles object storage operations.
type StorageClient struct {
	client *Client
}

func (s *StorageClient) objectURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.client.baseURL, bucket, escapePath(path))
}

// Upload stores data at bucket/path. Uploads run under the service role
// key; bucket policies on the hosted side still govern public access.
func (s *StorageClient) Upload(ctx context.Context, bucket, path string, data []byte, opts *UploadOptions) error {
	headers := map[string]string{}
	if opts != nil {
		if opts.ContentType != "" {
			headers["Content-Type"] = opts.ContentType
		}
		if opts.CacheControl != "" {
			headers["Cache-Control"] = opts.CacheControl
		}
		if opts.Upsert {
			headers["x-upsert"] = "true"
		}
	}
	if headers["Content-Type"] == "" {
		headers["Content-Type"] = "application/octet-stream"
	}

	resp, err := s.client.requestWithServiceKey(ctx, "POST", s.objectURL(bucket, path), data, headers)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return parseError(resp.Body, resp.StatusCode)
	}
	return nil
}

// Download fetches the object at bucket/path.
func (s *StorageClient) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	resp, err := s.client.requestWithServiceKey(ctx, "GET", s.objectURL(bucket, path), nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, parseError(resp.Body, resp.StatusCode)
	}
	return resp.Body, nil
}

// Remove deletes the given paths from a bucket.
func (s *StorageClient) Remove(ctx context.Context, bucket string, paths []string) error {
	body, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	urlStr := fmt.Sprintf("%s/storage/v1/object/%s", s.client.baseURL, bucket)
	resp, err := s.client.requestWithServiceKey(ctx, "DELETE", urlStr, body, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return parseError(resp.Body, resp.StatusCode)
	}
	return nil
}

// GetPublicURL returns the public URL for an object in a public bucket.
func (s *StorageClient) GetPublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.client.baseURL, bucket, escapePath(path))
}

// escapePath escapes each path segment but keeps the separators.
func escapePath(p string) string {
	segs := make([]string, 0, 4)
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			segs = append(segs, url.PathEscape(p[start:i]))
			start = i + 1
		}
	}
	out := segs[0]
	for _, s := range segs[1:] {
		out += "/" + s
	}
	return out
}
