// Package upload provides the attachment upload capability: an opaque
// function that takes file bytes and returns the final URL the record
// payload should reference.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/collabdesk/collabdesk/internal/shared"
)

// Uploader stores an attachment and returns its final URL.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// PresignFunc obtains a presigned PUT URL and the final public URL for an
// attachment name.
type PresignFunc func(ctx context.Context, name string) (putURL, finalURL string, err error)

// PresignedUploader PUTs attachment bytes to object storage through
// presigned URLs issued by the backend.
type PresignedUploader struct {
	presign PresignFunc
	client  *http.Client
}

// NewPresignedUploader returns an uploader using presign. A nil client
// falls back to http.DefaultClient.
func NewPresignedUploader(presign PresignFunc, client *http.Client) *PresignedUploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &PresignedUploader{presign: presign, client: client}
}

func (u *PresignedUploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	putURL, finalURL, err := u.presign(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrorUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: %s; body: %s", shared.ErrorUploadFailed, resp.Status, string(b))
	}
	return finalURL, nil
}

// HTTPPresign returns a PresignFunc that asks the backend's presign
// endpoint for URLs. The endpoint receives the attachment name as a
// query parameter and answers with JSON:
//
//	{"putUrl": "...", "fileUrl": "..."}
func HTTPPresign(endpoint string, client *http.Client) PresignFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, name string) (string, string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?name="+url.QueryEscape(name), nil)
		if err != nil {
			return "", "", err
		}

		resp, err := client.Do(req)
		if err != nil {
			return "", "", fmt.Errorf("failed to request presigned url: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", "", fmt.Errorf("failed to request presigned url: %s", resp.Status)
		}

		var out struct {
			PutURL  string `json:"putUrl"`
			FileURL string `json:"fileUrl"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", "", fmt.Errorf("failed to decode presign response: %w", err)
		}
		return out.PutURL, out.FileURL, nil
	}
}
