package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabdesk/collabdesk/internal/shared"
)

func TestUpload_PutsBytesAndReturnsFinalURL(t *testing.T) {
	var gotBody []byte
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	u := NewPresignedUploader(func(ctx context.Context, name string) (string, string, error) {
		return srv.URL + "/put/" + name, "https://cdn.example.com/" + name, nil
	}, nil)

	finalURL, err := u.Upload(context.Background(), "report.pdf", []byte("content"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/report.pdf", finalURL)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, []byte("content"), gotBody)
}

func TestUpload_Non200IsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	u := NewPresignedUploader(func(ctx context.Context, name string) (string, string, error) {
		return srv.URL, "", nil
	}, nil)

	_, err := u.Upload(context.Background(), "x", nil)
	assert.ErrorIs(t, err, shared.ErrorUploadFailed)
}

func TestHTTPPresign_DecodesEndpointResponse(t *testing.T) {
	var gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotName = r.URL.Query().Get("name")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"putUrl":"https://bucket.example.com/put","fileUrl":"https://cdn.example.com/report.pdf"}`))
	}))
	t.Cleanup(srv.Close)

	presign := HTTPPresign(srv.URL, nil)
	putURL, fileURL, err := presign(context.Background(), "report.pdf")

	require.NoError(t, err)
	assert.Equal(t, "report.pdf", gotName)
	assert.Equal(t, "https://bucket.example.com/put", putURL)
	assert.Equal(t, "https://cdn.example.com/report.pdf", fileURL)
}

func TestHTTPPresign_Non200IsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	presign := HTTPPresign(srv.URL, nil)
	_, _, err := presign(context.Background(), "x")
	assert.Error(t, err)
}

func TestUpload_PresignFailure(t *testing.T) {
	u := NewPresignedUploader(func(ctx context.Context, name string) (string, string, error) {
		return "", "", context.DeadlineExceeded
	}, nil)

	_, err := u.Upload(context.Background(), "x", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
