package comfy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload/image", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		assert.Equal(t, "cat.png", header.Filename)
		w.Write([]byte(`{"name": "cat_00001.png", "subfolder": "", "type": "input"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	name, err := c.Upload(context.Background(), strings.NewReader("pngbytes"), "cat.png")
	require.NoError(t, err)
	assert.Equal(t, "cat_00001.png", name)
}

func TestUploadFilenameField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"filename": "alt.png"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	name, err := c.Upload(context.Background(), strings.NewReader("x"), "alt.png")
	require.NoError(t, err)
	assert.Equal(t, "alt.png", name)
}

func TestUploadErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "disk full", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Upload(context.Background(), strings.NewReader("x"), "cat.png")
	var uerr *UploadError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, http.StatusInternalServerError, uerr.Status)
	assert.Contains(t, uerr.Body, "disk full")
}

func TestUploadUnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Upload(context.Background(), strings.NewReader("x"), "cat.png")
	var uerr *UploadError
	require.True(t, errors.As(err, &uerr))
}

func TestSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/prompt", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"prompt_id": "job-1", "number": 3}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	id, err := c.Submit(context.Background(), map[string]interface{}{}, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
}

func TestSubmitErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "Prompt has no outputs"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Submit(context.Background(), map[string]interface{}{}, "client-1")
	var serr *SubmitError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusBadRequest, serr.Status)
	assert.Contains(t, serr.Body, "no outputs")
}

func TestSubmitMissingPromptID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Submit(context.Background(), map[string]interface{}{}, "client-1")
	var serr *SubmitError
	require.True(t, errors.As(err, &serr))
}

func TestFetchStatusPrefersJobSpecificHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/history/job-1":
			w.Write([]byte(`{"job-1": {"outputs": {"9": {"images": [{"filename": "specific.png", "type": "output"}]}}}}`))
		case "/history":
			w.Write([]byte(`{"job-1": {"outputs": {"9": {"images": [{"filename": "full.png", "type": "output"}]}}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	probe, err := c.FetchStatus(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, probe.Image)
	assert.Equal(t, "specific.png", probe.Image.Filename)
}

func TestFetchStatusFallsBackToFullHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/history/job-1":
			w.Write([]byte(`{}`))
		case "/history":
			w.Write([]byte(`{"job-1": {"outputs": {"9": {"images": [{"filename": "full.png", "type": "output"}]}}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	probe, err := c.FetchStatus(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, probe.Image)
	assert.Equal(t, "full.png", probe.Image.Filename)
}

func TestFetchStatusStillRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	probe, err := c.FetchStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Nil(t, probe.Image)
}

func TestFetchStatusBothEndpointsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.FetchStatus(context.Background(), "job-1")
	assert.Error(t, err)
}

func TestDownloadAndViewURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/view", r.URL.Path)
		assert.Equal(t, "out.png", r.URL.Query().Get("filename"))
		assert.Equal(t, "output", r.URL.Query().Get("type"))
		w.Write([]byte("imagebytes"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	img := &ImageResult{Filename: "out.png", Type: "output"}
	data, err := c.Download(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, []byte("imagebytes"), data)
	assert.Contains(t, c.ViewURL(img), "/view?filename=out.png")
}
