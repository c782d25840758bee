package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

/*
Render backend routes we depend on:

@routes.post("/upload/image")
@routes.post("/prompt")
@routes.get("/history")
@routes.get("/history/{prompt_id}")
@routes.get("/view")
*/

// Client talks to a single render backend instance.
type Client struct {
	baseURL    string
	httpclient *http.Client
}

// NewClient creates a client for the backend at baseURL
// (e.g. "http://localhost:8188").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpclient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the backend address the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetHTTPClient replaces the underlying http client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpclient = client
}

// Upload posts an input image as multipart form data and returns the
// filename the backend stored it under, which may differ from the name we
// provided.
func (c *Client) Upload(ctx context.Context, r io.Reader, filename string) (string, error) {
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	formFile, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return "", err
	}
	if _, err = io.Copy(formFile, r); err != nil {
		return "", err
	}
	_ = writer.WriteField("overwrite", "true")
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &requestBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UploadError{Status: resp.StatusCode, Body: string(body)}
	}

	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", &UploadError{Status: resp.StatusCode, Body: string(body)}
	}
	// backends have shipped both field names
	if name, ok := data["name"].(string); ok && name != "" {
		return name, nil
	}
	if name, ok := data["filename"].(string); ok && name != "" {
		return name, nil
	}
	return "", &UploadError{Status: resp.StatusCode, Body: string(body)}
}

// Submit posts a compiled job and returns the remote job id.  clientID is
// only used by the backend for session correlation; it plays no role in
// retry deduplication.
func (c *Client) Submit(ctx context.Context, job interface{}, clientID string) (string, error) {
	payload := map[string]interface{}{
		"client_id": clientID,
		"prompt":    job,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SubmitError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.PromptID == "" {
		return "", &SubmitError{Status: resp.StatusCode, Body: string(body)}
	}
	return parsed.PromptID, nil
}

// StatusProbe is one poll attempt's view of a running job.  Image is nil
// while the job is still running.  The raw history payloads are retained so
// a timed-out run can surface what the backend last reported.
type StatusProbe struct {
	Image       *ImageResult
	JobHistory  json.RawMessage
	FullHistory json.RawMessage
}

// FetchStatus checks both the job-specific history endpoint and the full
// history for a finished image.  The backend does not guarantee the
// job-specific endpoint is populated first, so both are consulted, with the
// job-specific response preferred.  A nil Image with a nil error means the
// job is still running; an error means this poll attempt failed and should
// be treated as transient.
func (c *Client) FetchStatus(ctx context.Context, jobID string) (*StatusProbe, error) {
	probe := &StatusProbe{}

	body, err := c.get(ctx, fmt.Sprintf("%s/history/%s", c.baseURL, url.PathEscape(jobID)))
	if err == nil {
		probe.JobHistory = body
		if img := ExtractImage(body, jobID); img != nil {
			probe.Image = img
			return probe, nil
		}
	}

	full, ferr := c.get(ctx, c.baseURL+"/history")
	if ferr != nil {
		if err != nil {
			return nil, err
		}
		return probe, nil
	}
	probe.FullHistory = full
	if img := ExtractImage(full, jobID); img != nil {
		probe.Image = img
	}
	return probe, nil
}

// Download fetches the raw bytes of a finished image through /view.
func (c *Client) Download(ctx context.Context, img *ImageResult) ([]byte, error) {
	params := url.Values{}
	params.Add("filename", img.Filename)
	params.Add("subfolder", img.Subfolder)
	params.Add("type", img.Type)
	return c.get(ctx, fmt.Sprintf("%s/view?%s", c.baseURL, params.Encode()))
}

// ViewURL returns the direct backend URL for a finished image.
func (c *Client) ViewURL(img *ImageResult) string {
	params := url.Values{}
	params.Add("filename", img.Filename)
	params.Add("subfolder", img.Subfolder)
	params.Add("type", img.Type)
	return fmt.Sprintf("%s/view?%s", c.baseURL, params.Encode())
}

func (c *Client) get(ctx context.Context, rawurl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: status %d", rawurl, resp.StatusCode)
	}
	return body, nil
}
