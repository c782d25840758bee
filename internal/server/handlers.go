package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/WebForks/comfyui-remote/internal/run"
	"github.com/WebForks/comfyui-remote/internal/store"
)

func (s *Server) handleListWorkflows(c echo.Context) error {
	wfs, err := s.workflows.ReadAll()
	if err != nil {
		return err
	}
	type item struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		CreatedAt string `json:"created_at"`
	}
	items := make([]item, len(wfs))
	for i, wf := range wfs {
		items[i] = item{ID: wf.ID, Name: wf.Name, CreatedAt: wf.CreatedAt.Format("2006-01-02T15:04:05Z07:00")}
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleImportWorkflow(c echo.Context) error {
	var body struct {
		Name  string          `json:"name"`
		Graph json.RawMessage `json:"graph"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed import request")
	}
	if body.Name == "" || len(body.Graph) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "name and graph are required")
	}
	wf, err := s.workflows.Import(body.Name, body.Graph)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": wf.ID})
}

func (s *Server) handleRenameWorkflow(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil || body.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if err := s.workflows.Rename(c.Param("id"), body.Name); err != nil {
		return mapStoreError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteWorkflow(c echo.Context) error {
	if err := s.workflows.Delete(c.Param("id")); err != nil {
		return mapStoreError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type runRequest struct {
	WorkflowID     string `json:"workflow_id" form:"workflow_id"`
	PositivePrompt string `json:"positive_prompt" form:"positive_prompt"`
	NegativePrompt string `json:"negative_prompt" form:"negative_prompt"`
	Seed           int64  `json:"seed" form:"seed"`
	Steps          int    `json:"steps" form:"steps"`
	// Wait selects the long-lived variant: the response blocks until the
	// run is terminal.  With wait=false the caller polls GET /api/runs/:id
	// on its own timer.
	Wait bool `json:"wait" form:"wait"`
}

func (s *Server) handleStartRun(c echo.Context) error {
	req := runRequest{Seed: -1, Wait: true}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed run request")
	}
	if req.WorkflowID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workflow_id is required")
	}

	wf, err := s.workflows.Get(req.WorkflowID)
	if err != nil {
		return mapStoreError(err)
	}

	params := run.Params{
		PositivePrompt: req.PositivePrompt,
		NegativePrompt: req.NegativePrompt,
		Seed:           req.Seed,
		Steps:          req.Steps,
	}
	if file, err := c.FormFile("image"); err == nil {
		f, err := file.Open()
		if err != nil {
			return err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		params.InputImage = data
		params.InputImageName = file.Filename
	}

	r, err := s.orchestrator.Start(c.Request().Context(), wf, params)
	if err != nil {
		status := http.StatusBadGateway
		if strings.Contains(err.Error(), "does not parse") {
			status = http.StatusBadRequest
		}
		return echo.NewHTTPError(status, err.Error())
	}

	if req.Wait {
		s.orchestrator.Wait(c.Request().Context(), r)
	}
	return c.JSON(http.StatusOK, runSnapshot(r))
}

func (s *Server) handleRunStatus(c echo.Context) error {
	r := s.orchestrator.Get(c.Param("id"))
	if r == nil {
		return echo.NewHTTPError(http.StatusNotFound, "unknown run")
	}
	// one checkpointed poll attempt per status call
	s.orchestrator.PollOnce(c.Request().Context(), r)
	return c.JSON(http.StatusOK, runSnapshot(r))
}

func runSnapshot(r *run.Run) map[string]interface{} {
	snap := map[string]interface{}{
		"id":     r.ID,
		"state":  string(r.State()),
		"job_id": r.PromptID(),
	}
	if detail := r.ErrDetail(); detail != "" {
		snap["error"] = detail
	}
	if res := r.Result(); res != nil {
		snap["image"] = map[string]string{
			"filename":  res.Image.Filename,
			"proxy_url": res.ProxyURL,
			"view_url":  res.ViewURL,
		}
		if res.Record != nil {
			snap["record_id"] = res.Record.ID
		}
	}
	if r.State() == run.StateTimedOut {
		jobHist, fullHist := r.LastHistories()
		if jobHist != nil {
			snap["last_job_history"] = json.RawMessage(jobHist)
		}
		if fullHist != nil {
			snap["last_full_history"] = json.RawMessage(fullHist)
		}
	}
	return snap
}

func (s *Server) handleListHistory(c echo.Context) error {
	records, err := s.history.List()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleDeleteHistory(c echo.Context) error {
	if err := s.history.Delete(c.Param("id")); err != nil {
		return mapStoreError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleServeImage(c echo.Context) error {
	path, err := s.history.ImagePath(c.Param("file"))
	if err != nil {
		return mapStoreError(err)
	}
	return c.File(path)
}

// handleProxyView forwards /view requests to the render backend so clients
// can display images that were never persisted locally without talking to
// the backend directly.
func (s *Server) handleProxyView(c echo.Context) error {
	q := c.QueryParams()
	target := s.client.BaseURL() + "/view?" + q.Encode()

	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.Stream(resp.StatusCode, contentType, resp.Body)
}

func mapStoreError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return err
}
