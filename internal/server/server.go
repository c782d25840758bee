package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/WebForks/comfyui-remote/internal/comfy"
	"github.com/WebForks/comfyui-remote/internal/run"
	"github.com/WebForks/comfyui-remote/internal/store"
)

const sessionCookie = "comfyui_remote_session"

// Server is the password-gated HTTP surface of the proxy.
type Server struct {
	echo         *echo.Echo
	password     string
	client       *comfy.Client
	orchestrator *run.Orchestrator
	workflows    *store.WorkflowStore
	history      *store.HistoryStore

	mu       sync.Mutex
	sessions map[string]time.Time
}

// New wires up routes and middleware.
func New(password string, client *comfy.Client, orch *run.Orchestrator, workflows *store.WorkflowStore, history *store.HistoryStore) *Server {
	s := &Server{
		echo:         echo.New(),
		password:     password,
		client:       client,
		orchestrator: orch,
		workflows:    workflows,
		history:      history,
		sessions:     make(map[string]time.Time),
	}
	s.echo.HideBanner = true
	s.echo.Use(middleware.Logger())
	s.echo.Use(middleware.Recover())

	s.echo.POST("/api/login", s.handleLogin)
	s.echo.POST("/api/logout", s.handleLogout)

	api := s.echo.Group("/api", s.requireSession)
	api.GET("/workflows", s.handleListWorkflows)
	api.POST("/workflows", s.handleImportWorkflow)
	api.PATCH("/workflows/:id", s.handleRenameWorkflow)
	api.DELETE("/workflows/:id", s.handleDeleteWorkflow)

	api.POST("/runs", s.handleStartRun)
	api.GET("/runs/:id", s.handleRunStatus)

	api.GET("/history", s.handleListHistory)
	api.DELETE("/history/:id", s.handleDeleteHistory)
	api.GET("/images/:file", s.handleServeImage)
	api.GET("/view", s.handleProxyView)

	return s
}

// Handler exposes the underlying handler (tests).
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until the listener fails.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) handleLogin(c echo.Context) error {
	var body struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed login request")
	}
	if subtle.ConstantTimeCompare([]byte(body.Password), []byte(s.password)) != 1 {
		return echo.NewHTTPError(http.StatusUnauthorized, "wrong password")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	token := hex.EncodeToString(buf)
	s.mu.Lock()
	s.sessions[token] = time.Now()
	s.mu.Unlock()

	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(c echo.Context) error {
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
	}
	c.SetCookie(&http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(sessionCookie)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		s.mu.Lock()
		_, ok := s.sessions[cookie.Value]
		s.mu.Unlock()
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		return next(c)
	}
}
