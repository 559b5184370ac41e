// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves read-only inspection endpoints over persisted
// workflow states.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/orchestrator"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/store"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/telemetry"
)

const (
	serviceName     = "workflow-api"
	shutdownTimeout = 10 * time.Second
)

// Server exposes workflow states over HTTP.
type Server struct {
	store  store.Store
	logger *slog.Logger
	router *gin.Engine
	now    func() time.Time
}

// NewServer creates a Server reading from st.
func NewServer(st store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  st,
		logger: logger,
		router: gin.New(),
		now:    time.Now,
	}
	s.router.Use(gin.Recovery(), otelgin.Middleware(serviceName), s.requestLogger())
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/health", s.health)
	if h := telemetry.MetricsHandler(); h != nil {
		s.router.GET("/metrics", gin.WrapH(h))
	}

	v1 := s.router.Group("/v1")
	{
		workflows := v1.Group("/workflows")
		{
			workflows.GET("", s.listWorkflows)
			workflows.GET("/:name", s.getWorkflow)
			workflows.GET("/:name/summary", s.getSummary)
			workflows.GET("/:name/code", s.getCode)
			workflows.DELETE("/:name", s.deleteWorkflow)
		}
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting workflow API", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("Shutting down workflow API")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		telemetry.LoggerWithTrace(c.Request.Context(), s.logger).Debug("Request handled",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// workflowListItem is one entry of the workflow list.
type workflowListItem struct {
	Name         string             `json:"name"`
	RunID        string             `json:"run_id,omitempty"`
	Phase        orchestrator.Phase `json:"phase,omitempty"`
	UpdatedAt    *time.Time         `json:"updated_at,omitempty"`
	IsSuccessful bool               `json:"is_successful"`
	Error        string             `json:"error,omitempty"`
}

func (s *Server) listWorkflows(c *gin.Context) {
	ctx := c.Request.Context()
	names, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list workflows", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list workflows"})
		return
	}

	items := make([]workflowListItem, 0, len(names))
	for _, name := range names {
		item := workflowListItem{Name: name}
		st, err := s.loadState(ctx, name)
		if err != nil {
			item.Error = err.Error()
		} else {
			updated := st.UpdatedAt
			item.RunID = st.RunID
			item.Phase = st.Phase
			item.UpdatedAt = &updated
			item.IsSuccessful = st.IsSuccessful
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"workflows": items, "count": len(items)})
}

func (s *Server) getWorkflow(c *gin.Context) {
	st, ok := s.stateOrAbort(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) getSummary(c *gin.Context) {
	st, ok := s.stateOrAbort(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, orchestrator.Summarize(st, s.now()))
}

// getCode returns the saved code artifact, falling back to the code kept
// in the state when the artifact is gone.
func (s *Server) getCode(c *gin.Context) {
	st, ok := s.stateOrAbort(c)
	if !ok {
		return
	}
	code := st.GeneratedCode
	if st.GeneratedCodePath != "" {
		if data, err := os.ReadFile(st.GeneratedCodePath); err == nil {
			code = string(data)
		}
	}
	if code == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no generated code"})
		return
	}
	c.Data(http.StatusOK, "text/x-python; charset=utf-8", []byte(code))
}

func (s *Server) deleteWorkflow(c *gin.Context) {
	name := c.Param("name")
	if err := s.store.Delete(c.Request.Context(), name); err != nil {
		s.logger.Error("Failed to delete workflow",
			slog.String("workflow", name),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete workflow"})
		return
	}
	s.logger.Info("Deleted workflow state", slog.String("workflow", name))
	c.JSON(http.StatusOK, gin.H{"status": "success", "deleted": store.SanitizeName(name)})
}

func (s *Server) loadState(ctx context.Context, name string) (*orchestrator.WorkflowState, error) {
	data, err := s.store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return orchestrator.UnmarshalState(data)
}

func (s *Server) stateOrAbort(c *gin.Context) (*orchestrator.WorkflowState, bool) {
	name := c.Param("name")
	st, err := s.loadState(c.Request.Context(), name)
	switch {
	case err == nil:
		return st, true
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found", "workflow": name})
	case errors.Is(err, orchestrator.ErrCorruptState):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.logger.Error("Failed to load workflow",
			slog.String("workflow", name),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load workflow"})
	}
	return nil, false
}
