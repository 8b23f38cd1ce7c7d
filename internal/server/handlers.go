package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/enrich"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/output"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/report"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/session"
)

// analyzeResponse is the body of a successful POST /api/analyze.
type analyzeResponse struct {
	Result    *model.AnalysisResult `json:"result"`
	SessionID string                `json:"sessionId,omitempty"`
}

// handleAnalyze parses an uploaded report.
// POST /api/analyze
// Content-Type: multipart/form-data, field "files" (repeatable)
// Query params: enrich=true, role=<Executive|Administrator|Developer>, save=true
//
// The first .html file is the report; every other file is passed to the
// enricher as a raw attachment.
func (s *Server) handleAnalyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", s.opts.MaxUploadBytes)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid multipart form: %v", err)})
		return
	}

	var (
		reportData  []byte
		names       []string
		attachments []enrich.RawFile
	)
	for _, fh := range form.File["files"] {
		data, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		names = append(names, fh.Filename)
		if reportData == nil && report.IsHTMLName(fh.Filename) {
			reportData = data
			continue
		}
		attachments = append(attachments, enrich.RawFile{Name: fh.Filename, Data: data})
	}
	if reportData == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "an .html report file is required in field \"files\""})
		return
	}

	result, err := report.ParseBytes(reportData, s.opts.Report)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, report.ErrUnrecognizedReport) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if queryBool(c, "enrich") {
		role := model.ParseRole(c.Query("role"))
		if role == "" {
			role = model.RoleAdministrator
		}
		enriched, err := enrich.NewLocal(role).Enrich(c.Request.Context(), result, attachments)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("enrichment failed: %v", err)})
			return
		}
		result = enriched
	}

	resp := analyzeResponse{Result: result}
	if queryBool(c, "save") {
		if s.opts.Store == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session storage is disabled"})
			return
		}
		sess, err := s.opts.Store.Save(c.Request.Context(), result, names)
		if err != nil {
			s.progress.Log("ERROR: save session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
			return
		}
		resp.SessionID = sess.ID
	}

	s.progress.Debug("analyzed %v: health=%d anomalies=%d", names, result.HealthScore, len(result.Anomalies))
	c.JSON(http.StatusOK, resp)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return data, nil
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

// GET /api/sessions
func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.opts.Store.List(c.Request.Context())
	if err != nil {
		s.progress.Log("ERROR: list sessions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// GET /api/sessions/:id
func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess)
}

// GET /api/sessions/:id/metrics returns the stored analysis in Prometheus
// text exposition format.
func (s *Server) handleSessionMetrics(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	if sess.Result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session has no analysis"})
		return
	}
	c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	c.Status(http.StatusOK)
	if err := output.WritePrometheus(c.Writer, sess.Result); err != nil {
		s.progress.Log("ERROR: write metrics: %v", err)
	}
}

// DELETE /api/sessions/:id
func (s *Server) handleDeleteSession(c *gin.Context) {
	err := s.opts.Store.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case err != nil:
		s.progress.Log("ERROR: delete session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
	default:
		c.Status(http.StatusNoContent)
	}
}

// DELETE /api/sessions
func (s *Server) handleClearSessions(c *gin.Context) {
	if err := s.opts.Store.Clear(c.Request.Context()); err != nil {
		s.progress.Log("ERROR: clear sessions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear sessions"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) lookup(c *gin.Context) (*model.Session, bool) {
	sess, err := s.opts.Store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	if err != nil {
		s.progress.Log("ERROR: get session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return nil, false
	}
	return sess, true
}
