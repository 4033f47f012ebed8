// Package httpserver serves the single-page query form. It is a thin
// presentation collaborator: all it needs from the core is ProcessRequest.
package httpserver

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Processor is the single entry point the form needs from the core.
type Processor interface {
	ProcessRequest(ctx context.Context, query string) string
}

var page = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>MailMind</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
textarea { width: 100%; height: 4rem; }
pre { white-space: pre-wrap; background: #f6f6f6; padding: 1rem; }
</style>
</head>
<body>
<h1>MailMind</h1>
<form method="post" action="/">
<textarea name="userInput" placeholder="e.g. emails from Alice about the budget">{{.Query}}</textarea>
<p><button type="submit">Search</button></p>
</form>
{{if .Report}}<h2>Results</h2><pre>{{.Report}}</pre>{{end}}
</body>
</html>
`))

type pageData struct {
	Query  string
	Report string
}

// Server wires the form, health and metrics endpoints.
type Server struct {
	engine    *gin.Engine
	processor Processor
	logger    *zap.Logger
}

// New builds the server around the given processor.
func New(processor Processor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, processor: processor, logger: logger}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/", s.renderForm)
	engine.POST("/", s.handleQuery)

	return s
}

func (s *Server) renderForm(c *gin.Context) {
	s.render(c, pageData{})
}

func (s *Server) handleQuery(c *gin.Context) {
	query := c.PostForm("userInput")

	start := time.Now()
	report := s.processor.ProcessRequest(c.Request.Context(), query)
	s.logger.Info("form query handled",
		zap.Duration("elapsed", time.Since(start)))

	s.render(c, pageData{Query: query, Report: report})
}

func (s *Server) render(c *gin.Context, data pageData) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := page.Execute(c.Writer, data); err != nil {
		s.logger.Error("rendering page", zap.Error(err))
	}
}

// Handler exposes the underlying handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	return s.engine.Run(addr)
}
