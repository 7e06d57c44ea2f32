// Package feed serves a release directory as an update feed.
package feed

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/plxgio/sakura-launcher/internal/release"
	"github.com/plxgio/sakura-launcher/internal/update"
)

// DefaultPrefix is the URL path the release files are served under.
const DefaultPrefix = "/updates"

const shutdownTimeout = 5 * time.Second

// APIError is the body of every error response.
type APIError struct {
	Error APIErrorInner `json:"error"`
}

type APIErrorInner struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Options configures a Server.
type Options struct {
	Dir          string
	Prefix       string
	ManifestName string
	ArchiveName  string
}

// Server exposes the manifest and archive of a release directory.
type Server struct {
	opts   Options
	engine *gin.Engine
}

// NewServer builds the routes for a release directory.
func NewServer(opts Options) (*Server, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("feed: " + opts.Dir + " is not a directory")
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	opts.Prefix = "/" + strings.Trim(opts.Prefix, "/")
	if opts.ManifestName == "" {
		opts.ManifestName = release.DefaultManifestName
	}
	if opts.ArchiveName == "" {
		opts.ArchiveName = release.DefaultArchiveName
	}

	s := &Server{opts: opts}
	s.engine = s.buildApp()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) buildApp() *gin.Engine {
	log.Debug("Building feed app")
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/api/v1/ping", ping)
	r.GET("/api/v1/latest", s.latest)

	files := r.Group(s.opts.Prefix)
	files.GET("/:file", s.serveFile)
	files.HEAD("/:file", s.serveFile)

	return r
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// latest returns the manifest as the launcher would decode it.
func (s *Server) latest(c *gin.Context) {
	data, err := os.ReadFile(filepath.Join(s.opts.Dir, s.opts.ManifestName))
	if err != nil {
		respondWithError(c, http.StatusNotFound, errors.New("no release published"))
		return
	}
	m, err := update.DecodeManifest(data)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) serveFile(c *gin.Context) {
	name := c.Param("file")
	if name != s.opts.ManifestName && name != s.opts.ArchiveName {
		respondWithError(c, http.StatusNotFound, errors.New("unknown file "+name))
		return
	}

	path := filepath.Join(s.opts.Dir, name)
	if _, err := os.Stat(path); err != nil {
		respondWithError(c, http.StatusNotFound, errors.New(name+" has not been published"))
		return
	}

	c.Header("Cache-Control", "no-cache")
	if name == s.opts.ManifestName {
		c.Header("Content-Type", "application/json")
	}
	c.File(path)
}

func respondWithError(c *gin.Context, statusCode int, err error) {
	c.AbortWithStatusJSON(statusCode, APIError{
		Error: APIErrorInner{Code: statusCode, Message: err.Error()},
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"bytes":    c.Writer.Size(),
			"duration": time.Since(start),
			"client":   c.ClientIP(),
		}).Info("request")
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("serving %s on %s%s", s.opts.Dir, addr, s.opts.Prefix)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down feed server")
		return srv.Shutdown(shutdownCtx)
	}
}
