// Package http serves the PET map page and its JSON API.
package http

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
	"github.com/couchcryptid/pet-microclimate/internal/interaction"
	"github.com/couchcryptid/pet-microclimate/internal/trend"
)

//go:embed web/index.html
var indexHTML []byte

// Service is the interaction layer behind the API.
type Service interface {
	Handle(ctx context.Context, in interaction.Interaction) (interaction.View, error)
	Nearest(ctx context.Context, click domain.Click) (domain.ReferenceRow, error)
	Trend(ctx context.Context, click domain.Click) (trend.Trend, error)
	RenderTrend(ctx context.Context, click domain.Click, w io.Writer) error
}

// MapSettings is the initial view of the map widget.
type MapSettings struct {
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
	Zoom      int     `json:"zoom"`
}

// Server bundles router and dependencies for the web UI and REST API.
type Server struct {
	addr            string
	svc             Service
	mapSettings     MapSettings
	logger          *slog.Logger
	engine          *gin.Engine
	shutdownTimeout time.Duration
}

// NewServer constructs a server with routes and middleware. An empty
// bearerToken leaves the API open.
func NewServer(addr string, svc Service, mapSettings MapSettings, bearerToken string, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))
	engine.Use(corsMiddleware())

	s := &Server{
		addr:            addr,
		svc:             svc,
		mapSettings:     mapSettings,
		logger:          logger,
		engine:          engine,
		shutdownTimeout: 10 * time.Second,
	}
	s.registerRoutes(bearerToken)
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ServeHTTP delegates to the gin engine, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server starting", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// SetShutdownTimeout bounds how long Run waits for in-flight requests.
func (s *Server) SetShutdownTimeout(d time.Duration) {
	s.shutdownTimeout = d
}

func (s *Server) registerRoutes(bearerToken string) {
	s.engine.GET("/", s.handleIndex)

	v1 := s.engine.Group("/api/v1")
	if bearerToken != "" {
		v1.Use(bearerAuthMiddleware(bearerToken))
	}
	v1.GET("/map", s.handleMap)
	v1.GET("/points/nearest", s.handleNearest)
	v1.POST("/interactions", s.handleInteraction)
	v1.GET("/trend", s.handleTrend)
	v1.GET("/trend.png", s.handleTrendPNG)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) handleMap(c *gin.Context) {
	c.JSON(http.StatusOK, s.mapSettings)
}

func (s *Server) handleNearest(c *gin.Context) {
	click, ok := clickFromQuery(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	row, err := s.svc.Nearest(ctx, click)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": row})
}

// interactionRequest is the POST body. Pointers keep an omitted click or
// coordinate apart from an explicit zero.
type interactionRequest struct {
	Click *struct {
		Lat *float64 `json:"lat" binding:"required"`
		Lng *float64 `json:"lng" binding:"required"`
	} `json:"click" binding:"required"`
	SVF          *float64 `json:"svf"`
	GVI          *float64 `json:"gvi"`
	BVI          *float64 `json:"bvi"`
	SelectedTime string   `json:"selected_time"`
}

func (r interactionRequest) toInteraction() interaction.Interaction {
	return interaction.Interaction{
		Click:        domain.Click{Lat: *r.Click.Lat, Lng: *r.Click.Lng},
		SVF:          r.SVF,
		GVI:          r.GVI,
		BVI:          r.BVI,
		SelectedTime: r.SelectedTime,
	}
}

func (s *Server) handleInteraction(c *gin.Context) {
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	in := req.toInteraction()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	view, err := s.svc.Handle(ctx, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) handleTrend(c *gin.Context) {
	click, ok := clickFromQuery(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	t, err := s.svc.Trend(ctx, click)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": t,
		"meta": gin.H{"count": len(t.Points)},
	})
}

func (s *Server) handleTrendPNG(c *gin.Context) {
	click, ok := clickFromQuery(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var buf bytes.Buffer
	err := s.svc.RenderTrend(ctx, click, &buf)
	if errors.Is(err, trend.ErrEmptyTrend) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// clickFromQuery reads ?lat=&lon=, writing a 400 response when either is invalid.
func clickFromQuery(c *gin.Context) (domain.Click, bool) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lat"})
		return domain.Click{}, false
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lon"})
		return domain.Click{}, false
	}
	return domain.Click{Lat: lat, Lng: lon}, true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if interaction.IsInputError(err) {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
