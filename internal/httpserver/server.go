package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Stats is the live status snapshot served on /stats.
type Stats struct {
	TransportState string `json:"transport_state"`
	UtterancesSent uint64 `json:"utterances_sent"`
	ItemsPlayed    uint64 `json:"items_played"`
}

// StatsFunc produces a Stats snapshot on each request.
type StatsFunc func() Stats

// Meter is the latest VAD reading served on /meter.
type Meter struct {
	Speech    bool      `json:"speech"`
	Energy    float64   `json:"energy"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MeterStore keeps the most recent VAD decision. Update matches
// vad.StatusFunc so it can be registered directly as the detector's
// status callback.
type MeterStore struct {
	mu sync.Mutex
	m  Meter
}

func (s *MeterStore) Update(speech bool, energy float64) {
	s.mu.Lock()
	s.m = Meter{Speech: speech, Energy: energy, UpdatedAt: time.Now()}
	s.mu.Unlock()
}

func (s *MeterStore) Snapshot() Meter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m
}

// Server is the local status endpoint of the voice client.
type Server struct {
	Echo *echo.Echo
}

// New creates a configured Echo instance serving health, stats and the
// live VAD meter.
func New(stats StatsFunc, meter *MeterStore) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/stats", func(c echo.Context) error {
		if stats == nil {
			return c.JSON(http.StatusOK, Stats{})
		}
		return c.JSON(http.StatusOK, stats())
	})
	e.GET("/meter", func(c echo.Context) error {
		if meter == nil {
			return c.JSON(http.StatusOK, Meter{})
		}
		return c.JSON(http.StatusOK, meter.Snapshot())
	})

	return &Server{Echo: e}
}

// Start blocks serving on addr until the server is shut down.
func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}
