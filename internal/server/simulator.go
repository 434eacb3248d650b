package server

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlx/internal/models"
)

const (
	progressTotal  = 100
	createChance   = 6  // one in N steps starts a new download
	failChance     = 10 // one in N finished downloads fails
	maxRunning     = 5
	maxProgressHop = 25
)

// Simulator drives the demo backend: it advances running downloads, finishes them and
// occasionally starts new ones.
type Simulator struct {
	backend  *Backend
	interval time.Duration
	rng      *rand.Rand
	progress map[int64]float64
	logger   *log.Logger
}

// NewSimulator creates a simulator stepping every interval.
func NewSimulator(backend *Backend, interval time.Duration, rng *rand.Rand, logger *log.Logger) *Simulator {
	return &Simulator{
		backend:  backend,
		interval: interval,
		rng:      rng,
		progress: make(map[int64]float64),
		logger:   logger.With("component", "simulator"),
	}
}

// Run steps until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step advances every running download once.
func (s *Simulator) Step() {
	running := s.backend.Running()

	for _, id := range running {
		current := s.progress[id] + float64(1+s.rng.IntN(maxProgressHop))
		if current < progressTotal {
			s.progress[id] = current
			if err := s.backend.Progress(id, current, progressTotal); err != nil {
				delete(s.progress, id)
			}
			continue
		}

		delete(s.progress, id)
		status, message := statusCompleted, ""
		if s.rng.IntN(failChance) == 0 {
			status, message = statusFailed, failedStatusMessage
		}
		if err := s.backend.Finish(id, status, message); err != nil {
			s.logger.Debug("download vanished before finishing", "id", id)
			continue
		}
		s.logger.Info("download finished", "id", id, "status", status)
	}

	if len(running) < maxRunning && s.rng.IntN(createChance) == 0 {
		mt := models.MediaTypes[s.rng.IntN(len(models.MediaTypes))]
		title := demoTitles[s.rng.IntN(len(demoTitles))]
		e := s.backend.Create(fmt.Sprintf("%s%s/%d", demoURLPrefix, mt, s.rng.Uint32()), title, mt)
		s.logger.Info("download started", "id", e.ID, "url", e.URL)
	}
}
