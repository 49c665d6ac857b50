package jobs

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"rankstream/internal/models"
	"rankstream/internal/service"
)

// Simulator fires random point awards through the real scoring path for load
// testing and demos. Bypasses the HTTP layer entirely.
type Simulator struct {
	scoring *service.ScoringService
	source  DurableSource
	users   []models.User
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	totalAwards atomic.Int64
	startTime   time.Time

	tickInterval  time.Duration
	awardsPerTick int
	minPoints     int64
	maxPoints     int64
}

// SimulatorConfig holds configuration for the simulator
type SimulatorConfig struct {
	TickInterval  time.Duration // default 500ms
	AwardsPerTick int           // default 1
	MinPoints     int64         // default 1
	MaxPoints     int64         // default 50
}

// NewSimulator creates a new award simulator
func NewSimulator(scoring *service.ScoringService, source DurableSource, config SimulatorConfig) *Simulator {
	if config.TickInterval == 0 {
		config.TickInterval = 500 * time.Millisecond
	}
	if config.AwardsPerTick == 0 {
		config.AwardsPerTick = 1
	}
	if config.MinPoints <= 0 {
		config.MinPoints = 1
	}
	if config.MaxPoints < config.MinPoints {
		config.MaxPoints = config.MinPoints + 49
	}

	return &Simulator{
		scoring:       scoring,
		source:        source,
		stopCh:        make(chan struct{}),
		tickInterval:  config.TickInterval,
		awardsPerTick: config.AwardsPerTick,
		minPoints:     config.MinPoints,
		maxPoints:     config.MaxPoints,
	}
}

// Start begins the award loop
func (s *Simulator) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("simulator already running")
	}

	users, err := s.source.GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	if len(users) == 0 {
		return fmt.Errorf("no users available for simulation")
	}

	s.users = users
	s.startTime = time.Now()
	s.running.Store(true)

	log.Printf("simulator: started (users=%d tick=%v awards/tick=%d points=[%d,%d])",
		len(s.users), s.tickInterval, s.awardsPerTick, s.minPoints, s.maxPoints)

	s.wg.Add(1)
	go s.loop(ctx)

	return nil
}

// Stop gracefully stops the simulator
func (s *Simulator) Stop() {
	if !s.running.Load() {
		return
	}

	s.running.Store(false)
	close(s.stopCh)
	s.wg.Wait()

	elapsed := time.Since(s.startTime)
	total := s.totalAwards.Load()
	log.Printf("simulator: stopped (awards=%d duration=%v rate=%.1f/sec)",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())
}

// IsRunning reports whether the award loop is active.
func (s *Simulator) IsRunning() bool {
	return s.running.Load()
}

func (s *Simulator) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	userIndex := 0

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.stopCh:
			return

		case <-ticker.C:
			for i := 0; i < s.awardsPerTick; i++ {
				if userIndex >= len(s.users) {
					userIndex = 0
					rng.Shuffle(len(s.users), func(i, j int) {
						s.users[i], s.users[j] = s.users[j], s.users[i]
					})
				}

				user := s.users[userIndex]
				userIndex++

				points := s.minPoints + rng.Int63n(s.maxPoints-s.minPoints+1)
				s.scoring.Award(context.Background(), user.UserID, points)
				s.totalAwards.Add(1)
			}
		}
	}
}
