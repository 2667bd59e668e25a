package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/interfaces"
)

// Sweeper deletes expired chat sessions on a cron schedule. Retention is
// enforced here, not in the session manager, so an expired session
// disappears even when nobody talks to it again.
type Sweeper struct {
	sessions interfaces.SessionStorage
	cron     *cron.Cron
	schedule string
	logger   arbor.ILogger
}

// New creates a sweeper on the given six-field cron schedule.
func New(sessions interfaces.SessionStorage, schedule string, logger arbor.ILogger) *Sweeper {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Sweeper{
		sessions: sessions,
		cron:     cron.New(cron.WithSeconds()),
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("Session retention sweeper started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := s.sessions.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("Session sweep failed")
		return
	}
	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("Expired chat sessions removed")
	}
}
