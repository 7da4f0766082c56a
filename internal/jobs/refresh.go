// Package jobs hosts the background status refresher that keeps linked
// account records current between UI visits.
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatlens/insight-gateway/internal/session"
	"github.com/chatlens/insight-gateway/internal/state"
)

type RefreshJob struct {
	machine  *session.Machine
	states   *state.Manager
	interval time.Duration
	done     chan struct{}
}

func NewRefreshJob(machine *session.Machine, states *state.Manager, interval time.Duration) *RefreshJob {
	return &RefreshJob{
		machine:  machine,
		states:   states,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *RefreshJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("session refresh job started")
}

func (j *RefreshJob) Stop() {
	close(j.done)
	log.Info().Msg("session refresh job stopped")
}

func (j *RefreshJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.refresh()
		}
	}
}

func (j *RefreshJob) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	for _, c := range j.states.All() {
		token := c.Token()
		if token == "" {
			// No request has touched this container yet; there is no
			// credential to poll with.
			continue
		}

		results := j.machine.RefreshAll(ctx, token, c)
		log.Debug().
			Str("userId", c.UserID()).
			Int("sessions", len(results)).
			Msg("background session refresh")
	}
}
