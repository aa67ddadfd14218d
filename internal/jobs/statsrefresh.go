package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keurgui/access-gateway-go/internal/repository"
	"github.com/keurgui/access-gateway-go/internal/service"
	"github.com/keurgui/access-gateway-go/internal/sse"
)

// StatsRefreshJob periodically recomputes dashboard counters for every
// resident with a live event stream and pushes the result over SSE. A
// resident without a connected client gets nothing; their next dashboard
// load recomputes on demand anyway.
type StatsRefreshJob struct {
	access      *service.AccessService
	sessionRepo repository.SessionRepository
	broker      *sse.Broker
	interval    time.Duration
	done        chan struct{}
}

func NewStatsRefreshJob(
	access *service.AccessService,
	sessionRepo repository.SessionRepository,
	broker *sse.Broker,
	interval time.Duration,
) *StatsRefreshJob {
	return &StatsRefreshJob{
		access:      access,
		sessionRepo: sessionRepo,
		broker:      broker,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *StatsRefreshJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("stats refresh job started")
}

func (j *StatsRefreshJob) Stop() {
	close(j.done)
	log.Info().Msg("stats refresh job stopped")
}

func (j *StatsRefreshJob) run() {
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

func (j *StatsRefreshJob) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, username := range j.broker.Residents() {
		session, err := j.sessionRepo.FindActiveByUsername(ctx, username)
		if err != nil {
			log.Error().Err(err).Str("username", username).Msg("stats refresh: session lookup failed")
			continue
		}
		if session == nil {
			continue
		}

		if err := j.access.PublishStats(ctx, session.UpstreamToken, username); err != nil {
			log.Warn().Err(err).Str("username", username).Msg("stats refresh failed")
		}
	}
}
