package jobs

import (
	"context"
	"time"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/repos"
	"github.com/harborpoint/dealflow-backend/internal/services"
	"github.com/harborpoint/dealflow-backend/internal/utils"
)

// Poller runs the single-shot poll for every connected account on a
// fixed interval. It is safe alongside manual polls and backfills since
// ingestion dedup and parse-record upserts are idempotent.
type Poller struct {
	log      *logger.Logger
	accounts repos.MailAccountRepo
	poll     services.PollService
	interval time.Duration
}

func NewPoller(baseLog *logger.Logger, accounts repos.MailAccountRepo, poll services.PollService) *Poller {
	log := baseLog.With("job", "Poller")
	intervalSec := utils.GetEnvAsInt("POLL_INTERVAL_SECONDS", 300, log)
	return &Poller{
		log:      log,
		accounts: accounts,
		poll:     poll,
		interval: time.Duration(intervalSec) * time.Second,
	}
}

// Start launches the loop and returns; Stop via context cancellation.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		p.log.Info("poller started", "interval", p.interval)
		for {
			select {
			case <-ctx.Done():
				p.log.Info("poller stopped")
				return
			case <-ticker.C:
				p.runOnce(ctx)
			}
		}
	}()
}

func (p *Poller) runOnce(ctx context.Context) {
	accounts, err := p.accounts.ListAll(ctx, nil)
	if err != nil {
		p.log.Error("failed to list accounts", "err", err.Error())
		return
	}
	for _, acct := range accounts {
		if acct == nil {
			continue
		}
		stats, err := p.poll.Poll(ctx, acct.OrganizationID)
		if err != nil {
			p.log.Error("scheduled poll failed", "organization_id", acct.OrganizationID, "err", err.Error())
			continue
		}
		if stats.Ingested > 0 || len(stats.Errors) > 0 {
			p.log.Info("scheduled poll finished",
				"organization_id", acct.OrganizationID,
				"ingested", stats.Ingested,
				"parsed", stats.Parsed,
				"errors", len(stats.Errors))
		}
	}
}
