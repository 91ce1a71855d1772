package app

import (
	"fmt"

	"github.com/harborpoint/dealflow-backend/internal/clients/anthropic"
	"github.com/harborpoint/dealflow-backend/internal/clients/mailbox"
	redisclient "github.com/harborpoint/dealflow-backend/internal/clients/redis"
	"github.com/harborpoint/dealflow-backend/internal/graph"
	"github.com/harborpoint/dealflow-backend/internal/logger"
)

type Clients struct {
	Classifier *anthropic.Classifier
	Mailbox    *mailbox.Factory
	SeenFilter redisclient.SeenFilter
	Graph      *graph.Client
}

func wireClients(log *logger.Logger, reposet Repos) (Clients, error) {
	classifier, err := anthropic.NewClassifier(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init classifier: %w", err)
	}
	mb, err := mailbox.NewFactory(log, reposet.MailAccount)
	if err != nil {
		return Clients{}, fmt.Errorf("init mailbox: %w", err)
	}

	// Both are optional; nil when unconfigured.
	seen, err := redisclient.NewSeenFilter(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	graphClient, err := graph.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init graph: %w", err)
	}

	return Clients{
		Classifier: classifier,
		Mailbox:    mb,
		SeenFilter: seen,
		Graph:      graphClient,
	}, nil
}
