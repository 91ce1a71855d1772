package app

import (
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/services"
)

type Services struct {
	Extraction   services.ExtractionEngine
	Suggestion   services.SuggestionService
	Correlator   services.ThreadCorrelator
	Ingestor     *services.Ingestor
	Orchestrator services.BackfillOrchestrator
	Poll         services.PollService
	Outbound     services.OutboundService
	Review       services.ReviewService
}

func wireServices(db *gorm.DB, log *logger.Logger, reposet Repos, clients Clients) Services {
	triage := services.NewTriagePolicy(log)

	extraction := services.NewExtractionEngine(
		db, log,
		reposet.ParseRecord,
		reposet.Counterparty,
		reposet.Deal,
		clients.Classifier,
		triage,
		clients.Graph,
	)
	suggestion := services.NewSuggestionService(db, log, reposet.SuggestedContact, reposet.Counterparty)
	correlator := services.NewThreadCorrelator(db, log, reposet.OutboundRequest)
	ingestor := services.NewIngestor(log, reposet.RawMessage, suggestion, clients.SeenFilter)

	orchestrator := services.NewBackfillOrchestrator(
		db, log,
		reposet.MailAccount,
		reposet.RawMessage,
		clients.Mailbox,
		extraction,
		ingestor,
		correlator,
	)
	poll := services.NewPollService(
		db, log,
		reposet.MailAccount,
		reposet.RawMessage,
		clients.Mailbox,
		ingestor,
		extraction,
		correlator,
	)
	outbound := services.NewOutboundService(db, log, reposet.OutboundRequest, reposet.Counterparty, reposet.MailAccount, clients.Mailbox)
	review := services.NewReviewService(db, log, reposet.ParseRecord, reposet.Counterparty, reposet.Deal, reposet.RawMessage)

	return Services{
		Extraction:   extraction,
		Suggestion:   suggestion,
		Correlator:   correlator,
		Ingestor:     ingestor,
		Orchestrator: orchestrator,
		Poll:         poll,
		Outbound:     outbound,
		Review:       review,
	}
}
