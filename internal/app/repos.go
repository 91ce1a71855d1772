package app

import (
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/repos"
)

type Repos struct {
	RawMessage       repos.RawMessageRepo
	ParseRecord      repos.ParseRecordRepo
	Counterparty     repos.CounterpartyRepo
	Deal             repos.DealRepo
	SuggestedContact repos.SuggestedContactRepo
	OutboundRequest  repos.OutboundRequestRepo
	MailAccount      repos.MailAccountRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		RawMessage:       repos.NewRawMessageRepo(db, log),
		ParseRecord:      repos.NewParseRecordRepo(db, log),
		Counterparty:     repos.NewCounterpartyRepo(db, log),
		Deal:             repos.NewDealRepo(db, log),
		SuggestedContact: repos.NewSuggestedContactRepo(db, log),
		OutboundRequest:  repos.NewOutboundRequestRepo(db, log),
		MailAccount:      repos.NewMailAccountRepo(db, log),
	}
}
