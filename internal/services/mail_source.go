package services

import (
	"context"
	"time"

	"github.com/harborpoint/dealflow-backend/internal/types"
)

// MailMessage is the provider-neutral detail shape returned by a source.
type MailMessage struct {
	ProviderID     string
	ThreadID       string
	SenderAddress  string
	SenderName     string
	Recipients     []string
	CC             []string
	Subject        string
	BodyText       string
	BodyHTML       string
	ReceivedAt     time.Time
	HasAttachments bool
}

// MessagePage is one page of a mailbox listing.
type MessagePage struct {
	IDs           []string
	NextPageToken string
}

// MailSource is the external mailbox boundary for one connected account.
type MailSource interface {
	ListMessages(ctx context.Context, query, pageToken string) (*MessagePage, error)
	GetMessage(ctx context.Context, providerID string) (*MailMessage, error)
	CurrentSyncMarker(ctx context.Context) (string, error)
	Send(ctx context.Context, to, subject, body string) (threadID string, messageID string, err error)
}

// MailSourceFactory builds a MailSource bound to an account's credentials.
// Token refresh happens inside the factory before the source is handed out.
type MailSourceFactory interface {
	ForAccount(ctx context.Context, acct *types.MailAccount) (MailSource, error)
}
