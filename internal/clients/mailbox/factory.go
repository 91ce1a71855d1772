package mailbox

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/repos"
	"github.com/harborpoint/dealflow-backend/internal/services"
	"github.com/harborpoint/dealflow-backend/internal/types"
	"github.com/harborpoint/dealflow-backend/internal/utils"
)

// Factory builds Gmail-backed mail sources. Token refresh happens here,
// and the refreshed token is persisted before the source is handed out so
// concurrent invocations do not race each other onto an expiring token.
type Factory struct {
	log      *logger.Logger
	accounts repos.MailAccountRepo
	oauth    *oauth2.Config
	baseURL  string
}

func NewFactory(baseLog *logger.Logger, accounts repos.MailAccountRepo) (*Factory, error) {
	clientID := utils.GetEnv("GMAIL_CLIENT_ID", "", baseLog)
	clientSecret := utils.GetEnv("GMAIL_CLIENT_SECRET", "", baseLog)
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("mailbox: GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET required")
	}
	return &Factory{
		log:      baseLog.With("client", "MailboxFactory"),
		accounts: accounts,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
			Scopes: []string{
				"https://www.googleapis.com/auth/gmail.readonly",
				"https://www.googleapis.com/auth/gmail.send",
			},
		},
		baseURL: utils.GetEnv("GMAIL_API_BASE_URL", "https://gmail.googleapis.com/gmail/v1", baseLog),
	}, nil
}

func (f *Factory) ForAccount(ctx context.Context, acct *types.MailAccount) (services.MailSource, error) {
	if acct == nil || acct.AccessToken == "" {
		return nil, fmt.Errorf("mailbox: account has no credentials")
	}

	stored := &oauth2.Token{
		AccessToken:  acct.AccessToken,
		RefreshToken: acct.RefreshToken,
	}
	if acct.TokenExpiry != nil {
		stored.Expiry = *acct.TokenExpiry
	}

	// TokenSource refreshes lazily; forcing it here keeps the refresh a
	// read-check-refresh-write sequence with the new token stored before
	// any mailbox call uses it.
	current, err := f.oauth.TokenSource(ctx, stored).Token()
	if err != nil {
		return nil, fmt.Errorf("mailbox: refresh token: %w", err)
	}
	if current.AccessToken != stored.AccessToken {
		refresh := current.RefreshToken
		if refresh == "" {
			refresh = acct.RefreshToken
		}
		if err := f.accounts.UpdateToken(ctx, nil, acct.ID, current.AccessToken, refresh, current.Expiry, acct.TokenExpiry); err != nil {
			return nil, fmt.Errorf("mailbox: persist refreshed token: %w", err)
		}
		f.log.Info("provider token refreshed", "account_id", acct.ID, "expiry", current.Expiry)
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(current))
	httpClient.Timeout = 30 * time.Second
	return newGmailSource(f.log, httpClient, f.baseURL, acct.Address), nil
}

var _ services.MailSourceFactory = (*Factory)(nil)
