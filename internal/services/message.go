package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/harborpoint/dealflow-backend/internal/types"
)

// ErrNoMailAccount means the organization has no connected mailbox.
// Handlers map it to a client error rather than a server fault.
var ErrNoMailAccount = errors.New("no mail account connected for organization")

// buildRawMessage converts provider-neutral detail into the stored shape.
func buildRawMessage(orgID uuid.UUID, detail *MailMessage) (*types.RawMessage, error) {
	if detail == nil || detail.ProviderID == "" {
		return nil, fmt.Errorf("empty message detail")
	}
	recipients, err := json.Marshal(detail.Recipients)
	if err != nil {
		return nil, fmt.Errorf("encode recipients: %w", err)
	}
	cc, err := json.Marshal(detail.CC)
	if err != nil {
		return nil, fmt.Errorf("encode cc: %w", err)
	}

	msg := &types.RawMessage{
		OrganizationID:    orgID,
		ProviderMessageID: detail.ProviderID,
		SenderAddress:     strings.TrimSpace(detail.SenderAddress),
		SenderName:        strings.TrimSpace(detail.SenderName),
		Recipients:        datatypes.JSON(recipients),
		CC:                datatypes.JSON(cc),
		Subject:           detail.Subject,
		BodyText:          detail.BodyText,
		BodyHTML:          detail.BodyHTML,
		ReceivedAt:        detail.ReceivedAt,
		HasAttachments:    detail.HasAttachments,
	}
	if detail.ThreadID != "" {
		threadID := detail.ThreadID
		msg.ThreadID = &threadID
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	return msg, nil
}
