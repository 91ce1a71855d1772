package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

func testLogger(t interface{ Fatalf(string, ...interface{}) }) *logger.Logger {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// memStore backs all the fake repos so cross-repo queries (like the
// unparsed selection) see consistent state.
type memStore struct {
	mu             sync.Mutex
	messages       []*types.RawMessage
	parses         map[uuid.UUID]*types.ParseRecord
	counterparties []*types.Counterparty
	deals          []*types.Deal
	suggestions    map[string]*types.SuggestedContact
	outbound       []*types.OutboundRequest
	accounts       []*types.MailAccount
}

func newMemStore() *memStore {
	return &memStore{
		parses:      make(map[uuid.UUID]*types.ParseRecord),
		suggestions: make(map[string]*types.SuggestedContact),
	}
}

func suggestionKey(orgID uuid.UUID, address string) string {
	return orgID.String() + "|" + strings.ToLower(strings.TrimSpace(address))
}

type fakeRawMessageRepo struct{ s *memStore }

func (r *fakeRawMessageRepo) InsertIgnoreDuplicate(ctx context.Context, tx *gorm.DB, msg *types.RawMessage) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.messages {
		if m.OrganizationID == msg.OrganizationID && m.ProviderMessageID == msg.ProviderMessageID {
			return false, nil
		}
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	r.s.messages = append(r.s.messages, msg)
	return true, nil
}

func (r *fakeRawMessageRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RawMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r *fakeRawMessageRepo) FilterNewProviderIDs(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, providerIDs []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing := make(map[string]bool)
	for _, m := range r.s.messages {
		if m.OrganizationID == orgID {
			existing[m.ProviderMessageID] = true
		}
	}
	var out []string
	for _, id := range providerIDs {
		if !existing[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeRawMessageRepo) unparsedLocked(orgID uuid.UUID) []*types.RawMessage {
	var out []*types.RawMessage
	for _, m := range r.s.messages {
		if m.OrganizationID != orgID {
			continue
		}
		rec := r.s.parses[m.ID]
		if rec == nil || rec.Status != types.ParseStatusSuccess {
			out = append(out, m)
		}
	}
	return out
}

func (r *fakeRawMessageRepo) CountUnparsed(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.unparsedLocked(orgID))), nil
}

func (r *fakeRawMessageRepo) ListUnparsed(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.RawMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.unparsedLocked(orgID)
	sort.SliceStable(out, func(i, j int) bool {
		ai := r.s.parses[out[i].ID] != nil
		aj := r.s.parses[out[j].ID] != nil
		if ai != aj {
			return !ai
		}
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRawMessageRepo) ListRecent(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.RawMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.RawMessage
	for _, m := range r.s.messages {
		if m.OrganizationID == orgID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeParseRecordRepo struct{ s *memStore }

func (r *fakeParseRecordRepo) UpsertProcessing(ctx context.Context, tx *gorm.DB, orgID, messageID uuid.UUID, modelVersion string) (*types.ParseRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec := r.s.parses[messageID]
	if rec == nil {
		rec = &types.ParseRecord{ID: uuid.New(), MessageID: messageID, OrganizationID: orgID}
		r.s.parses[messageID] = rec
	}
	rec.Status = types.ParseStatusProcessing
	rec.ErrorMessage = ""
	rec.ModelVersion = modelVersion
	rec.UpdatedAt = time.Now()
	return rec, nil
}

func (r *fakeParseRecordRepo) Finalize(ctx context.Context, tx *gorm.DB, in *types.ParseRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec := r.s.parses[in.MessageID]
	if rec == nil {
		return fmt.Errorf("no record for message %s", in.MessageID)
	}
	rec.Status = in.Status
	rec.CounterpartyID = in.CounterpartyID
	rec.DealID = in.DealID
	rec.Intent = in.Intent
	rec.Commitment = in.Commitment
	rec.Sentiment = in.Sentiment
	rec.Questions = in.Questions
	rec.Confidence = in.Confidence
	rec.Reasoning = in.Reasoning
	rec.ErrorMessage = ""
	rec.ModelVersion = in.ModelVersion
	rec.ParsedAt = in.ParsedAt
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *fakeParseRecordRepo) MarkFailed(ctx context.Context, tx *gorm.DB, messageID uuid.UUID, errMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rec := r.s.parses[messageID]; rec != nil {
		rec.Status = types.ParseStatusFailed
		rec.ErrorMessage = errMsg
		rec.UpdatedAt = time.Now()
	}
	return nil
}

func (r *fakeParseRecordRepo) GetByMessageID(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (*types.ParseRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.parses[messageID], nil
}

func (r *fakeParseRecordRepo) ListByStatus(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, status string, limit int) ([]*types.ParseRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.ParseRecord
	for _, rec := range r.s.parses {
		if rec.OrganizationID == orgID && rec.Status == status {
			out = append(out, rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeParseRecordRepo) Resolve(ctx context.Context, tx *gorm.DB, messageID uuid.UUID, counterpartyID, dealID *uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec := r.s.parses[messageID]
	if rec == nil || rec.Status != types.ParseStatusManualReview {
		return nil
	}
	now := time.Now()
	rec.Status = types.ParseStatusSuccess
	rec.CounterpartyID = counterpartyID
	rec.DealID = dealID
	rec.ParsedAt = &now
	rec.UpdatedAt = now
	return nil
}

type fakeCounterpartyRepo struct{ s *memStore }

func (r *fakeCounterpartyRepo) ListByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.Counterparty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Counterparty
	for _, cp := range r.s.counterparties {
		if cp.OrganizationID == orgID {
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *fakeCounterpartyRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Counterparty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cp := range r.s.counterparties {
		if cp.ID == id {
			return cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCounterpartyRepo) FindByAddress(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, address string) (*types.Counterparty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	address = strings.ToLower(strings.TrimSpace(address))
	for _, cp := range r.s.counterparties {
		if cp.OrganizationID == orgID && strings.ToLower(cp.Address) == address {
			return cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCounterpartyRepo) TouchLastInteraction(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cp := range r.s.counterparties {
		if cp.ID == id && (cp.LastInteractionAt == nil || cp.LastInteractionAt.Before(at)) {
			t := at
			cp.LastInteractionAt = &t
		}
	}
	return nil
}

type fakeDealRepo struct{ s *memStore }

func (r *fakeDealRepo) ListOpenByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Deal
	for _, d := range r.s.deals {
		if d.OrganizationID == orgID && d.Status == types.DealStatusOpen {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDealRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.deals {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

type fakeSuggestedContactRepo struct{ s *memStore }

func (r *fakeSuggestedContactRepo) Upsert(ctx context.Context, tx *gorm.DB, sc *types.SuggestedContact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sc.Address = strings.ToLower(strings.TrimSpace(sc.Address))
	key := suggestionKey(sc.OrganizationID, sc.Address)
	if existing, ok := r.s.suggestions[key]; ok {
		existing.Name = sc.Name
		existing.Firm = sc.Firm
		existing.SourceMessageID = sc.SourceMessageID
		existing.UpdatedAt = time.Now()
		return nil
	}
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	r.s.suggestions[key] = sc
	return nil
}

func (r *fakeSuggestedContactRepo) IsDismissed(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, address string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sc, ok := r.s.suggestions[suggestionKey(orgID, address)]
	return ok && sc.Dismissed, nil
}

func (r *fakeSuggestedContactRepo) Dismiss(ctx context.Context, tx *gorm.DB, orgID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sc := range r.s.suggestions {
		if sc.ID == id && sc.OrganizationID == orgID {
			now := time.Now()
			sc.Dismissed = true
			sc.DismissedAt = &now
		}
	}
	return nil
}

func (r *fakeSuggestedContactRepo) ListActive(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.SuggestedContact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.SuggestedContact
	for _, sc := range r.s.suggestions {
		if sc.OrganizationID == orgID && !sc.Dismissed {
			out = append(out, sc)
		}
	}
	return out, nil
}

type fakeOutboundRequestRepo struct{ s *memStore }

func (r *fakeOutboundRequestRepo) Create(ctx context.Context, tx *gorm.DB, req *types.OutboundRequest) (*types.OutboundRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = types.OutboundStatusPending
	}
	r.s.outbound = append(r.s.outbound, req)
	return req, nil
}

func (r *fakeOutboundRequestRepo) MarkSent(ctx context.Context, tx *gorm.DB, id uuid.UUID, threadID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, req := range r.s.outbound {
		if req.ID == id && req.Status == types.OutboundStatusPending {
			t := at
			req.Status = types.OutboundStatusSent
			req.ThreadID = threadID
			req.SentAt = &t
		}
	}
	return nil
}

func (r *fakeOutboundRequestRepo) ListSentByThreadIDs(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, threadIDs []string) ([]*types.OutboundRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[string]bool, len(threadIDs))
	for _, id := range threadIDs {
		wanted[id] = true
	}
	var out []*types.OutboundRequest
	for _, req := range r.s.outbound {
		if req.OrganizationID == orgID && req.Status == types.OutboundStatusSent && wanted[req.ThreadID] {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *fakeOutboundRequestRepo) MarkAnswered(ctx context.Context, tx *gorm.DB, id uuid.UUID, replyMessageID uuid.UUID, replyBody string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, req := range r.s.outbound {
		if req.ID == id && req.Status == types.OutboundStatusSent {
			t := at
			rid := replyMessageID
			req.Status = types.OutboundStatusAnswered
			req.ReplyMessageID = &rid
			req.ReplyBody = replyBody
			req.AnsweredAt = &t
		}
	}
	return nil
}

func (r *fakeOutboundRequestRepo) ListByStatus(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, status string, limit int) ([]*types.OutboundRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.OutboundRequest
	for _, req := range r.s.outbound {
		if req.OrganizationID == orgID && req.Status == status {
			out = append(out, req)
		}
	}
	return out, nil
}

type fakeMailAccountRepo struct{ s *memStore }

func (r *fakeMailAccountRepo) GetByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) (*types.MailAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.OrganizationID == orgID {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeMailAccountRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.MailAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]*types.MailAccount(nil), r.s.accounts...), nil
}

func (r *fakeMailAccountRepo) UpdateToken(ctx context.Context, tx *gorm.DB, id uuid.UUID, accessToken, refreshToken string, expiry time.Time, oldExpiry *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.ID == id {
			t := expiry
			a.AccessToken = accessToken
			a.RefreshToken = refreshToken
			a.TokenExpiry = &t
		}
	}
	return nil
}

func (r *fakeMailAccountRepo) UpdateSyncMarker(ctx context.Context, tx *gorm.DB, id uuid.UUID, marker string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.ID == id {
			a.SyncMarker = marker
		}
	}
	return nil
}

// fakeMailSource serves pages keyed by page token; "" is the first page.
type fakeMailSource struct {
	pages      map[string]*MessagePage
	details    map[string]*MailMessage
	marker     string
	sendThread string

	listCalls   int
	detailCalls int
}

func (f *fakeMailSource) ListMessages(ctx context.Context, query, pageToken string) (*MessagePage, error) {
	f.listCalls++
	page, ok := f.pages[pageToken]
	if !ok {
		return &MessagePage{}, nil
	}
	return page, nil
}

func (f *fakeMailSource) GetMessage(ctx context.Context, providerID string) (*MailMessage, error) {
	f.detailCalls++
	detail, ok := f.details[providerID]
	if !ok {
		return nil, fmt.Errorf("no such message %s", providerID)
	}
	return detail, nil
}

func (f *fakeMailSource) CurrentSyncMarker(ctx context.Context) (string, error) {
	return f.marker, nil
}

func (f *fakeMailSource) Send(ctx context.Context, to, subject, body string) (string, string, error) {
	return f.sendThread, "sent-" + f.sendThread, nil
}

type fakeSourceFactory struct{ source MailSource }

func (f *fakeSourceFactory) ForAccount(ctx context.Context, acct *types.MailAccount) (MailSource, error) {
	return f.source, nil
}

// fakeClassifier returns canned results keyed by provider message id,
// falling back to fn when set.
type fakeClassifier struct {
	results map[string]*ExtractionResult
	fn      func(msg *types.RawMessage) (*ExtractionResult, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, msg *types.RawMessage, cc ClassifyContext) (*ExtractionResult, error) {
	if f.fn != nil {
		return f.fn(msg)
	}
	if res, ok := f.results[msg.ProviderMessageID]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("unexpected message %s", msg.ProviderMessageID)
}

func (f *fakeClassifier) ModelVersion() string { return "test-model" }
