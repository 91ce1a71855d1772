package mailbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/services"
)

// gmailSource implements the mailbox boundary over the Gmail REST API for
// one account. All calls run as the authenticated user ("me").
type gmailSource struct {
	log     *logger.Logger
	http    *http.Client
	baseURL string
	address string
}

func newGmailSource(baseLog *logger.Logger, httpClient *http.Client, baseURL, address string) *gmailSource {
	return &gmailSource{
		log:     baseLog.With("client", "GmailSource"),
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		address: address,
	}
}

type gmailListResponse struct {
	Messages []struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	} `json:"messages"`
	NextPageToken string `json:"nextPageToken"`
}

type gmailMessage struct {
	ID           string       `json:"id"`
	ThreadID     string       `json:"threadId"`
	InternalDate string       `json:"internalDate"`
	Payload      gmailPayload `json:"payload"`
}

type gmailPayload struct {
	MimeType string         `json:"mimeType"`
	Filename string         `json:"filename"`
	Headers  []gmailHeader  `json:"headers"`
	Body     gmailBody      `json:"body"`
	Parts    []gmailPayload `json:"parts"`
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailBody struct {
	Data string `json:"data"`
	Size int    `json:"size"`
}

type gmailProfile struct {
	HistoryID string `json:"historyId"`
}

type gmailSendResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

func (g *gmailSource) ListMessages(ctx context.Context, query, pageToken string) (*services.MessagePage, error) {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	params.Set("maxResults", "100")

	var resp gmailListResponse
	if err := g.get(ctx, "/users/me/messages?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("gmail: list messages: %w", err)
	}

	page := &services.MessagePage{NextPageToken: resp.NextPageToken}
	for _, m := range resp.Messages {
		page.IDs = append(page.IDs, m.ID)
	}
	return page, nil
}

func (g *gmailSource) GetMessage(ctx context.Context, providerID string) (*services.MailMessage, error) {
	var raw gmailMessage
	if err := g.get(ctx, "/users/me/messages/"+url.PathEscape(providerID)+"?format=full", &raw); err != nil {
		return nil, fmt.Errorf("gmail: get message %s: %w", providerID, err)
	}

	msg := &services.MailMessage{
		ProviderID: raw.ID,
		ThreadID:   raw.ThreadID,
		Subject:    header(raw.Payload.Headers, "Subject"),
	}

	if from := header(raw.Payload.Headers, "From"); from != "" {
		if addr, err := mail.ParseAddress(from); err == nil {
			msg.SenderAddress = strings.ToLower(addr.Address)
			msg.SenderName = addr.Name
		} else {
			msg.SenderAddress = strings.ToLower(strings.TrimSpace(from))
		}
	}
	msg.Recipients = parseAddressList(header(raw.Payload.Headers, "To"))
	msg.CC = parseAddressList(header(raw.Payload.Headers, "Cc"))

	if ms, err := strconv.ParseInt(raw.InternalDate, 10, 64); err == nil && ms > 0 {
		msg.ReceivedAt = time.UnixMilli(ms)
	} else {
		msg.ReceivedAt = time.Now()
	}

	text, html, attachments := flattenPayload(&raw.Payload)
	msg.BodyText = text
	msg.BodyHTML = html
	msg.HasAttachments = attachments
	return msg, nil
}

// CurrentSyncMarker returns the mailbox history id, an opaque marker a
// future incremental poll can resume from.
func (g *gmailSource) CurrentSyncMarker(ctx context.Context) (string, error) {
	var profile gmailProfile
	if err := g.get(ctx, "/users/me/profile", &profile); err != nil {
		return "", fmt.Errorf("gmail: get profile: %w", err)
	}
	return profile.HistoryID, nil
}

func (g *gmailSource) Send(ctx context.Context, to, subject, body string) (string, string, error) {
	var rfc822 bytes.Buffer
	fmt.Fprintf(&rfc822, "From: %s\r\n", g.address)
	fmt.Fprintf(&rfc822, "To: %s\r\n", to)
	fmt.Fprintf(&rfc822, "Subject: %s\r\n", subject)
	rfc822.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	rfc822.WriteString(body)

	payload, err := json.Marshal(map[string]string{
		"raw": base64.URLEncoding.EncodeToString(rfc822.Bytes()),
	})
	if err != nil {
		return "", "", fmt.Errorf("gmail: encode send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/users/me/messages/send", bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp gmailSendResponse
	if err := g.do(req, &resp); err != nil {
		return "", "", fmt.Errorf("gmail: send: %w", err)
	}
	return resp.ThreadID, resp.ID, nil
}

func (g *gmailSource) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return err
	}
	return g.do(req, out)
}

func (g *gmailSource) do(req *http.Request, out interface{}) error {
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 25<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func header(headers []gmailHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func parseAddressList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	addrs, err := mail.ParseAddressList(value)
	if err != nil {
		return []string{strings.TrimSpace(value)}
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, strings.ToLower(a.Address))
	}
	return out
}

// flattenPayload walks the MIME tree collecting the first text/plain and
// text/html bodies and noting real attachments (parts with a filename).
func flattenPayload(p *gmailPayload) (text, html string, attachments bool) {
	if p == nil {
		return "", "", false
	}
	if p.Filename != "" && p.Body.Size > 0 {
		attachments = true
	}
	if data := decodeBody(p.Body.Data); data != "" {
		switch {
		case strings.HasPrefix(p.MimeType, "text/plain") && text == "":
			text = data
		case strings.HasPrefix(p.MimeType, "text/html") && html == "":
			html = data
		}
	}
	for i := range p.Parts {
		t, h, a := flattenPayload(&p.Parts[i])
		if text == "" {
			text = t
		}
		if html == "" {
			html = h
		}
		attachments = attachments || a
	}
	return text, html, attachments
}

func decodeBody(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
