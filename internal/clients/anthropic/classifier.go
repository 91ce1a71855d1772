package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/services"
	"github.com/harborpoint/dealflow-backend/internal/types"
	"github.com/harborpoint/dealflow-backend/internal/utils"
)

const maxBodyChars = 12000

const systemPrompt = `You are an analyst for an investment firm's deal pipeline. You read one inbound email and extract structured facts from it.

You are given the firm's known counterparties (investors and partners) and open deals. Match the sender and any referenced deal against them; only use ids from the provided lists.

Respond with a single JSON object and nothing else, no markdown fences, using exactly this shape:
{
  "counterparty": {"name": string, "address": string, "firm": string, "matched_id": string|null},
  "deal": {"name": string, "matched_id": string|null},
  "intent": one of "commitment","question","update","decline","intro_deck","scheduling","wire_details","other",
  "amount": number|null,
  "sentiment": one of "positive","neutral","negative",
  "questions": [string],
  "has_wire_details": boolean,
  "confidence": {"counterparty": number, "deal": number, "intent": number, "amount": number},
  "reasoning": string
}

Rules:
- "amount" is a committed or discussed investment amount in dollars, null when none is stated.
- Confidence values are between 0 and 1. Be honest: a weak match deserves a low score.
- "questions" lists questions the sender asked that need an answer, empty when none.
- "matched_id" must be null unless you are matching an id from the provided lists verbatim.`

// Classifier calls the Anthropic Messages API and decodes the model's
// JSON into an ExtractionResult. Output that fails strict decoding or
// validation is an extraction failure, never coerced.
type Classifier struct {
	client sdk.Client
	model  string
	log    *logger.Logger
}

func NewClassifier(baseLog *logger.Logger) (*Classifier, error) {
	apiKey := strings.TrimSpace(utils.GetEnv("ANTHROPIC_API_KEY", "", baseLog))
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: ANTHROPIC_API_KEY required")
	}
	return &Classifier{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  utils.GetEnv("CLASSIFIER_MODEL", "claude-haiku-4-5-20251001", baseLog),
		log:    baseLog.With("client", "AnthropicClassifier"),
	}, nil
}

func (c *Classifier) ModelVersion() string { return c.model }

func (c *Classifier) Classify(ctx context.Context, msg *types.RawMessage, cc services.ClassifyContext) (*services.ExtractionResult, error) {
	if msg == nil {
		return nil, fmt.Errorf("anthropic: message required")
	}

	prompt, err := buildUserPrompt(msg, cc)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build prompt: %w", err)
	}

	resp, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: 1500,
		System: []sdk.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: create message: %w", err)
	}

	text := collectText(resp)
	if text == "" {
		return nil, fmt.Errorf("anthropic: empty response")
	}

	var result services.ExtractionResult
	decoder := json.NewDecoder(strings.NewReader(extractJSON(text)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&result); err != nil {
		return nil, fmt.Errorf("anthropic: decode extraction: %w", err)
	}

	c.log.Debug("classification complete",
		"message_id", msg.ID,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	return &result, nil
}

func buildUserPrompt(msg *types.RawMessage, cc services.ClassifyContext) (string, error) {
	type promptCounterparty struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Address string `json:"address"`
		Firm    string `json:"firm,omitempty"`
	}
	type promptDeal struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	counterparties := make([]promptCounterparty, 0, len(cc.Counterparties))
	for _, cp := range cc.Counterparties {
		if cp == nil {
			continue
		}
		counterparties = append(counterparties, promptCounterparty{
			ID:      cp.ID.String(),
			Name:    cp.Name,
			Address: cp.Address,
			Firm:    cp.Firm,
		})
	}
	deals := make([]promptDeal, 0, len(cc.Deals))
	for _, d := range cc.Deals {
		if d == nil {
			continue
		}
		deals = append(deals, promptDeal{ID: d.ID.String(), Name: d.Name})
	}

	knownCounterparties, err := json.Marshal(counterparties)
	if err != nil {
		return "", err
	}
	knownDeals, err := json.Marshal(deals)
	if err != nil {
		return "", err
	}

	body := msg.BodyText
	if body == "" {
		body = msg.BodyHTML
	}
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}

	var b strings.Builder
	b.WriteString("Known counterparties:\n")
	b.Write(knownCounterparties)
	b.WriteString("\n\nOpen deals:\n")
	b.Write(knownDeals)
	b.WriteString("\n\nEmail:\n")
	fmt.Fprintf(&b, "From: %s <%s>\n", msg.SenderName, msg.SenderAddress)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&b, "Received: %s\n\n", msg.ReceivedAt.Format("2006-01-02 15:04"))
	b.WriteString(body)
	return b.String(), nil
}

func collectText(resp *sdk.Message) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// extractJSON tolerates models that wrap the object in fences or prose
// despite instructions. The decode stays strict; this only trims the
// envelope.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
