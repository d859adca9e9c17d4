package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nancy-knowledge/nancy/pkg/brains"
)

// AnthropicBrain implements Brain against the Anthropic Messages API.
type AnthropicBrain struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int

	logger *slog.Logger
}

// NewAnthropicBrain builds an AnthropicBrain. apiKeyEnv names the
// environment variable holding the provider API key; empty falls back to
// the SDK's default ANTHROPIC_API_KEY lookup.
func NewAnthropicBrain(model string, maxTokens int, apiKeyEnv string) (*AnthropicBrain, error) {
	opts := []option.RequestOption{}
	if apiKeyEnv != "" {
		key := os.Getenv(apiKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("llm brain: environment variable %q is not set", apiKeyEnv)
		}
		opts = append(opts, option.WithAPIKey(key))
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicBrain{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
		logger:    slog.Default().With("component", "llm_brain"),
	}, nil
}

const synthesisSystemPrompt = `You answer questions using only the evidence provided. Cite evidence by its citation ID in brackets, e.g. [c3]. If the evidence does not support an answer, say so rather than guessing.`

// Synthesize implements Brain.
func (b *AnthropicBrain) Synthesize(ctx context.Context, input SynthesizeInput) (<-chan Chunk, error) {
	maxTokens := int64(b.maxTokens)
	if input.MaxTokens > 0 {
		maxTokens = int64(input.MaxTokens)
	}

	prompt := buildSynthesisPrompt(input)
	stream := b.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: synthesisSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	out := make(chan Chunk, 8)
	go b.drainStream(ctx, stream, input.Evidence, out)
	return out, nil
}

func (b *AnthropicBrain) drainStream(ctx context.Context, stream *anthropic.MessageStreamAutoPager, evidence []EvidenceItem, out chan<- Chunk) {
	defer close(out)

	var text strings.Builder
	var message anthropic.Message
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			b.emit(ctx, out, &ErrorChunk{Err: fmt.Errorf("%w: %s", brains.ErrModelUnavailable, err)})
			return
		}

		switch delta := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if textDelta, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
				text.WriteString(textDelta.Text)
				if !b.emit(ctx, out, &TextChunk{Content: textDelta.Text}) {
					return
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		b.emit(ctx, out, &ErrorChunk{Err: classifyAnthropicError(err)})
		return
	}

	for _, id := range citedIDs(text.String(), evidence) {
		if !b.emit(ctx, out, &CitationChunk{CitationID: id.CitationID, Brain: id.Brain}) {
			return
		}
	}

	b.emit(ctx, out, &UsageChunk{
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	})
}

func (b *AnthropicBrain) emit(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// ClassifyIntent implements Brain.
func (b *AnthropicBrain) ClassifyIntent(ctx context.Context, query string, candidates []string) (Intent, error) {
	prompt := fmt.Sprintf(
		"Classify this query into exactly one of these intents: %s\nQuery: %q\nRespond with only the intent label.",
		strings.Join(candidates, ", "), query,
	)
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: 32,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Intent{}, classifyAnthropicError(err)
	}

	label := strings.TrimSpace(msg.Content[0].Text)
	for _, c := range candidates {
		if strings.EqualFold(c, label) {
			return Intent{Label: c, Confidence: 0.9}, nil
		}
	}
	return Intent{Label: label, Confidence: 0.5}, nil
}

// Health implements Brain with a cheap, non-blocking liveness check: it
// never makes a network call, since a blocked LLM provider call must not
// be allowed to stall the health aggregator (see the synchronous Health
// aggregation discussion in the metrics package).
func (b *AnthropicBrain) Health(ctx context.Context) brains.HealthStatus {
	return brains.HealthStatus{Status: brains.StatusHealthy}
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 529:
			return fmt.Errorf("%w: %s", brains.ErrModelUnavailable, err)
		case 400:
			if strings.Contains(apiErr.Message, "context") {
				return fmt.Errorf("%w: %s", brains.ErrContextOverflow, err)
			}
		}
	}
	return fmt.Errorf("%w: %s", brains.ErrNotTransient, err)
}

func buildSynthesisPrompt(input SynthesizeInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nEvidence:\n", input.Query)
	for _, e := range input.Evidence {
		fmt.Fprintf(&sb, "[%s] (%s, score=%.2f) %s\n", e.CitationID, e.Brain, e.Score, e.Text)
	}
	return sb.String()
}

type citedEvidence struct {
	CitationID string
	Brain      string
}

// citedIDs returns the evidence items whose citation ID literally appears
// in the synthesized text, in evidence order. Anthropic's streaming API
// doesn't echo structured citations, so this is the simplest reliable way
// to report which evidence the answer actually drew on.
func citedIDs(text string, evidence []EvidenceItem) []citedEvidence {
	var cited []citedEvidence
	for _, e := range evidence {
		if strings.Contains(text, "["+e.CitationID+"]") {
			cited = append(cited, citedEvidence{CitationID: e.CitationID, Brain: e.Brain})
		}
	}
	return cited
}
