// Package azureai adjudicates candidate secrets with an Azure OpenAI
// deployment.
package azureai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/leakhunter/internal/domain/hunting"
	"github.com/ahrav/leakhunter/pkg/common/logger"
)

const systemPrompt = `You are a security analyst reviewing potential credential leaks found in public source code. Given a matched value and its surrounding file context, judge whether the value is a real, live credential or a placeholder, documentation sample, or test fixture.

Respond in exactly this format:
CONFIDENCE: <High|Medium|Low|None>
REASONING: <one or two sentences>

High means the value looks like a genuine credential committed by mistake. Medium means it plausibly is one. Low means it is probably a placeholder or generated sample. None means it is certainly not a real credential.`

// confidence labels the model may return, mapped to numeric scores. High and
// Medium confirm the candidate.
var confidenceScores = map[string]float64{
	"high":   0.9,
	"medium": 0.6,
	"low":    0.3,
	"none":   0.0,
}

// completer abstracts the chat call so verdict logic tests without a live
// deployment.
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
}

// Verifier adjudicates one candidate per call. It is stateless and safe for
// concurrent use.
type Verifier struct {
	completer completer

	logger *logger.Logger
	tracer trace.Tracer
}

// NewVerifier creates a verifier backed by an Azure OpenAI deployment.
func NewVerifier(endpoint, apiKey, deployment string, log *logger.Logger, tracer trace.Tracer) (*Verifier, error) {
	client, err := azopenai.NewClientWithKeyCredential(endpoint, azcore.NewKeyCredential(apiKey), nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure OpenAI client: %w", err)
	}

	return &Verifier{
		completer: &azureCompleter{client: client, deployment: deployment},
		logger:    log.With("component", "azureai_verifier"),
		tracer:    tracer,
	}, nil
}

// Verify adjudicates a single candidate against its surrounding context.
// Obvious placeholders are rejected locally without a model call. Any
// transport or protocol failure is wrapped as VerificationError so the
// caller can fail closed.
func (v *Verifier) Verify(ctx context.Context, candidate hunting.Candidate, snippet string) (hunting.Verdict, error) {
	ctx, span := v.tracer.Start(ctx, "azureai_verifier.verify",
		trace.WithAttributes(
			attribute.String("rule_id", candidate.RuleID()),
			attribute.String("fingerprint", candidate.Fingerprint()),
		))
	defer span.End()

	if reason, ok := placeholderReason(candidate.MatchedText()); ok {
		span.SetAttributes(attribute.Bool("placeholder_short_circuit", true))
		return hunting.NewVerdict(candidate, false, reason, 0.0)
	}

	raw, err := v.completer.complete(ctx, systemPrompt, buildPrompt(candidate, snippet))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return hunting.Verdict{}, &hunting.VerificationError{
			Fingerprint: candidate.Fingerprint(),
			Err:         err,
		}
	}

	label, rationale, err := parseResponse(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return hunting.Verdict{}, &hunting.VerificationError{
			Fingerprint: candidate.Fingerprint(),
			Err:         err,
		}
	}

	score := confidenceScores[label]
	confirmed := label == "high" || label == "medium"

	span.SetAttributes(
		attribute.String("confidence_label", label),
		attribute.Bool("confirmed", confirmed),
	)
	v.logger.Debug(ctx, "candidate adjudicated",
		"rule_id", candidate.RuleID(),
		"fingerprint", candidate.Fingerprint(),
		"confidence", label,
		"confirmed", confirmed,
	)

	return hunting.NewVerdict(candidate, confirmed, rationale, score)
}

// placeholderReason reports whether the matched value is an obvious
// placeholder that never warrants a model call.
func placeholderReason(matched string) (string, bool) {
	lower := strings.ToLower(matched)
	switch {
	case strings.Contains(lower, "test"), strings.Contains(lower, "example"):
		return "value contains a placeholder marker", true
	case strings.HasPrefix(matched, "YOUR_"):
		return "value is a fill-in template", true
	case strings.HasSuffix(matched, "_HERE"):
		return "value is a fill-in template", true
	}
	return "", false
}

func buildPrompt(candidate hunting.Candidate, snippet string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", candidate.RepoName())
	fmt.Fprintf(&b, "File path: %s\n", candidate.Path())
	fmt.Fprintf(&b, "Matched rule: %s\n", candidate.RuleID())
	fmt.Fprintf(&b, "Matched value: %s\n\n", candidate.MatchedText())
	fmt.Fprintf(&b, "Surrounding context:\n%s\n", snippet)
	return b.String()
}

// parseResponse extracts the confidence label and reasoning from the model's
// reply. Anything not matching the protocol is an error; the caller treats
// it as an unverifiable candidate.
func parseResponse(raw string) (label, rationale string, err error) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "CONFIDENCE:"); ok {
			label = strings.ToLower(strings.TrimSpace(rest))
		}
		if rest, ok := strings.CutPrefix(line, "REASONING:"); ok {
			rationale = strings.TrimSpace(rest)
		}
	}

	if label == "" {
		return "", "", errors.New("response missing CONFIDENCE line")
	}
	if _, ok := confidenceScores[label]; !ok {
		return "", "", fmt.Errorf("unrecognized confidence label %q", label)
	}
	if rationale == "" {
		return "", "", errors.New("response missing REASONING line")
	}
	return label, rationale, nil
}

type azureCompleter struct {
	client     *azopenai.Client
	deployment string
}

func (a *azureCompleter) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.GetChatCompletions(ctx, azopenai.ChatCompletionsOptions{
		DeploymentName: to.Ptr(a.deployment),
		Temperature:    to.Ptr(float32(0)),
		Messages: []azopenai.ChatRequestMessageClassification{
			&azopenai.ChatRequestSystemMessage{
				Content: azopenai.NewChatRequestSystemMessageContent(system),
			},
			&azopenai.ChatRequestUserMessage{
				Content: azopenai.NewChatRequestUserMessageContent(user),
			},
		},
	}, nil)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return "", errors.New("no completion returned")
	}
	return *resp.Choices[0].Message.Content, nil
}
