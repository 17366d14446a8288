package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/llms"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// tokenPrice is the cost per 1K tokens for a model. Spend is attributed
// at call time from this static table keyed on model name, rather than
// deferring to a separate billing service.
type tokenPrice struct {
	InputPer1K  float64
	OutputPer1K float64
}

var defaultPriceTable = map[string]tokenPrice{
	"gpt-4o":      {InputPer1K: 0.005, OutputPer1K: 0.015},
	"gpt-4o-mini": {InputPer1K: 0.00015, OutputPer1K: 0.0006},
}

// LangchainOracle implements the Oracle contract (Plan/Review) against
// any llms.Model backend langchaingo supports, keeping the provider
// swappable without touching the pipeline or agent loop.
type LangchainOracle struct {
	model     llms.Model
	modelName string
	prices    map[string]tokenPrice
	cb        *gobreaker.CircuitBreaker
}

func NewLangchainOracle(model llms.Model, modelName string) *LangchainOracle {
	return &LangchainOracle{
		model:     model,
		modelName: modelName,
		prices:    defaultPriceTable,
		cb:        newBreaker("oracle"),
	}
}

// Cost returns the estimated dollar spend for one call's token usage,
// for the caller to attach to the triggering AgentRun/Build record.
func (o *LangchainOracle) Cost(u TokenUsage) float64 {
	price, ok := o.prices[o.modelName]
	if !ok {
		return 0
	}
	return float64(u.InputTokens)/1000*price.InputPer1K + float64(u.OutputTokens)/1000*price.OutputPer1K
}

func (o *LangchainOracle) Plan(ctx context.Context, systemPrompt, userContent string) (*OptimizationPlan, TokenUsage, error) {
	var plan OptimizationPlan
	usage, err := o.call(ctx, systemPrompt, userContent, &plan)
	if err != nil {
		return nil, TokenUsage{}, err
	}
	return &plan, usage, nil
}

func (o *LangchainOracle) Review(ctx context.Context, systemPrompt, userContent string) (*AIReviewDecision, TokenUsage, error) {
	var decision AIReviewDecision
	usage, err := o.call(ctx, systemPrompt, userContent, &decision)
	if err != nil {
		return nil, TokenUsage{}, err
	}
	return &decision, usage, nil
}

// call runs one chat completion against the oracle and decodes its
// content as JSON into dest. A malformed response is classified
// TransientUpstream rather than fatal, since a flaky oracle shouldn't
// permanently fail an agent run.
func (o *LangchainOracle) call(ctx context.Context, systemPrompt, userContent string, dest any) (TokenUsage, error) {
	type pair struct {
		usage TokenUsage
	}
	var usage TokenUsage

	_, err := wrapTransient(o.cb, "oracle", func() (pair, error) {
		resp, err := o.model.GenerateContent(ctx, []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, userContent),
		})
		if err != nil {
			return pair{}, err
		}
		if len(resp.Choices) == 0 {
			return pair{}, fmt.Errorf("adapters: oracle returned no choices")
		}
		choice := resp.Choices[0]

		if err := json.Unmarshal([]byte(choice.Content), dest); err != nil {
			return pair{}, xerrors.New(xerrors.TransientUpstream, "oracle", "parse-response", err.Error(), err)
		}
		usage = extractUsage(choice.GenerationInfo)
		return pair{usage: usage}, nil
	})
	if err != nil {
		return TokenUsage{}, err
	}
	return usage, nil
}

func extractUsage(info map[string]any) TokenUsage {
	var usage TokenUsage
	if v, ok := info["PromptTokens"].(int); ok {
		usage.InputTokens = v
	}
	if v, ok := info["CompletionTokens"].(int); ok {
		usage.OutputTokens = v
	}
	return usage
}
