package budget

import (
	"fmt"

	"github.com/ogulcanaydogan/energy-advisor/pkg/pricing"
	"github.com/ogulcanaydogan/energy-advisor/pkg/tokenizer"
)

// Estimator prices a remote call before it is made.
type Estimator struct {
	registry       *pricing.Registry
	counter        *tokenizer.Counter
	provider       string
	model          string
	expectedOutput int64
}

// NewEstimator creates an estimator for one provider and model.
// expectedOutput is the assumed response size in tokens.
func NewEstimator(registry *pricing.Registry, provider, model string, expectedOutput int64) *Estimator {
	if expectedOutput <= 0 {
		expectedOutput = 400
	}
	return &Estimator{
		registry:       registry,
		counter:        tokenizer.ForProvider(provider),
		provider:       provider,
		model:          model,
		expectedOutput: expectedOutput,
	}
}

// Provider returns the priced provider name.
func (e *Estimator) Provider() string { return e.provider }

// Model returns the priced model name.
func (e *Estimator) Model() string { return e.model }

// Estimate returns the expected cost in units of sending system and payload.
func (e *Estimator) Estimate(system, payload string) (units float64, inputTokens int64, err error) {
	inputTokens = e.counter.CountMessages(e.provider, system, payload)
	units, err = e.Actual(inputTokens, e.expectedOutput)
	if err != nil {
		return 0, inputTokens, err
	}
	return units, inputTokens, nil
}

// Actual prices observed token usage.
func (e *Estimator) Actual(inputTokens, outputTokens int64) (float64, error) {
	cost, err := e.registry.Cost(e.provider, e.model, inputTokens, outputTokens)
	if err != nil {
		return 0, fmt.Errorf("cost calculation: %w", err)
	}
	return cost, nil
}
