// Package pricing holds per-model prices for remote analysis calls, loaded
// from YAML tables. Prices are expressed in budget units per million tokens.
package pricing

// TokenType distinguishes input from output tokens.
type TokenType int

const (
	TokenInput TokenType = iota
	TokenOutput
)

// ModelPrice is the price of one model.
type ModelPrice struct {
	Model            string  `yaml:"model"`
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// Table is a provider's pricing file.
type Table struct {
	Provider string       `yaml:"provider"`
	Updated  string       `yaml:"updated"`
	Models   []ModelPrice `yaml:"models"`
}

// Provider prices tokens for the models it knows.
type Provider interface {
	Name() string
	Models() []ModelPrice
	PricePerToken(model string, tokenType TokenType) (float64, error)
	SupportsModel(model string) bool
}
