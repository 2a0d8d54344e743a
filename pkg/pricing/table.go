package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TableProvider serves prices straight from a Table.
type TableProvider struct {
	table  *Table
	models map[string]ModelPrice
}

// NewTableProvider indexes a table by model name.
func NewTableProvider(t *Table) *TableProvider {
	m := make(map[string]ModelPrice, len(t.Models))
	for _, mp := range t.Models {
		m[mp.Model] = mp
	}
	return &TableProvider{table: t, models: m}
}

func (p *TableProvider) Name() string { return p.table.Provider }

func (p *TableProvider) Models() []ModelPrice { return p.table.Models }

func (p *TableProvider) PricePerToken(model string, tokenType TokenType) (float64, error) {
	mp, ok := p.models[model]
	if !ok {
		return 0, fmt.Errorf("%s: unknown model %q", p.table.Provider, model)
	}
	switch tokenType {
	case TokenInput:
		return mp.InputPerMillion / 1_000_000, nil
	case TokenOutput:
		return mp.OutputPerMillion / 1_000_000, nil
	default:
		return 0, fmt.Errorf("%s: unknown token type %d", p.table.Provider, tokenType)
	}
}

func (p *TableProvider) SupportsModel(model string) bool {
	_, ok := p.models[model]
	return ok
}

// LoadTable reads and validates a YAML pricing file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file %s: %w", path, err)
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("pricing file %s: %w", path, err)
	}
	return t, nil
}

// ParseTable parses and validates YAML pricing data.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse pricing data: %w", err)
	}
	if t.Provider == "" {
		return nil, fmt.Errorf("missing provider name")
	}
	if len(t.Models) == 0 {
		return nil, fmt.Errorf("no models defined")
	}
	for _, m := range t.Models {
		if m.InputPerMillion < 0 || m.OutputPerMillion < 0 {
			return nil, fmt.Errorf("model %q: negative price", m.Model)
		}
	}
	return &t, nil
}
