package pricing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ogulcanaydogan/energy-advisor/pkg/pricing"
)

func writeTable(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTable(t *testing.T) {
	path := writeTable(t, t.TempDir(), "test.yaml", `
provider: test
updated: "2026-01-01"
models:
  - model: test-model
    input_per_million: 1.0
    output_per_million: 2.0
`)
	table, err := pricing.LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, "test", table.Provider)
	require.Len(t, table.Models, 1)
	assert.Equal(t, 2.0, table.Models[0].OutputPerMillion)
}

func TestLoadTable_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid yaml", "invalid: [yaml", "parse pricing data"},
		{"missing provider", "models:\n  - model: m\n    input_per_million: 1\n", "missing provider"},
		{"no models", "provider: test\nmodels: []\n", "no models"},
		{"negative price", "provider: test\nmodels:\n  - model: m\n    input_per_million: -1\n", "negative price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pricing.LoadTable(writeTable(t, dir, "p.yaml", tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := pricing.LoadTable("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestTableProvider_PricePerToken(t *testing.T) {
	p := pricing.NewTableProvider(&pricing.Table{
		Provider: "acme",
		Models:   []pricing.ModelPrice{{Model: "m1", InputPerMillion: 2, OutputPerMillion: 8}},
	})

	in, err := p.PricePerToken("m1", pricing.TokenInput)
	require.NoError(t, err)
	assert.InDelta(t, 2e-6, in, 1e-15)

	out, err := p.PricePerToken("m1", pricing.TokenOutput)
	require.NoError(t, err)
	assert.InDelta(t, 8e-6, out, 1e-15)

	_, err = p.PricePerToken("m2", pricing.TokenInput)
	assert.ErrorContains(t, err, "unknown model")

	_, err = p.PricePerToken("m1", pricing.TokenType(9))
	assert.ErrorContains(t, err, "unknown token type")

	assert.True(t, p.SupportsModel("m1"))
	assert.False(t, p.SupportsModel("m2"))
}

func TestRegistry(t *testing.T) {
	r := pricing.NewRegistry()
	acme := pricing.NewTableProvider(&pricing.Table{Provider: "acme", Models: []pricing.ModelPrice{{Model: "m1", InputPerMillion: 1, OutputPerMillion: 4}}})

	require.NoError(t, r.Register(acme))
	assert.ErrorContains(t, r.Register(acme), "already registered")

	_, err := r.Get("nope")
	assert.ErrorContains(t, err, "not found")

	got, err := r.FindProviderForModel("m1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name())

	_, err = r.FindProviderForModel("m9")
	assert.Error(t, err)

	cost, err := r.Cost("", "m1", 1_000_000, 500_000)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, cost, 1e-9)

	cost, err = r.Cost("acme", "m1", 1000, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.001, cost, 1e-12)
}

func TestNewDefaultRegistry(t *testing.T) {
	r, err := pricing.NewDefaultRegistry("")
	require.NoError(t, err)
	assert.Equal(t, []string{"advisor", "anthropic"}, r.List())

	p, err := r.Get("anthropic")
	require.NoError(t, err)
	assert.True(t, p.SupportsModel("claude-sonnet-4-5"))
}

func TestNewDefaultRegistry_DirOverrides(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "anthropic.yaml", `
provider: anthropic
models:
  - model: custom
    input_per_million: 9
    output_per_million: 9
`)
	writeTable(t, dir, "notes.txt", "ignored")

	r, err := pricing.NewDefaultRegistry(dir)
	require.NoError(t, err)

	p, err := r.Get("anthropic")
	require.NoError(t, err)
	assert.True(t, p.SupportsModel("custom"))
	assert.False(t, p.SupportsModel("claude-sonnet-4-5"))
}

func TestNewDefaultRegistry_MissingDir(t *testing.T) {
	_, err := pricing.NewDefaultRegistry(filepath.Join(t.TempDir(), "absent"))
	assert.NoError(t, err)
}
