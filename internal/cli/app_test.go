package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/energy-advisor/internal/config"
	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

func testConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "storage:\n  path: " + filepath.Join(dir, "advisor.db") + "\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestInitApp_StaticOnlyWithoutRemote(t *testing.T) {
	cfg := testConfig(t, "")
	a, err := initApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	snap, err := a.monitor.Refresh(context.Background())
	require.NoError(t, err)

	result := a.orch.RequestAnalysis(context.Background(), model.AnalysisContext{
		UserID:  "u1",
		Battery: snap,
		Tags:    []model.Tag{model.TagSleep},
	})
	assert.Equal(t, model.SourceStaticOnly, result.Source)
	assert.Nil(t, result.Enhanced)
	assert.NotEmpty(t, result.Static.Headline)

	latest, err := a.store.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap.ID, latest.ID)
}

func TestInitApp_RestoresBattery(t *testing.T) {
	cfg := testConfig(t, "")

	first, err := initApp(context.Background(), cfg)
	require.NoError(t, err)
	snap, err := first.monitor.Refresh(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := initApp(context.Background(), cfg)
	require.NoError(t, err)
	defer second.Close()

	restored, ok := second.monitor.Model().Current()
	require.True(t, ok)
	assert.Equal(t, snap.ID, restored.ID)
}

func TestNewRemote(t *testing.T) {
	cfg := testConfig(t, "")
	svc, err := newRemote(cfg)
	require.NoError(t, err)
	assert.Nil(t, svc)

	cfg.Remote.Kind = "http"
	cfg.Remote.URL = "http://localhost:9000/analyze"
	cfg.Remote.Provider = "advisor"
	cfg.Remote.Model = "advisor-v1"
	svc, err = newRemote(cfg)
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.Equal(t, "advisor", svc.Provider())
	assert.Equal(t, "advisor-v1", svc.Model())

	cfg.Remote.Kind = "anthropic"
	cfg.Remote.APIKey = ""
	_, err = newRemote(cfg)
	assert.Error(t, err)
}

func TestPricingDir(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, pricingDir(dir))
	assert.Empty(t, pricingDir(filepath.Join(dir, "missing")))
}

func TestInitNotifiers(t *testing.T) {
	cfg := testConfig(t, `
alerts:
  slack:
    enabled: true
    webhook_url: https://hooks.slack.com/x
  webhook:
    enabled: true
`)
	notifiers := initNotifiers(cfg)
	require.Len(t, notifiers, 1, "webhook without url is skipped")
	assert.Equal(t, "slack", notifiers[0].Name())
}
