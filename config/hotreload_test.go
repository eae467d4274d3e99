// =============================================================================
// Configuration Hot Reload Tests
// =============================================================================
package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Hot Reload Manager Tests
// =============================================================================

func TestHotReloadManager_NewHotReloadManager(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	assert.NotNil(t, manager)
	assert.Equal(t, cfg, manager.GetConfig())
}

func TestHotReloadManager_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := manager.Start(ctx)
	require.NoError(t, err)

	err = manager.Stop()
	require.NoError(t, err)
}

func TestHotReloadManager_UpdateField(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	err := manager.UpdateField("Log.Level", "debug")
	require.NoError(t, err)

	assert.Equal(t, "debug", manager.GetConfig().Log.Level)

	changes := manager.GetChangeLog(10)
	assert.GreaterOrEqual(t, len(changes), 1)
}

func TestHotReloadManager_UpdateField_Unknown(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	err := manager.UpdateField("Unknown.Field", "value")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown configuration field")
}

func TestHotReloadManager_UpdateField_ValidatorRejectsOutOfRangeRatio(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	err := manager.UpdateField("Router.ExplorationRate", 1.5)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "between 0 and 1")

	// Field must be unchanged on a rejected update.
	assert.Equal(t, cfg.Router.ExplorationRate, manager.GetConfig().Router.ExplorationRate)
}

func TestHotReloadManager_UpdateField_ValidatorAcceptsInRangeRatio(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	err := manager.UpdateField("Consolidation.DuplicateThreshold", 0.92)
	require.NoError(t, err)
	assert.InDelta(t, 0.92, manager.GetConfig().Consolidation.DuplicateThreshold, 1e-9)
}

func TestHotReloadManager_UpdateField_ValidatorRejectsNonPositive(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	err := manager.UpdateField("Cache.MaxSizeMB", 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestHotReloadManager_UpdateField_ValidatorRejectsUnknownLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	err := manager.UpdateField("Log.Level", "trace")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of")
}

func TestHotReloadManager_SanitizedConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Redis.Password = "secret123"
	cfg.LLM.APIKey = "sk-test-key"

	manager := NewHotReloadManager(cfg)
	sanitized := manager.SanitizedConfig()

	if redis, ok := sanitized["Redis"].(map[string]interface{}); ok {
		assert.Equal(t, "[REDACTED]", redis["Password"])
	} else if redis, ok := sanitized["redis"].(map[string]interface{}); ok {
		assert.Equal(t, "[REDACTED]", redis["password"])
	} else {
		assert.NotNil(t, sanitized)
	}

	if llm, ok := sanitized["LLM"].(map[string]interface{}); ok {
		assert.Equal(t, "[REDACTED]", llm["APIKey"])
	} else if llm, ok := sanitized["llm"].(map[string]interface{}); ok {
		assert.Equal(t, "[REDACTED]", llm["api_key"])
	}
}

func TestHotReloadManager_OnChange(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	var receivedChanges []ConfigChange
	manager.OnChange(func(change ConfigChange) {
		receivedChanges = append(receivedChanges, change)
	})

	err := manager.UpdateField("Log.Level", "warn")
	require.NoError(t, err)

	assert.Len(t, receivedChanges, 1)
	assert.Equal(t, "Log.Level", receivedChanges[0].Path)
	assert.Equal(t, "api", receivedChanges[0].Source)
}

func TestHotReloadManager_ReloadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "agentmem.yaml")

	initialConfig := `
log:
  level: info
router:
  max_history_size: 10
  exploration_rate: 0.7
`
	err := os.WriteFile(tmpFile, []byte(initialConfig), 0644)
	require.NoError(t, err)

	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg, WithConfigPath(tmpFile))

	err = manager.ReloadFromFile()
	require.NoError(t, err)

	assert.Equal(t, "info", manager.GetConfig().Log.Level)
}

func TestHotReloadManager_ReloadFromFile_NoPathSet(t *testing.T) {
	manager := NewHotReloadManager(DefaultConfig())
	err := manager.ReloadFromFile()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no config path set")
}

func TestHotReloadManager_ApplyConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "info"

	manager := NewHotReloadManager(cfg)

	var reloadCalled bool
	manager.OnReload(func(oldConfig, newConfig *Config) {
		reloadCalled = true
		assert.Equal(t, "info", oldConfig.Log.Level)
		assert.Equal(t, "debug", newConfig.Log.Level)
	})

	newCfg := DefaultConfig()
	newCfg.Log.Level = "debug"

	err := manager.ApplyConfig(newCfg, "test")
	require.NoError(t, err)

	assert.True(t, reloadCalled)
	assert.Equal(t, "debug", manager.GetConfig().Log.Level)
}

func TestHotReloadManager_ApplyConfig_UnknownFieldRequiresRestart(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	newCfg := DefaultConfig()
	newCfg.Database.EmbeddedPath = "/var/lib/agentmem/renamed.db"

	err := manager.ApplyConfig(newCfg, "test")
	require.NoError(t, err)

	changes := manager.GetChangeLog(10)
	require.NotEmpty(t, changes)
	var found bool
	for _, c := range changes {
		if c.Path == "Database.EmbeddedPath" {
			found = true
			assert.True(t, c.RequiresRestart, "a field absent from the hot-reloadable registry must default to requiring restart")
		}
	}
	assert.True(t, found)
}

// =============================================================================
// Hot Reloadable Fields Tests
// =============================================================================

func TestGetHotReloadableFields(t *testing.T) {
	fields := GetHotReloadableFields()

	assert.NotEmpty(t, fields)
	assert.Contains(t, fields, "Log.Level")
	assert.Contains(t, fields, "Router.ExplorationRate")
	assert.Contains(t, fields, "Database.Backend")
}

func TestIsHotReloadable(t *testing.T) {
	assert.True(t, IsHotReloadable("Log.Level"))
	assert.False(t, IsHotReloadable("Database.Backend"))
	assert.False(t, IsHotReloadable("Unknown.Field"))
}

// =============================================================================
// Helper Function Tests
// =============================================================================

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path     string
		expected []string
	}{
		{"Log.Level", []string{"Log", "Level"}},
		{"Database.MaxOpenConns", []string{"Database", "MaxOpenConns"}},
		{"Single", []string{"Single"}},
		{"A.B.C.D", []string{"A", "B", "C", "D"}},
		{".Leading", []string{"Leading"}},
		{"Trailing.", []string{"Trailing"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			result := splitPath(tt.path)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRedactSensitiveFields(t *testing.T) {
	data := map[string]interface{}{
		"host":     "localhost",
		"password": "secret123",
		"api_key":  "sk-test",
		"nested": map[string]interface{}{
			"token":  "bearer-token",
			"normal": "value",
		},
	}

	redactSensitiveFields(data, "")

	assert.Equal(t, "localhost", data["host"])
	assert.Equal(t, "[REDACTED]", data["password"])
	assert.Equal(t, "[REDACTED]", data["api_key"])

	nested := data["nested"].(map[string]interface{})
	assert.Equal(t, "[REDACTED]", nested["token"])
	assert.Equal(t, "value", nested["normal"])
}

func TestToFloat64(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{0.5, 0.5, true},
		{float32(0.25), 0.25, true},
		{3, 3, true},
		{int64(7), 7, true},
		{100 * time.Millisecond, float64(100 * time.Millisecond), true},
		{"nope", 0, false},
	}
	for _, tc := range cases {
		got, err := toFloat64(tc.in)
		if tc.ok {
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		} else {
			assert.Error(t, err)
		}
	}
}

// =============================================================================
// Integration Tests
// =============================================================================

func TestHotReload_Integration(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "agentmem.yaml")

	initialConfig := `
log:
  level: info
router:
  max_history_size: 10
  exploration_rate: 0.7
`
	require.NoError(t, os.WriteFile(tmpFile, []byte(initialConfig), 0644))

	cfg := DefaultConfig()
	logger := zap.NewNop()
	manager := NewHotReloadManager(cfg,
		WithConfigPath(tmpFile),
		WithHotReloadLogger(logger),
		WithReloadPollInterval(10*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	var mu sync.Mutex
	var changes []ConfigChange
	manager.OnChange(func(change ConfigChange) {
		mu.Lock()
		changes = append(changes, change)
		mu.Unlock()
	})

	time.Sleep(30 * time.Millisecond)

	updatedConfig := `
log:
  level: debug
router:
  max_history_size: 20
  exploration_rate: 0.7
`
	require.NoError(t, os.WriteFile(tmpFile, []byte(updatedConfig), 0644))

	require.Eventually(t, func() bool {
		return manager.GetConfig().Log.Level == "debug"
	}, 3*time.Second, 20*time.Millisecond, "hot reload should pick up the file change")

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, changes)
}
