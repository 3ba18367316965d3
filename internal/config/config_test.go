// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobalConfig() {
	globalConfig = defaultConfig()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supplychain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	timeout, err := cfg.CommitTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestLoadFile(t *testing.T) {
	resetGlobalConfig()
	path := writeConfig(t, `
dataDir: "/var/lib/supplychain"
viewDriver: "postgres"
viewDsn: "host=localhost user=supplychain"
commitTimeout: "5s"
pollInterval: "50ms"
queueCapacity: 16
metricsPort: 12798
tracing: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	expected := defaultConfig()
	expected.DataDir = "/var/lib/supplychain"
	expected.ViewDriver = "postgres"
	expected.ViewDsn = "host=localhost user=supplychain"
	expected.CommitTimeout = "5s"
	expected.PollInterval = "50ms"
	expected.QueueCapacity = 16
	expected.MetricsPort = 12798
	expected.Tracing = true
	assert.Equal(t, expected, cfg)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	resetGlobalConfig()
	path := writeConfig(t, "commitTimeout: \"5s\"\nkeyDir: \"/keys\"\n")
	t.Setenv("SUPPLYCHAIN_COMMIT_TIMEOUT", "12s")
	t.Setenv("SUPPLYCHAIN_AIRDROP_SOL", "2.5")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "12s", cfg.CommitTimeout)
	assert.Equal(t, "/keys", cfg.KeyDir)
	assert.Equal(t, "2.5", cfg.AirdropSol)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"driver", "viewDriver: \"mysql\"\n"},
		{"postgres without dsn", "viewDriver: \"postgres\"\n"},
		{"timeout", "commitTimeout: \"soon\"\n"},
		{"negative poll", "pollInterval: \"-1s\"\n"},
		{"program id", "programId: \"not-base58-0OIl\"\n"},
		{"queue", "queueCapacity: 0\n"},
		{"yaml", "commitTimeout: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resetGlobalConfig()
			_, err := LoadConfig(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := defaultConfig()
	assert.Same(t, cfg, FromContext(WithContext(context.Background(), cfg)))
}
