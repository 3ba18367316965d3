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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/program"
)

type ctxKey string

const configContextKey ctxKey = "supplychain.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	DefaultCommitTimeout = "30s"
	DefaultPollInterval  = "200ms"
	DefaultViewDriver    = "sqlite"
	// EnvPrefix is prepended to every environment variable name
	EnvPrefix = "supplychain"
)

type Config struct {
	ProgramID     string `yaml:"programId"     split_words:"true"`
	DataDir       string `yaml:"dataDir"       split_words:"true"`
	ViewDriver    string `yaml:"viewDriver"    split_words:"true"`
	ViewDsn       string `yaml:"viewDsn"       split_words:"true"`
	CommitTimeout string `yaml:"commitTimeout" split_words:"true"`
	PollInterval  string `yaml:"pollInterval"  split_words:"true"`
	BindAddr      string `yaml:"bindAddr"      split_words:"true"`
	KeyDir        string `yaml:"keyDir"        split_words:"true"`
	// AirdropSol is credited to each fresh devnet wallet
	AirdropSol    string `yaml:"airdropSol"    split_words:"true"`
	QueueCapacity int    `yaml:"queueCapacity" split_words:"true"`
	MetricsPort   uint   `yaml:"metricsPort"   split_words:"true"`
	Tracing       bool   `yaml:"tracing"`
	TracingStdout bool   `yaml:"tracingStdout" split_words:"true"`
	Debug         bool   `yaml:"debug"`
}

func defaultConfig() *Config {
	return &Config{
		ProgramID:     program.DefaultProgramID,
		DataDir:       "",
		ViewDriver:    DefaultViewDriver,
		CommitTimeout: DefaultCommitTimeout,
		PollInterval:  DefaultPollInterval,
		BindAddr:      "127.0.0.1",
		KeyDir:        ".supplychain/keys",
		AirdropSol:    "10",
		QueueCapacity: 256,
		MetricsPort:   0,
	}
}

var globalConfig = defaultConfig()

// LoadConfig reads the YAML file at configFile, or the first of
// ~/.supplychain/supplychain.yaml and /etc/supplychain/supplychain.yaml that
// exists, then overlays a .env file from the working directory and the
// SUPPLYCHAIN_* environment.
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".supplychain", "supplychain.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/supplychain/supplychain.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// existing environment variables win over .env entries
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := globalConfig.Validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if _, err := address.Parse(c.ProgramID); err != nil {
		return fmt.Errorf("invalid programId: %w", err)
	}
	switch c.ViewDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf(
			"invalid viewDriver: %q (must be 'sqlite' or 'postgres')",
			c.ViewDriver,
		)
	}
	if c.ViewDriver == "postgres" && c.ViewDsn == "" {
		return errors.New("viewDsn is required for the postgres view driver")
	}
	if _, err := c.CommitTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.PollIntervalDuration(); err != nil {
		return err
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("invalid queueCapacity: %d", c.QueueCapacity)
	}
	return nil
}

func (c *Config) ProgramAddress() (address.Address, error) {
	return address.Parse(c.ProgramID)
}

func (c *Config) CommitTimeoutDuration() (time.Duration, error) {
	return positiveDuration("commitTimeout", c.CommitTimeout)
}

func (c *Config) PollIntervalDuration() (time.Duration, error) {
	return positiveDuration("pollInterval", c.PollInterval)
}

func positiveDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: %s is not positive", name, value)
	}
	return d, nil
}
