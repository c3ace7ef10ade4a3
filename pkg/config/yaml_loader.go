// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/toolhive-core/env"
)

// Loader loads a Config.
type Loader interface {
	Load() (*Config, error)
}

// YAMLLoader loads configuration from a YAML file.
type YAMLLoader struct {
	path      string
	envReader env.Reader
}

// NewYAMLLoader creates a loader for path. An empty path yields the defaults.
// A nil envReader reads the process environment.
func NewYAMLLoader(path string, envReader env.Reader) *YAMLLoader {
	if envReader == nil {
		envReader = &env.OSReader{}
	}
	return &YAMLLoader{path: path, envReader: envReader}
}

// Load reads the file, applies defaults and resolves the credential password.
// Unknown keys are rejected.
func (l *YAMLLoader) Load() (*Config, error) {
	cfg := &Config{}
	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file %s: %w", l.path, err)
		}
	}

	cfg.EnsureDefaults()

	if err := l.resolvePassword(cfg.Credential); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *YAMLLoader) resolvePassword(cred *CredentialConfig) error {
	if cred == nil || cred.Password != "" || cred.PasswordEnv == "" {
		return nil
	}
	cred.Password = l.envReader.Getenv(cred.PasswordEnv)
	if cred.Password == "" {
		return fmt.Errorf("environment variable %s for credential password is not set", cred.PasswordEnv)
	}
	return nil
}
