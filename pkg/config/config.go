/*
 * Copyright 2026 FleetMind Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads service configuration from JSON files with optional
// environment-variable overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/fleetmind/registry/pkg/logger"
)

var errInvalidConfigPtr = errors.New("config must be a non-nil pointer")

// Loader loads configuration from a source into dst.
type Loader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by config structs that can check themselves after
// loading.
type Validator interface {
	Validate() error
}

// Config holds the configuration loading dependencies.
type Config struct {
	loader Loader
	logger logger.Logger
}

// NewConfig initializes a Config with the default file loader.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		loader: &FileLoader{},
		logger: log,
	}
}

// LoadAndValidate loads the file at path into dst, applies environment
// overrides, and runs dst's Validate hook if it has one.
func (c *Config) LoadAndValidate(ctx context.Context, path string, dst interface{}) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errInvalidConfigPtr
	}

	if err := c.loader.Load(ctx, path, dst); err != nil {
		return err
	}

	applyEnvOverrides(dst)

	if validator, ok := dst.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("invalid configuration in %s: %w", path, err)
		}
	}

	c.logger.Debug().Str("path", path).Msg("Configuration loaded")

	return nil
}
