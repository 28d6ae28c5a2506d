/*
 * Copyright 2024 The Cowrite Authors. All rights reserved.
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

package backend

import (
	"fmt"
	"time"
)

// Config is the configuration for creating a Backend instance.
type Config struct {
	// Hostname is the hostname of the server. If not provided, the hostname
	// of the machine is used.
	Hostname string `yaml:"Hostname"`

	// PresenceTTL is the time after which a presence entry that received no
	// update is considered gone.
	PresenceTTL string `yaml:"PresenceTTL"`

	// PresenceCleanupInterval is how often expired presence entries are
	// swept and their departures broadcast.
	PresenceCleanupInterval string `yaml:"PresenceCleanupInterval"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.PresenceTTL); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--presence-ttl" flag: %w`,
			c.PresenceTTL,
			err,
		)
	}

	if _, err := time.ParseDuration(c.PresenceCleanupInterval); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--presence-cleanup-interval" flag: %w`,
			c.PresenceCleanupInterval,
			err,
		)
	}

	return nil
}

// ParsePresenceTTL returns the presence TTL duration.
func (c *Config) ParsePresenceTTL() time.Duration {
	result, err := time.ParseDuration(c.PresenceTTL)
	if err != nil {
		panic(err)
	}

	return result
}

// ParsePresenceCleanupInterval returns the presence cleanup interval.
func (c *Config) ParsePresenceCleanupInterval() time.Duration {
	result, err := time.ParseDuration(c.PresenceCleanupInterval)
	if err != nil {
		panic(err)
	}

	return result
}
