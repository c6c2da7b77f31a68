// wifi-nan
// Copyright (c) 2026 The ProjectBlaze Reborn Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of wifi-nan.
//
// wifi-nan is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// wifi-nan is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with wifi-nan; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package transport provides shared utilities for the HAL wire backends.
package transport

import (
	"time"

	nan "github.com/ProjectBlaze-Reborn/packages-modules-Wifi"
)

// RetryOperation is a retryable step. Returns the result, whether the step
// should be retried, and any permanent error that stops retries.
type RetryOperation[T any] func() (T, bool, error)

// RetryConfig configures retry behavior for wire operations.
type RetryConfig struct {
	OnRetry     func() error
	Description string
	MaxRetries  int
	RetryDelay  time.Duration
}

// DefaultRetryConfig covers transient serial/i2c glitches without masking
// a dead controller.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, RetryDelay: 5 * time.Millisecond}
}

// WithRetry executes an operation with retry logic. Used by the uart
// backend; the i2c backend issues each transaction once, without retry.
func WithRetry[T any](config RetryConfig, backend string, operation RetryOperation[T]) (T, error) {
	var zero T

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		if attempt >= config.MaxRetries {
			break
		}
		if config.OnRetry != nil {
			if err := config.OnRetry(); err != nil {
				return zero, err
			}
		}
		if config.RetryDelay > 0 {
			time.Sleep(config.RetryDelay)
		}
	}

	op := config.Description
	if op == "" {
		op = "retry"
	}
	return zero, nan.NewHALError(op, backend, nan.ErrHALWrite, nan.ErrorTypeTransient)
}
