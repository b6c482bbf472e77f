// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package session

import (
	"github.com/axiomchain/axiom/metrics"
)

var (
	metricRotationCount      = metrics.LazyLoadCounter("session_rotation_count")
	metricKeyRegistrations   = metrics.LazyLoadCounter("session_key_registration_count")
	metricCurrentIndex       = metrics.LazyLoadGauge("session_current_index")
	metricActiveValidators   = metrics.LazyLoadGauge("session_active_validator_count")
	metricDisabledValidators = metrics.LazyLoadGauge("session_disabled_validator_count")
	metricRotationDuration   = metrics.LazyLoadHistogram("session_rotation_duration_ms", metrics.Bucket1s)
)
