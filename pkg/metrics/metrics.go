/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics registers the scheduler's prometheus series:
// package-level CounterVecs registered once via MustRegister.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "statefulset_scheduler"

var (
	// DecisionsTotal counts terminal decision outcomes, labeled by the
	// DecisionState reached (Bound or Rejected).
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "decisions",
			Name:      "total",
			Help:      "Number of scheduling decisions reaching a terminal state, labeled by state.",
		},
		[]string{"state"},
	)

	// BindConflictRetries counts 409 conflict retries during volume binding.
	BindConflictRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "binder",
			Name:      "conflict_retries_total",
			Help:      "Number of 409 conflict retries while patching PVs/PVCs.",
		},
		[]string{"target"},
	)
)

// MustRegister registers the scheduler's metrics with the default
// prometheus registry. Call once at startup.
func MustRegister() {
	prometheus.MustRegister(DecisionsTotal, BindConflictRetries)
}
