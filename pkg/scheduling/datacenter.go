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

package scheduling

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// PodOrdinal extracts the trailing ordinal from a stateful-set pod name
// (format "<base>-<ordinal>"), failing loudly rather than letting a
// non-numeric suffix blow up downstream.
func PodOrdinal(podName string) (int, error) {
	idx := strings.LastIndex(podName, "-")
	if idx < 0 || idx == len(podName)-1 {
		return 0, fmt.Errorf("pod name %q has no ordinal suffix", podName)
	}
	ordinal, err := strconv.Atoi(podName[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("pod name %q ordinal unparseable: %w", podName, err)
	}
	return ordinal, nil
}

// ChooseDataCentre places primary members (ordinal != R-1) round-robin
// across the primary data-centre list; the final replica (the arbiter) is
// placed uniformly at random across the non-primary list.
func ChooseDataCentre(ordinal int, replicas int32, primary, nonPrimary []string) (string, error) {
	if len(primary) == 0 {
		return "", fmt.Errorf("no primary data centres configured")
	}
	if len(nonPrimary) == 0 {
		return "", fmt.Errorf("no non-primary data centres configured")
	}
	if int32(ordinal) != replicas-1 {
		return primary[ordinal%len(primary)], nil
	}
	return nonPrimary[rand.Intn(len(nonPrimary))], nil
}
