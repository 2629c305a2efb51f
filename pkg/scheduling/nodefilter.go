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
	v1 "k8s.io/api/core/v1"
)

// FilterNodesByDataCentre restricts nodes to those labeled with the chosen
// data centre that also report Ready=True. The result is always a fresh
// slice built by a pure filter rather than mutating the input while
// iterating over it.
func FilterNodesByDataCentre(nodes []v1.Node, dataCentresLabel, dataCentre string) []v1.Node {
	var out []v1.Node
	for _, n := range nodes {
		if n.Labels[dataCentresLabel] != dataCentre {
			continue
		}
		if !isReady(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func isReady(n v1.Node) bool {
	for _, cond := range n.Status.Conditions {
		if cond.Type == v1.NodeReady && cond.Status == v1.ConditionTrue {
			return true
		}
	}
	return false
}
