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
	"math/big"
	"sort"

	v1 "k8s.io/api/core/v1"

	"github.com/beergeek/statefulset-scheduler/pkg/quantity"
)

// ScoredNode pairs a node with the transient score computed for a specific
// decision; the score is never persisted, only carried through the rest of
// the pipeline for this one event.
type ScoredNode struct {
	Node  v1.Node
	Score *big.Rat
}

// RequestedResources sums requests across all of a pod's containers, missing
// values counting as zero.
func RequestedResources(pod *v1.Pod) (cpu, mem *big.Rat) {
	cpu, mem = quantity.Zero(), quantity.Zero()
	for _, c := range pod.Spec.Containers {
		if q, ok := c.Resources.Requests[v1.ResourceCPU]; ok {
			cpu = quantity.Add(cpu, quantity.FromResource(q))
		}
		if q, ok := c.Resources.Requests[v1.ResourceMemory]; ok {
			mem = quantity.Add(mem, quantity.FromResource(q))
		}
	}
	return cpu, mem
}

// ScoreNodes scores each candidate node as free-CPU-fraction +
// free-memory-fraction, drops nodes with score <= 0, and sorts survivors
// descending by score with ties broken by insertion order (sort.SliceStable
// preserves the input order of the surviving nodes on ties).
func ScoreNodes(nodes []v1.Node, requestedCPU, requestedMem *big.Rat) []ScoredNode {
	scored := make([]ScoredNode, 0, len(nodes))
	for _, n := range nodes {
		cpuCap := quantity.FromResource(n.Status.Capacity[v1.ResourceCPU])
		memCap := quantity.FromResource(n.Status.Capacity[v1.ResourceMemory])
		if cpuCap.Sign() == 0 || memCap.Sign() == 0 {
			continue
		}
		cpuFraction := new(big.Rat).Quo(quantity.Sub(cpuCap, requestedCPU), cpuCap)
		memFraction := new(big.Rat).Quo(quantity.Sub(memCap, requestedMem), memCap)
		score := quantity.Add(cpuFraction, memFraction)
		if score.Sign() <= 0 {
			continue
		}
		scored = append(scored, ScoredNode{Node: n, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score.Cmp(scored[j].Score) > 0
	})
	return scored
}
