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
	"context"
	"fmt"
	"math/big"
	"regexp"
	"sort"

	v1 "k8s.io/api/core/v1"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/beergeek/statefulset-scheduler/pkg/kubeclient"
	"github.com/beergeek/statefulset-scheduler/pkg/quantity"
)

// AllocatedClaim is a PVC already Bound to a PV.
type AllocatedClaim struct {
	PVCName string
	PV      v1.PersistentVolume
}

// AllocatableClaim is a Pending PVC with one or more candidate PVs, sorted
// by capacity descending.
type AllocatableClaim struct {
	PVCName    string
	Requested  *big.Rat
	Candidates []v1.PersistentVolume
}

// ClaimPlan is the classification of a pod's volume-claim templates into the
// three buckets that must partition them: every claim template is exactly
// one of allocated, allocatable, or unallocatable.
type ClaimPlan struct {
	Allocated     []AllocatedClaim
	Allocatable   []AllocatableClaim
	Unallocatable []string
}

// GatherCandidatePVs finds PVs whose storage class is one of the template
// storage classes and which are either Available, or Bound with a claimRef
// naming "<storageClass>-<podName>" (the idempotent-reschedule case).
func GatherCandidatePVs(pvs []v1.PersistentVolume, storageClasses map[string]bool, podName string) []v1.PersistentVolume {
	var out []v1.PersistentVolume
	for _, pv := range pvs {
		if !storageClasses[pv.Spec.StorageClassName] {
			continue
		}
		switch pv.Status.Phase {
		case v1.VolumeAvailable:
			out = append(out, pv)
		case v1.VolumeBound:
			if pv.Spec.ClaimRef != nil && pv.Spec.ClaimRef.Name == fmt.Sprintf("%s-%s", pv.Spec.StorageClassName, podName) {
				out = append(out, pv)
			}
		}
	}
	return out
}

// GatherCandidatePVCs finds, for each claim template named t, the PVCs in
// the pod's namespace matching ^t-<podName>.*$ with phase Pending or Bound.
func GatherCandidatePVCs(allPVCs []v1.PersistentVolumeClaim, templates []v1.PersistentVolumeClaim, podName string) ([]v1.PersistentVolumeClaim, error) {
	var out []v1.PersistentVolumeClaim
	for _, tmpl := range templates {
		pattern, err := regexp.Compile("^" + regexp.QuoteMeta(tmpl.Name) + "-" + regexp.QuoteMeta(podName) + ".*$")
		if err != nil {
			return nil, fmt.Errorf("compiling claim pattern for template %s: %w", tmpl.Name, err)
		}
		for _, pvc := range allPVCs {
			if !pattern.MatchString(pvc.Name) {
				continue
			}
			if pvc.Status.Phase == v1.ClaimPending || pvc.Status.Phase == v1.ClaimBound {
				out = append(out, pvc)
			}
		}
	}
	return out
}

// ClassifyClaims partitions candidate PVCs into allocated, allocatable, and
// unallocatable buckets.
func ClassifyClaims(pvcs []v1.PersistentVolumeClaim, pvs []v1.PersistentVolume) ClaimPlan {
	var plan ClaimPlan
	for _, pvc := range pvcs {
		switch pvc.Status.Phase {
		case v1.ClaimBound:
			for _, pv := range pvs {
				if pv.Spec.ClaimRef != nil && pv.Spec.ClaimRef.Name == pvc.Name {
					plan.Allocated = append(plan.Allocated, AllocatedClaim{PVCName: pvc.Name, PV: pv})
					break
				}
			}
		case v1.ClaimPending:
			requested := quantity.FromResource(pvc.Spec.Resources.Requests[v1.ResourceStorage])
			candidates := candidatePVsFor(pvs, requested, pvc.Name)
			if len(candidates) == 0 {
				plan.Unallocatable = append(plan.Unallocatable, pvc.Name)
				continue
			}
			plan.Allocatable = append(plan.Allocatable, AllocatableClaim{
				PVCName:    pvc.Name,
				Requested:  requested,
				Candidates: candidates,
			})
		}
	}
	return plan
}

// candidatePVsFor keeps PVs that are either unclaimed, or already claimed by
// this exact PVC — the latter covers re-admission of a pod whose PV-side
// patch previously succeeded but whose PVC-side patch did not, so the
// pending claim still finds its already-half-bound PV as a candidate
// instead of being starved by its own prior partial bind.
func candidatePVsFor(pvs []v1.PersistentVolume, requested *big.Rat, pvcName string) []v1.PersistentVolume {
	var out []v1.PersistentVolume
	for _, pv := range pvs {
		if pv.Spec.ClaimRef != nil && pv.Spec.ClaimRef.Name != pvcName {
			continue
		}
		capacity := quantity.FromResource(pv.Spec.Capacity[v1.ResourceStorage])
		if capacity.Cmp(requested) >= 0 {
			out = append(out, pv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci := quantity.FromResource(out[i].Spec.Capacity[v1.ResourceStorage])
		cj := quantity.FromResource(out[j].Spec.Capacity[v1.ResourceStorage])
		return ci.Cmp(cj) > 0
	})
	return out
}

// NodeAffinityPredicate reports whether a PV's node affinity is satisfied by
// a node: a PV passes iff every required node-selector term passes, and a
// term passes iff every match expression passes. A missing node-affinity
// block passes vacuously. Gt/Lt are explicitly unsupported and fail closed
// with a warning.
func NodeAffinityPredicate(pv v1.PersistentVolume, node v1.Node, log *zap.SugaredLogger) bool {
	if pv.Spec.NodeAffinity == nil || pv.Spec.NodeAffinity.Required == nil {
		return true
	}
	for _, term := range pv.Spec.NodeAffinity.Required.NodeSelectorTerms {
		if !nodeSelectorTermPasses(term, node.Labels, log) {
			return false
		}
	}
	return true
}

func nodeSelectorTermPasses(term v1.NodeSelectorTerm, labels map[string]string, log *zap.SugaredLogger) bool {
	for _, raw := range term.MatchExpressions {
		expr := NewMatchExpression(raw.Key, raw.Operator, raw.Values...)
		if expr.Operator == opUnsupported {
			log.Warnf("unsupported node-affinity operator %q on key %q", raw.Operator, raw.Key)
			return false
		}
		if !expr.MatchesLabels(labels) {
			return false
		}
	}
	return true
}

// nodeVolumeCandidates is the per-node result of winnowing: the allocatable
// PVC candidates that survive this particular node's affinity checks.
type nodeVolumeCandidates struct {
	Node       ScoredNode
	PerPVCPool map[string][]v1.PersistentVolume
}

// winnowNodesForVolumes excludes nodes failing an allocated PV's affinity,
// or left with an uncoverable allocatable PVC. Candidate order is preserved
// from the scored node list so the first survivor is the best-scored one.
func winnowNodesForVolumes(nodes []ScoredNode, plan ClaimPlan, log *zap.SugaredLogger) []nodeVolumeCandidates {
	var survivors []nodeVolumeCandidates
	for _, sn := range nodes {
		ok := true
		for _, a := range plan.Allocated {
			if !NodeAffinityPredicate(a.PV, sn.Node, log) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		pool := map[string][]v1.PersistentVolume{}
		for _, claim := range plan.Allocatable {
			var matching []v1.PersistentVolume
			for _, pv := range claim.Candidates {
				if NodeAffinityPredicate(pv, sn.Node, log) {
					matching = append(matching, pv)
				}
			}
			if len(matching) == 0 {
				ok = false
				break
			}
			pool[claim.PVCName] = matching
		}
		if !ok {
			continue
		}
		survivors = append(survivors, nodeVolumeCandidates{Node: sn, PerPVCPool: pool})
	}
	return survivors
}

// dedupAssign picks, for each PVC in plan order, the first candidate PV not
// already consumed by an earlier PVC in this plan. Returns false if some
// claim cannot be covered once earlier claims have consumed their shared
// candidates.
func dedupAssign(plan ClaimPlan, pool map[string][]v1.PersistentVolume) (map[string]v1.PersistentVolume, bool) {
	consumed := map[string]bool{}
	assignment := map[string]v1.PersistentVolume{}
	for _, claim := range plan.Allocatable {
		var chosen *v1.PersistentVolume
		for i, pv := range pool[claim.PVCName] {
			if !consumed[pv.Name] {
				chosen = &pool[claim.PVCName][i]
				break
			}
		}
		if chosen == nil {
			return nil, false
		}
		consumed[chosen.Name] = true
		assignment[claim.PVCName] = *chosen
	}
	return assignment, true
}

// VolumePlan is the outcome of the full §4.7 pipeline for one pod: the
// target node (consistent with the scorer's top-candidate philosophy,
// extended to account for volume affinity) plus the final PVC->PV bijection
// for the pending claims and the already-bound claims carried through
// unchanged.
type VolumePlan struct {
	Node        v1.Node
	Score       *big.Rat
	Allocated   []AllocatedClaim
	Assignments map[string]v1.PersistentVolume
}

// PlanVolumes runs gather/classify/winnow/dedup end to end against an
// already-scored node list, returning ErrUnschedulableVolumes if any PVC is
// unallocatable or no node survives winnowing+dedup.
func PlanVolumes(ctx context.Context, c kubeclient.Interface, log *zap.SugaredLogger, namespace, podName string, templates []v1.PersistentVolumeClaim, scoredNodes []ScoredNode) (*VolumePlan, error) {
	if len(templates) == 0 {
		return nil, nil
	}
	storageClasses := map[string]bool{}
	for _, t := range templates {
		if t.Spec.StorageClassName != nil {
			storageClasses[*t.Spec.StorageClassName] = true
		}
	}

	allPVs, err := c.ListPersistentVolumes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing persistent volumes: %w", err)
	}
	allPVCs, err := c.ListPersistentVolumeClaims(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("listing persistent volume claims: %w", err)
	}

	candidatePVs := GatherCandidatePVs(allPVs, storageClasses, podName)
	candidatePVCs, err := GatherCandidatePVCs(allPVCs, templates, podName)
	if err != nil {
		return nil, err
	}

	plan := ClassifyClaims(candidatePVCs, candidatePVs)
	if len(plan.Unallocatable) > 0 {
		var combined error
		for _, pvcName := range plan.Unallocatable {
			combined = multierr.Append(combined, fmt.Errorf("pvc %s: no candidate persistent volume has sufficient capacity", pvcName))
		}
		return nil, &ErrUnschedulableVolumes{Reason: combined.Error()}
	}

	survivors := winnowNodesForVolumes(scoredNodes, plan, log)
	for _, s := range survivors {
		assignment, ok := dedupAssign(plan, s.PerPVCPool)
		if !ok {
			continue
		}
		return &VolumePlan{
			Node:        s.Node.Node,
			Score:       s.Node.Score,
			Allocated:   plan.Allocated,
			Assignments: assignment,
		}, nil
	}
	return nil, &ErrUnschedulableVolumes{Reason: "no node satisfies volume affinity for all pending claims"}
}

// ErrUnschedulableVolumes is returned when the volume planner cannot place
// every pending claim template.
type ErrUnschedulableVolumes struct {
	Reason string
}

func (e *ErrUnschedulableVolumes) Error() string {
	return "unschedulable (volumes): " + e.Reason
}
