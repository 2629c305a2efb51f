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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"go.uber.org/zap"
)

const supportedTopologyKey = "kubernetes.io/hostname"

// PodAffinityFilter applies required pod-anti-affinity first, then required
// pod-affinity, in that order. Preferred rules are ignored with a warning —
// a documented simplification, not a bug.
func PodAffinityFilter(nodes []v1.Node, pod *v1.Pod, runningPods []v1.Pod, log *zap.SugaredLogger) []v1.Node {
	nodes = applyRequiredAntiAffinity(nodes, pod, runningPods, log)
	nodes = applyRequiredAffinity(nodes, pod, runningPods, log)
	return nodes
}

func applyRequiredAntiAffinity(nodes []v1.Node, pod *v1.Pod, runningPods []v1.Pod, log *zap.SugaredLogger) []v1.Node {
	if pod.Spec.Affinity == nil || pod.Spec.Affinity.PodAntiAffinity == nil {
		return nodes
	}
	aa := pod.Spec.Affinity.PodAntiAffinity
	if len(aa.PreferredDuringSchedulingIgnoredDuringExecution) > 0 {
		log.Warnf("ignoring preferred pod anti-affinity rules for pod %s", pod.Name)
	}
	for _, term := range aa.RequiredDuringSchedulingIgnoredDuringExecution {
		if term.TopologyKey != supportedTopologyKey {
			log.Warnf("unsupported anti-affinity topologyKey %q, rule skipped", term.TopologyKey)
			continue
		}
		exprs, ok := expressionsOf(term.LabelSelector)
		if !ok {
			log.Warnf("unsupported operator in pod anti-affinity rule for pod %s, rule skipped", pod.Name)
			continue
		}
		nodes = rejectIf(nodes, func(n v1.Node) bool {
			return anyRunningPodOnNodeMatches(exprs, runningPods, n.Name)
		})
	}
	return nodes
}

func applyRequiredAffinity(nodes []v1.Node, pod *v1.Pod, runningPods []v1.Pod, log *zap.SugaredLogger) []v1.Node {
	if pod.Spec.Affinity == nil || pod.Spec.Affinity.PodAffinity == nil {
		return nodes
	}
	a := pod.Spec.Affinity.PodAffinity
	if len(a.PreferredDuringSchedulingIgnoredDuringExecution) > 0 {
		log.Warnf("ignoring preferred pod affinity rules for pod %s", pod.Name)
	}
	for _, term := range a.RequiredDuringSchedulingIgnoredDuringExecution {
		if term.TopologyKey != supportedTopologyKey {
			log.Warnf("unsupported affinity topologyKey %q, rule unsatisfiable", term.TopologyKey)
			return nil
		}
		exprs, ok := expressionsOf(term.LabelSelector)
		if !ok {
			log.Warnf("unsupported operator in pod affinity rule for pod %s, rule unsatisfiable", pod.Name)
			return nil
		}
		nodes = rejectIf(nodes, func(n v1.Node) bool {
			return !anyRunningPodOnNodeMatches(exprs, runningPods, n.Name)
		})
	}
	return nodes
}

// expressionsOf returns the match expressions of a label selector, and false
// if any expression uses an operator outside {In, NotIn} — Exists and
// DoesNotExist are reserved but not implemented, so their presence makes
// the whole term unsupported.
func expressionsOf(sel *metav1.LabelSelector) ([]metav1.LabelSelectorRequirement, bool) {
	if sel == nil {
		return nil, true
	}
	for _, expr := range sel.MatchExpressions {
		if expr.Operator != metav1.LabelSelectorOpIn && expr.Operator != metav1.LabelSelectorOpNotIn {
			return nil, false
		}
	}
	return sel.MatchExpressions, true
}

// anyRunningPodOnNodeMatches reports whether some pod in runningPods is
// scheduled on nodeName and satisfies every match expression (AND semantics
// within a term).
func anyRunningPodOnNodeMatches(exprs []metav1.LabelSelectorRequirement, runningPods []v1.Pod, nodeName string) bool {
	for _, p := range runningPods {
		if p.Spec.NodeName != nodeName {
			continue
		}
		if podMatchesExpressions(exprs, p.Labels) {
			return true
		}
	}
	return false
}

// podMatchesExpressions evaluates each expression through the same
// MatchExpression dispatch node-affinity uses. expressionsOf has already
// rejected any term using an operator other than In/NotIn, so this never
// sees Exists/DoesNotExist here even though MatchExpression supports them.
func podMatchesExpressions(exprs []metav1.LabelSelectorRequirement, labels map[string]string) bool {
	for _, expr := range exprs {
		match := NewMatchExpression(expr.Key, v1.NodeSelectorOperator(expr.Operator), expr.Values...)
		if !match.MatchesLabels(labels) {
			return false
		}
	}
	return true
}

func rejectIf(nodes []v1.Node, reject func(v1.Node) bool) []v1.Node {
	var out []v1.Node
	for _, n := range nodes {
		if !reject(n) {
			out = append(out, n)
		}
	}
	return out
}
