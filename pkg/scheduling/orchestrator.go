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

// Package scheduling implements the scheduling decision pipeline: watch
// admission, stateful-set inspection, data-centre selection, node and pod
// affinity filtering, scoring, volume planning, and binding.
package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	v1 "k8s.io/api/core/v1"

	"go.uber.org/zap"

	"github.com/beergeek/statefulset-scheduler/pkg/apis/config"
	"github.com/beergeek/statefulset-scheduler/pkg/kubeclient"
	"github.com/beergeek/statefulset-scheduler/pkg/logging"
	"github.com/beergeek/statefulset-scheduler/pkg/metrics"
)

// DecisionState is one of the states of the per-event state machine.
type DecisionState string

const (
	StateAdmitted             DecisionState = "Admitted"
	StateInspected             DecisionState = "Inspected"
	StateDCChosen              DecisionState = "DCChosen"
	StateNodesFiltered         DecisionState = "NodesFiltered"
	StateNodesAffinityFiltered DecisionState = "NodesAffinityFiltered"
	StateNodesScored           DecisionState = "NodesScored"
	StateVolumesPlanned        DecisionState = "VolumesPlanned"
	StateVolumesBound          DecisionState = "VolumesBound"
	StateBound                 DecisionState = "Bound"
	StateRejected              DecisionState = "Rejected"
)

// Orchestrator composes the pipeline stages for one event at a time:
// single-threaded and sequential, no state carried across events.
type Orchestrator struct {
	client   kubeclient.Interface
	settings config.Settings
}

func NewOrchestrator(client kubeclient.Interface, settings config.Settings) *Orchestrator {
	return &Orchestrator{client: client, settings: settings}
}

// Decide runs the full pipeline for a single admitted pod and returns the
// terminal state reached. Every non-nil error is hermetic to this event;
// errors never cross event boundaries.
func (o *Orchestrator) Decide(ctx context.Context, pod *v1.Pod) (DecisionState, error) {
	log := loggerFor(ctx, pod)
	state := StateAdmitted

	ownerName, err := statefulSetOwner(pod)
	if err != nil {
		metrics.DecisionsTotal.WithLabelValues(string(StateRejected)).Inc()
		return StateRejected, err
	}

	replicas, templates, err := InspectStatefulSet(ctx, o.client, pod.Namespace, ownerName)
	if err != nil {
		return o.reject(state, fmt.Errorf("inspecting stateful set %s: %w", ownerName, err))
	}
	if replicas == nil {
		return o.reject(state, fmt.Errorf("stateful set %s not found", ownerName))
	}
	state = StateInspected

	ordinal, err := PodOrdinal(pod.Name)
	if err != nil {
		return o.reject(state, err)
	}

	dc, err := ChooseDataCentre(ordinal, *replicas, o.settings.PrimaryDataCentres, o.settings.NoPrimaryDataCentres)
	if err != nil {
		return o.reject(state, err)
	}
	state = StateDCChosen
	log.Debugf("chose data centre %s for pod %s", dc, pod.Name)

	allNodes, err := o.client.ListNodes(ctx)
	if err != nil {
		return o.reject(state, fmt.Errorf("listing nodes: %w", err))
	}
	candidateNodes := FilterNodesByDataCentre(allNodes, o.settings.DataCentresLabel, dc)
	if len(candidateNodes) == 0 {
		return o.reject(state, fmt.Errorf("no ready nodes in data centre %s", dc))
	}
	state = StateNodesFiltered

	allPods, err := o.client.ListPods(ctx, pod.Namespace)
	if err != nil {
		return o.reject(state, fmt.Errorf("listing pods: %w", err))
	}
	runningPods := runningPodsOf(allPods)
	candidateNodes = PodAffinityFilter(candidateNodes, pod, runningPods, log)
	if len(candidateNodes) == 0 {
		return o.reject(state, fmt.Errorf("no node survives pod affinity/anti-affinity filtering"))
	}
	state = StateNodesAffinityFiltered

	requestedCPU, requestedMem := RequestedResources(pod)
	scoredNodes := ScoreNodes(candidateNodes, requestedCPU, requestedMem)
	if len(scoredNodes) == 0 {
		return o.reject(state, fmt.Errorf("no node scores above zero"))
	}
	state = StateNodesScored

	targetNode := scoredNodes[0].Node
	var volumePlan *VolumePlan
	if len(templates) > 0 {
		volumePlan, err = PlanVolumes(ctx, o.client, log, pod.Namespace, pod.Name, templates, scoredNodes)
		if err != nil {
			return o.reject(state, err)
		}
		state = StateVolumesPlanned
		targetNode = volumePlan.Node

		if err := BindVolumes(ctx, o.client, log, pod.Namespace, volumePlan); err != nil {
			return o.reject(state, fmt.Errorf("binding volumes: %w", err))
		}
		state = StateVolumesBound
	}

	if err := CreatePodBinding(ctx, o.client, pod.Namespace, pod.Name, targetNode.Name); err != nil {
		// A binding failure is logged; the volume patches already made are
		// not rolled back.
		return o.reject(state, fmt.Errorf("creating binding for pod %s to node %s: %w", pod.Name, targetNode.Name, err))
	}

	log.Infof("pod %s bound to node %s in data centre %s", pod.Name, targetNode.Name, dc)
	metrics.DecisionsTotal.WithLabelValues(string(StateBound)).Inc()
	return StateBound, nil
}

func (o *Orchestrator) reject(from DecisionState, err error) (DecisionState, error) {
	metrics.DecisionsTotal.WithLabelValues(string(StateRejected)).Inc()
	return StateRejected, fmt.Errorf("rejected from %s: %w", from, err)
}

func statefulSetOwner(pod *v1.Pod) (string, error) {
	if len(pod.OwnerReferences) == 0 || pod.OwnerReferences[0].Kind != "StatefulSet" {
		return "", fmt.Errorf("pod %s is not owned by a stateful set", pod.Name)
	}
	return pod.OwnerReferences[0].Name, nil
}

func runningPodsOf(pods []v1.Pod) []v1.Pod {
	var out []v1.Pod
	for _, p := range pods {
		if p.Status.Phase == v1.PodRunning {
			out = append(out, p)
		}
	}
	return out
}

// loggerFor tags every log line for this Decide call with a fresh decision
// ID so the lines belonging to one event can be grepped out of a shared
// log stream.
func loggerFor(ctx context.Context, pod *v1.Pod) *zap.SugaredLogger {
	return logging.FromContext(ctx).With("pod", pod.Namespace+"/"+pod.Name, "decisionID", uuid.NewString())
}
