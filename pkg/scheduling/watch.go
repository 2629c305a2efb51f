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

	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/beergeek/statefulset-scheduler/pkg/kubeclient"
	"github.com/beergeek/statefulset-scheduler/pkg/logging"
)

// Admit is the watch loop's admission gate: a pod event is ours to schedule
// only if the pod is Pending, names this scheduler, has no existing
// conditions, and is owned by a stateful set. Any other event is skipped
// silently; a non-stateful-set owner logs a warning.
func Admit(ctx context.Context, pod *v1.Pod, schedulerName string) bool {
	log := logging.FromContext(ctx)
	if pod.Status.Phase != v1.PodPending {
		return false
	}
	if pod.Spec.SchedulerName != schedulerName {
		return false
	}
	if len(pod.Status.Conditions) != 0 {
		return false
	}
	if len(pod.OwnerReferences) == 0 || pod.OwnerReferences[0].Kind != "StatefulSet" {
		log.Warnf("pod %s/%s targets this scheduler but is not owned by a stateful set", pod.Namespace, pod.Name)
		return false
	}
	return true
}

// Run consumes the pod watch stream for namespace sequentially, admitting
// and deciding one event at a time with no internal parallelism. It returns
// when ctx is cancelled or the watch channel closes; the caller is expected
// to re-establish the watch on a dropped stream.
func Run(ctx context.Context, client kubeclient.Interface, orchestrator *Orchestrator, namespace, schedulerName string) error {
	log := logging.FromContext(ctx)
	w, err := client.WatchPods(ctx, namespace)
	if err != nil {
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.ResultChan():
			if !ok {
				return nil
			}
			pod, ok := event.Object.(*v1.Pod)
			if !ok {
				continue
			}
			if event.Type != watch.Added && event.Type != watch.Modified {
				continue
			}
			if !Admit(ctx, pod, schedulerName) {
				continue
			}
			if state, err := orchestrator.Decide(ctx, pod); err != nil {
				log.Errorw("scheduling decision failed", "pod", pod.Name, "state", state, "error", err)
			}
		}
	}
}
