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

	"github.com/beergeek/statefulset-scheduler/pkg/kubeclient"
)

// InspectStatefulSet returns the replica count and volume-claim templates of
// the named stateful set, or (nil, nil) if no such set exists — the absence
// is not itself an error; it is the orchestrator's job to treat a nil
// replicas as fatal for the event being processed.
func InspectStatefulSet(ctx context.Context, c kubeclient.Interface, namespace, name string) (*int32, []v1.PersistentVolumeClaim, error) {
	sets, err := c.ListStatefulSets(ctx, namespace)
	if err != nil {
		return nil, nil, err
	}
	for i := range sets {
		if sets[i].Name == name {
			return sets[i].Spec.Replicas, sets[i].Spec.VolumeClaimTemplates, nil
		}
	}
	return nil, nil, nil
}
