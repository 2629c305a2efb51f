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
	"encoding/json"
	"fmt"
	"time"

	retry "github.com/avast/retry-go"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"go.uber.org/zap"

	"github.com/beergeek/statefulset-scheduler/pkg/kubeclient"
	"github.com/beergeek/statefulset-scheduler/pkg/metrics"
)

const (
	conflictRetryAttempts = 5
	conflictRetryDelay    = 5 * time.Second
)

// pvClaimRefPatch is the merge-patch body for binding a PV to a PVC.
type pvClaimRefPatch struct {
	Spec pvClaimRefPatchSpec `json:"spec"`
}

type pvClaimRefPatchSpec struct {
	ClaimRef v1.ObjectReference `json:"claimRef"`
}

// pvcVolumeNamePatch is the merge-patch body for binding a PVC to a PV.
type pvcVolumeNamePatch struct {
	Spec pvcVolumeNamePatchSpec `json:"spec"`
}

type pvcVolumeNamePatchSpec struct {
	VolumeName string `json:"volumeName"`
}

// BindVolumes patches every PV/PVC pair in a plan, in two phases, making up
// to conflictRetryAttempts attempts per patch (the first try plus retries on
// 409 conflicts) with a fixed conflictRetryDelay between them. A PV whose
// claimRef already names the PVC is not patched again; the PVC's volumeName
// patch is always submitted, which leaves an already-bound PVC unchanged.
// Returns on the first pair that cannot be bound; no rollback is performed
// for pairs already patched.
func BindVolumes(ctx context.Context, c kubeclient.Interface, log *zap.SugaredLogger, namespace string, plan *VolumePlan) error {
	if plan == nil {
		return nil
	}
	for pvcName, pv := range plan.Assignments {
		if err := bindPair(ctx, c, log, namespace, pv.Name, pvcName, pv.Spec.ClaimRef); err != nil {
			return fmt.Errorf("binding pvc %s to pv %s: %w", pvcName, pv.Name, err)
		}
	}
	return nil
}

func bindPair(ctx context.Context, c kubeclient.Interface, log *zap.SugaredLogger, namespace, pvName, pvcName string, existingClaimRef *v1.ObjectReference) error {
	if existingClaimRef != nil && existingClaimRef.Name == pvcName && existingClaimRef.Namespace == namespace {
		log.Debugf("pv %s already claimed by pvc %s, skipping patch", pvName, pvcName)
	} else if err := patchWithRetry(ctx, log, fmt.Sprintf("pv/%s", pvName), func() error {
		body, err := json.Marshal(pvClaimRefPatch{Spec: pvClaimRefPatchSpec{ClaimRef: v1.ObjectReference{
			Kind:       "PersistentVolumeClaim",
			Name:       pvcName,
			Namespace:  namespace,
			APIVersion: "v1",
		}}})
		if err != nil {
			return err
		}
		return c.PatchPersistentVolume(ctx, pvName, body)
	}); err != nil {
		return err
	}

	return patchWithRetry(ctx, log, fmt.Sprintf("pvc/%s", pvcName), func() error {
		body, err := json.Marshal(pvcVolumeNamePatch{Spec: pvcVolumeNamePatchSpec{VolumeName: pvName}})
		if err != nil {
			return err
		}
		return c.PatchPersistentVolumeClaim(ctx, namespace, pvcName, body)
	})
}

// patchWithRetry retries only on conflict (409); any other failure returns
// immediately without retrying.
func patchWithRetry(ctx context.Context, log *zap.SugaredLogger, target string, patch func() error) error {
	return retry.Do(
		patch,
		retry.Context(ctx),
		retry.Attempts(conflictRetryAttempts),
		retry.Delay(conflictRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(apierrors.IsConflict),
		retry.OnRetry(func(n uint, err error) {
			metrics.BindConflictRetries.WithLabelValues(target).Inc()
			log.Warnf("conflict patching %s (attempt %d/%d): %v", target, n+1, conflictRetryAttempts, err)
		}),
		retry.LastErrorOnly(true),
	)
}

// CreatePodBinding submits the pod->node binding after all volumes for the
// pod are bound. A failure here is logged by the caller; no rollback of
// volume patches is performed.
func CreatePodBinding(ctx context.Context, c kubeclient.Interface, namespace, podName, nodeName string) error {
	return c.CreateBinding(ctx, namespace, podName, nodeName)
}
