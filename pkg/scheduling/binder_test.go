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

package scheduling_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"

	"github.com/beergeek/statefulset-scheduler/pkg/kubeclient"
	"github.com/beergeek/statefulset-scheduler/pkg/scheduling"
	"github.com/beergeek/statefulset-scheduler/pkg/schedulertest"
)

var _ = Describe("BindVolumes", func() {
	It("patches the claimRef on the PV and the volumeName on the PVC", func() {
		pv := schedulertest.PV(schedulertest.PVOptions{Name: "pv-0", StorageClass: "fast", Capacity: "10Gi"})
		pvc := schedulertest.PVC(schedulertest.PVCOptions{Name: "data-store-0", StorageClass: "fast", Capacity: "10Gi"})
		clientset := fake.NewSimpleClientset(&pv, &pvc)
		client := kubeclient.New(clientset)

		plan := &scheduling.VolumePlan{
			Assignments: map[string]v1.PersistentVolume{"data-store-0": pv},
		}
		Expect(scheduling.BindVolumes(ctx, client, testLog, "default", plan)).To(Succeed())

		boundPV, err := clientset.CoreV1().PersistentVolumes().Get(ctx, "pv-0", metav1.GetOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(boundPV.Spec.ClaimRef).NotTo(BeNil())
		Expect(boundPV.Spec.ClaimRef.Name).To(Equal("data-store-0"))

		boundPVC, err := clientset.CoreV1().PersistentVolumeClaims("default").Get(ctx, "data-store-0", metav1.GetOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(boundPVC.Spec.VolumeName).To(Equal("pv-0"))
	})

	It("is a no-op for a pair already correctly bound", func() {
		pv := schedulertest.PV(schedulertest.PVOptions{
			Name: "pv-0", StorageClass: "fast", Capacity: "10Gi", Phase: v1.VolumeBound,
			ClaimRef: &v1.ObjectReference{Kind: "PersistentVolumeClaim", Name: "data-store-0", Namespace: "default"},
		})
		pvc := schedulertest.PVC(schedulertest.PVCOptions{
			Name: "data-store-0", StorageClass: "fast", Capacity: "10Gi", Phase: v1.ClaimBound, VolumeName: "pv-0",
		})
		clientset := fake.NewSimpleClientset(&pv, &pvc)
		client := kubeclient.New(clientset)

		plan := &scheduling.VolumePlan{
			Assignments: map[string]v1.PersistentVolume{"data-store-0": pv},
		}
		Expect(scheduling.BindVolumes(ctx, client, testLog, "default", plan)).To(Succeed())
	})

	It("treats a nil plan as a no-op", func() {
		clientset := fake.NewSimpleClientset()
		client := kubeclient.New(clientset)
		Expect(scheduling.BindVolumes(ctx, client, testLog, "default", nil)).To(Succeed())
	})
})

var _ = Describe("CreatePodBinding", func() {
	It("submits a binding naming the target node", func() {
		pod := schedulertest.Pod(schedulertest.PodOptions{Name: "store-0"})
		clientset := fake.NewSimpleClientset(pod)
		client := kubeclient.New(clientset)
		Expect(scheduling.CreatePodBinding(ctx, client, "default", "store-0", "n1")).To(Succeed())
	})
})

var _ = Describe("conflict retry", func() {
	It("retries a 409 conflict while patching a PV and succeeds on the next attempt", func() {
		pv := schedulertest.PV(schedulertest.PVOptions{Name: "pv-0", StorageClass: "fast", Capacity: "10Gi"})
		pvc := schedulertest.PVC(schedulertest.PVCOptions{Name: "data-store-0", StorageClass: "fast", Capacity: "10Gi"})
		clientset := fake.NewSimpleClientset(&pv, &pvc)

		attempts := 0
		clientset.PrependReactor("patch", "persistentvolumes", func(action clienttesting.Action) (bool, runtime.Object, error) {
			attempts++
			if attempts == 1 {
				return true, nil, apierrors.NewConflict(schema.GroupResource{Resource: "persistentvolumes"}, "pv-0", nil)
			}
			return false, nil, nil
		})
		client := kubeclient.New(clientset)

		plan := &scheduling.VolumePlan{
			Assignments: map[string]v1.PersistentVolume{"data-store-0": pv},
		}
		Expect(scheduling.BindVolumes(ctx, client, testLog, "default", plan)).To(Succeed())
		Expect(attempts).To(Equal(2))
	})
})
