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
	"k8s.io/client-go/kubernetes/fake"

	"github.com/beergeek/statefulset-scheduler/pkg/kubeclient"
	"github.com/beergeek/statefulset-scheduler/pkg/scheduling"
	"github.com/beergeek/statefulset-scheduler/pkg/schedulertest"
)

var _ = Describe("InspectStatefulSet", func() {
	It("returns the replica count and volume claim templates of a known set", func() {
		tmpl := schedulertest.VolumeClaimTemplate("data", "fast", "10Gi")
		ss := schedulertest.StatefulSet(schedulertest.StatefulSetOptions{
			Name: "store", Namespace: "default", Replicas: 3,
			VolumeClaimTemplates: []v1.PersistentVolumeClaim{tmpl},
		})
		clientset := fake.NewSimpleClientset(&ss)
		client := kubeclient.New(clientset)

		replicas, templates, err := scheduling.InspectStatefulSet(ctx, client, "default", "store")
		Expect(err).NotTo(HaveOccurred())
		Expect(replicas).NotTo(BeNil())
		Expect(*replicas).To(Equal(int32(3)))
		Expect(templates).To(HaveLen(1))
		Expect(templates[0].Name).To(Equal("data"))
	})

	It("returns nil replicas for an unknown set rather than an error", func() {
		clientset := fake.NewSimpleClientset()
		client := kubeclient.New(clientset)

		replicas, templates, err := scheduling.InspectStatefulSet(ctx, client, "default", "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(replicas).To(BeNil())
		Expect(templates).To(BeNil())
	})
})
