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

	"github.com/beergeek/statefulset-scheduler/pkg/scheduling"
	"github.com/beergeek/statefulset-scheduler/pkg/schedulertest"
)

var _ = Describe("Admit", func() {
	It("admits a pending pod that names this scheduler and is owned by a stateful set", func() {
		pod := schedulertest.Pod(schedulertest.PodOptions{Name: "store-0", SchedulerName: "store-scheduler", OwnerStatefulSet: "store"})
		Expect(scheduling.Admit(ctx, pod, "store-scheduler")).To(BeTrue())
	})

	It("skips a pod naming a different scheduler", func() {
		pod := schedulertest.Pod(schedulertest.PodOptions{Name: "store-0", SchedulerName: "other", OwnerStatefulSet: "store"})
		Expect(scheduling.Admit(ctx, pod, "store-scheduler")).To(BeFalse())
	})

	It("skips a pod that is not Pending", func() {
		pod := schedulertest.Pod(schedulertest.PodOptions{Name: "store-0", SchedulerName: "store-scheduler", OwnerStatefulSet: "store", Phase: v1.PodRunning})
		Expect(scheduling.Admit(ctx, pod, "store-scheduler")).To(BeFalse())
	})

	It("skips a pod that already carries conditions", func() {
		pod := schedulertest.Pod(schedulertest.PodOptions{
			Name: "store-0", SchedulerName: "store-scheduler", OwnerStatefulSet: "store",
			Conditions: []v1.PodCondition{{Type: v1.PodScheduled}},
		})
		Expect(scheduling.Admit(ctx, pod, "store-scheduler")).To(BeFalse())
	})

	It("skips a pod not owned by a stateful set", func() {
		pod := schedulertest.Pod(schedulertest.PodOptions{Name: "lonely", SchedulerName: "store-scheduler"})
		Expect(scheduling.Admit(ctx, pod, "store-scheduler")).To(BeFalse())
	})
})
