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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/beergeek/statefulset-scheduler/pkg/scheduling"
	"github.com/beergeek/statefulset-scheduler/pkg/schedulertest"
)

func requiredAntiAffinity(key, value string) *v1.Affinity {
	return &v1.Affinity{
		PodAntiAffinity: &v1.PodAntiAffinity{
			RequiredDuringSchedulingIgnoredDuringExecution: []v1.PodAffinityTerm{{
				TopologyKey: "kubernetes.io/hostname",
				LabelSelector: &metav1.LabelSelector{
					MatchExpressions: []metav1.LabelSelectorRequirement{{
						Key: key, Operator: metav1.LabelSelectorOpIn, Values: []string{value},
					}},
				},
			}},
		},
	}
}

func requiredAffinity(key, value string) *v1.Affinity {
	return &v1.Affinity{
		PodAffinity: &v1.PodAffinity{
			RequiredDuringSchedulingIgnoredDuringExecution: []v1.PodAffinityTerm{{
				TopologyKey: "kubernetes.io/hostname",
				LabelSelector: &metav1.LabelSelector{
					MatchExpressions: []metav1.LabelSelectorRequirement{{
						Key: key, Operator: metav1.LabelSelectorOpIn, Values: []string{value},
					}},
				},
			}},
		},
	}
}

var _ = Describe("PodAffinityFilter", func() {
	n1 := schedulertest.Node(schedulertest.NodeOptions{Name: "n1"})
	n2 := schedulertest.Node(schedulertest.NodeOptions{Name: "n2"})
	nodes := []v1.Node{n1, n2}

	It("passes every node through when the pod carries no affinity", func() {
		pod := schedulertest.Pod(schedulertest.PodOptions{Name: "store-0"})
		out := scheduling.PodAffinityFilter(nodes, pod, nil, testLog)
		Expect(out).To(HaveLen(2))
	})

	It("rejects a node already running a conflicting pod under required anti-affinity", func() {
		pod := schedulertest.Pod(schedulertest.PodOptions{Name: "store-1", Affinity: requiredAntiAffinity("app", "store")})
		running := schedulertest.Pod(schedulertest.PodOptions{
			Name: "store-0", Phase: v1.PodRunning, NodeName: "n1", Labels: map[string]string{"app": "store"},
		})
		out := scheduling.PodAffinityFilter(nodes, pod, []v1.Pod{*running}, testLog)
		Expect(out).To(HaveLen(1))
		Expect(out[0].Name).To(Equal("n2"))
	})

	It("keeps only nodes already hosting a matching pod under required affinity", func() {
		pod := schedulertest.Pod(schedulertest.PodOptions{Name: "store-1", Affinity: requiredAffinity("app", "store")})
		running := schedulertest.Pod(schedulertest.PodOptions{
			Name: "store-0", Phase: v1.PodRunning, NodeName: "n2", Labels: map[string]string{"app": "store"},
		})
		out := scheduling.PodAffinityFilter(nodes, pod, []v1.Pod{*running}, testLog)
		Expect(out).To(HaveLen(1))
		Expect(out[0].Name).To(Equal("n2"))
	})

	It("rejects every node when required affinity names an unsupported topology key", func() {
		pod := schedulertest.Pod(schedulertest.PodOptions{Name: "store-1"})
		pod.Spec.Affinity = &v1.Affinity{
			PodAffinity: &v1.PodAffinity{
				RequiredDuringSchedulingIgnoredDuringExecution: []v1.PodAffinityTerm{{
					TopologyKey: "topology.kubernetes.io/zone",
				}},
			},
		}
		out := scheduling.PodAffinityFilter(nodes, pod, nil, testLog)
		Expect(out).To(BeEmpty())
	})

	It("skips (rather than rejects all) an anti-affinity term with an unsupported topology key", func() {
		pod := schedulertest.Pod(schedulertest.PodOptions{Name: "store-1"})
		pod.Spec.Affinity = &v1.Affinity{
			PodAntiAffinity: &v1.PodAntiAffinity{
				RequiredDuringSchedulingIgnoredDuringExecution: []v1.PodAffinityTerm{{
					TopologyKey: "topology.kubernetes.io/zone",
				}},
			},
		}
		out := scheduling.PodAffinityFilter(nodes, pod, nil, testLog)
		Expect(out).To(HaveLen(2))
	})
})
