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

	"github.com/beergeek/statefulset-scheduler/pkg/scheduling"
)

var _ = Describe("PodOrdinal", func() {
	It("extracts the trailing ordinal", func() {
		o, err := scheduling.PodOrdinal("store-2")
		Expect(err).NotTo(HaveOccurred())
		Expect(o).To(Equal(2))
	})

	It("rejects names with no ordinal suffix", func() {
		_, err := scheduling.PodOrdinal("store-")
		Expect(err).To(HaveOccurred())
		_, err = scheduling.PodOrdinal("store")
		Expect(err).To(HaveOccurred())
	})

	It("rejects a non-numeric suffix", func() {
		_, err := scheduling.PodOrdinal("store-abc")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ChooseDataCentre", func() {
	primary := []string{"dc1", "dc2"}
	nonPrimary := []string{"dc3"}

	It("round-robins primary replicas across the primary list", func() {
		dc, err := scheduling.ChooseDataCentre(0, 3, primary, nonPrimary)
		Expect(err).NotTo(HaveOccurred())
		Expect(dc).To(Equal("dc1"))

		dc, err = scheduling.ChooseDataCentre(1, 3, primary, nonPrimary)
		Expect(err).NotTo(HaveOccurred())
		Expect(dc).To(Equal("dc2"))
	})

	It("wraps around the primary list for higher ordinals", func() {
		dc, err := scheduling.ChooseDataCentre(2, 5, primary, nonPrimary)
		Expect(err).NotTo(HaveOccurred())
		Expect(dc).To(Equal("dc1"))
	})

	It("places the final replica (the arbiter) in a non-primary data centre", func() {
		dc, err := scheduling.ChooseDataCentre(2, 3, primary, nonPrimary)
		Expect(err).NotTo(HaveOccurred())
		Expect(dc).To(Equal("dc3"))
	})

	It("errors when no primary data centres are configured", func() {
		_, err := scheduling.ChooseDataCentre(0, 3, nil, nonPrimary)
		Expect(err).To(HaveOccurred())
	})

	It("errors when no non-primary data centres are configured", func() {
		_, err := scheduling.ChooseDataCentre(2, 3, primary, nil)
		Expect(err).To(HaveOccurred())
	})
})
