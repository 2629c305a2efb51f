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

// Package quantity parses the CPU and memory suffix strings the orchestrator
// API returns (SI suffixes like "500m", "2", IEC suffixes like "256Mi",
// "1Gi") into exact rationals, so that scoring and capacity comparisons never
// drift through floating point.
package quantity

import (
	"fmt"
	"math/big"

	"k8s.io/apimachinery/pkg/api/resource"
)

// Parse converts a quantity string into an exact rational. It accepts
// anything resource.ParseQuantity accepts: bare integers, milli-suffixed CPU
// values ("500m"), and SI/IEC byte suffixes ("1Gi", "2048Mi", "1.5G").
func Parse(s string) (*big.Rat, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return nil, fmt.Errorf("parsing quantity %q: %w", s, err)
	}
	return toRat(q), nil
}

// MustParse is Parse but panics on error, for use with constants known to be
// valid at compile time (test fixtures, defaults).
func MustParse(s string) *big.Rat {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// FromResource converts an already-parsed apimachinery quantity into an
// exact rational, for call sites that already hold a resource.Quantity
// (container resource lists, node capacity) and don't need string parsing.
func FromResource(q resource.Quantity) *big.Rat {
	return toRat(q)
}

func toRat(q resource.Quantity) *big.Rat {
	dec := q.AsDec()
	unscaled := new(big.Int).Set(dec.UnscaledBig())
	scale := dec.Scale()
	r := new(big.Rat).SetInt(unscaled)
	if scale > 0 {
		denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
		r.Quo(r, new(big.Rat).SetInt(denom))
	} else if scale < 0 {
		mult := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-scale)), nil)
		r.Mul(r, new(big.Rat).SetInt(mult))
	}
	return r
}

// Zero is the additive identity, handy for summing optional resource
// requests where a missing value counts as zero (spec: "missing values = 0").
func Zero() *big.Rat {
	return new(big.Rat)
}

// Add returns a new rational that is the sum of a and b. Neither argument is
// mutated.
func Add(a, b *big.Rat) *big.Rat {
	return new(big.Rat).Add(a, b)
}

// Sub returns a new rational a - b.
func Sub(a, b *big.Rat) *big.Rat {
	return new(big.Rat).Sub(a, b)
}

// Cmp is a thin readability wrapper over big.Rat.Cmp for call sites that
// compare quantities without wanting to spell out *big.Rat everywhere.
func Cmp(a, b *big.Rat) int {
	return a.Cmp(b)
}
