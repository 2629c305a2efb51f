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
	"github.com/samber/lo"
	v1 "k8s.io/api/core/v1"
)

// operator is a closed, tagged-sum type over the requirement operators this
// scheduler evaluates. Unsupported is a fifth tag reserved for the Gt/Lt
// operators, which are explicitly refused: it deterministically fails
// closed rather than panicking or silently matching everything.
type operator int

const (
	opIn operator = iota
	opNotIn
	opExists
	opDoesNotExist
	opUnsupported
)

func operatorFrom(o v1.NodeSelectorOperator) operator {
	switch o {
	case v1.NodeSelectorOpIn:
		return opIn
	case v1.NodeSelectorOpNotIn:
		return opNotIn
	case v1.NodeSelectorOpExists:
		return opExists
	case v1.NodeSelectorOpDoesNotExist:
		return opDoesNotExist
	default:
		return opUnsupported
	}
}

// MatchExpression is a single (key, operator, values) clause, as carried on
// both pod-affinity label selectors and PV node-affinity terms.
type MatchExpression struct {
	Key      string
	Operator operator
	Values   []string
}

func NewMatchExpression(key string, op v1.NodeSelectorOperator, values ...string) MatchExpression {
	return MatchExpression{Key: key, Operator: operatorFrom(op), Values: values}
}

// MatchesLabels reports whether expr is satisfied by the given label set,
// implementing the four supported operators plus the fail-closed fifth.
func (expr MatchExpression) MatchesLabels(labels map[string]string) bool {
	v, present := labels[expr.Key]
	switch expr.Operator {
	case opIn:
		return present && lo.Contains(expr.Values, v)
	case opNotIn:
		return present && !lo.Contains(expr.Values, v)
	case opExists:
		return present
	case opDoesNotExist:
		return !present
	default:
		return false
	}
}
