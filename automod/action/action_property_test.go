package action

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genAction() gopter.Gen {
	return gen.IntRange(int(None), int(Ban)).Map(func(v int) Action { return Action(v) })
}

func TestActionLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("escalation never lowers severity", prop.ForAll(
		func(a Action) bool {
			return Severity(Escalate(a)) >= Severity(a)
		},
		genAction(),
	))

	properties.Property("from-severity is monotone", prop.ForAll(
		func(a, b int) bool {
			if a > b {
				a, b = b, a
			}
			return Severity(FromSeverity(a)) <= Severity(FromSeverity(b))
		},
		gen.IntRange(-10, 15),
		gen.IntRange(-10, 15),
	))

	properties.Property("combine never drops below either input", prop.ForAll(
		func(a, b Action) bool {
			out := Combine(a, b)
			return Severity(out) >= Severity(a) && Severity(out) >= Severity(b)
		},
		genAction(),
		genAction(),
	))

	properties.Property("max is commutative", prop.ForAll(
		func(a, b Action) bool {
			return Max(a, b) == Max(b, a)
		},
		genAction(),
		genAction(),
	))

	properties.TestingRun(t)
}
