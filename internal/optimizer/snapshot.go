package optimizer

import "jsonopt/internal/pipeline"

// CallSite is a detached copy of an accessor call's literal argument. It is
// kept in build info after the syntax tree it came from has been released,
// and serialized by the persistent cache.
type CallSite struct {
	Range pipeline.Range    `json:"range"`
	Loc   pipeline.Location `json:"loc"`
	Value string            `json:"value"`
}

// Snapshot copies the literal argument of call into a CallSite. The caller
// has already checked that call has exactly one string-literal argument.
func Snapshot(call *pipeline.CallExpression) CallSite {
	arg := call.Arguments[0]
	value, _ := arg.StringValue()
	return CallSite{
		Range: arg.Range(),
		Loc:   arg.Loc(),
		Value: value,
	}
}

// sameKeys compares two key lists element by element.
func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
