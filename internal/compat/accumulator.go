package compat

// accumulator collects findings for one resolution pass. In short-circuit mode it is
// full after the first finding.
type accumulator struct {
	stopOnFirst bool
	findings    []Finding
}

func newAccumulator(stopOnFirst bool) *accumulator {
	return &accumulator{stopOnFirst: stopOnFirst}
}

func (a *accumulator) add(f Finding) {
	if a.done() {
		return
	}
	a.findings = append(a.findings, f)
}

// done reports whether the walk may stop
func (a *accumulator) done() bool {
	return a.stopOnFirst && len(a.findings) > 0
}

func (a *accumulator) count() int {
	return len(a.findings)
}

func (a *accumulator) result() []Finding {
	if a.findings == nil {
		return []Finding{}
	}
	return a.findings
}
