// Package correction drives the iterative repair loop: generate content,
// wait for diagnostics to stabilize, classify what happened, and feed the
// failure back into the next attempt until the issues are gone, the budget
// runs out, or the request is cancelled.
package correction

// historyWindow bounds how many attempt outcomes a request keeps. Oscillation
// detection only looks at the last two; the rest exist for log output.
const historyWindow = 8

// GenerationContext carries the state of one generate/modify request through
// the correction loop. The engine owns the authoritative copy and passes it
// by value into collaborator calls, so nothing can mutate it out of band.
// Updates go through the reducer methods, which return the new value.
type GenerationContext struct {
	Instruction    string
	TargetPath     string
	Language       string
	ProjectContext string
	FileStructure  string
	History        []AttemptOutcome
	IsOscillating  bool
}

// RecordOutcome returns a copy of g with outcome appended to the bounded
// history window.
func (g GenerationContext) RecordOutcome(outcome AttemptOutcome) GenerationContext {
	history := make([]AttemptOutcome, 0, len(g.History)+1)
	history = append(history, g.History...)
	history = append(history, outcome)
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	g.History = history
	return g
}

// LastOutcome returns the most recent recorded outcome, if any.
func (g GenerationContext) LastOutcome() (AttemptOutcome, bool) {
	if len(g.History) == 0 {
		return AttemptOutcome{}, false
	}
	return g.History[len(g.History)-1], true
}

// ClearHistory returns a copy of g with the attempt history and oscillation
// flag dropped. Called on success so stale signals cannot leak into a later
// request that reuses the context.
func (g GenerationContext) ClearHistory() GenerationContext {
	g.History = nil
	g.IsOscillating = false
	return g
}
