// internal/verify/result.go
package verify

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Check names.
const (
	CheckNamePresence   = "presence"
	CheckNamePriceRange = "price range"
	CheckNameBrands     = "brands"
	CheckNameCount      = "count"
	CheckNameTitle      = "title"
)

// Outcome is the result of one independent check.
type Outcome struct {
	Check   string `json:"check"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
	// Violations names each offending product, if the check inspects products.
	Violations []string `json:"violations,omitempty"`
}

func pass(check string) Outcome { return Outcome{Check: check, Passed: true} }

// CheckError is the error form of a failed Outcome.
type CheckError struct {
	Outcome Outcome
}

func (e *CheckError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s check failed: %s", e.Outcome.Check, e.Outcome.Message)
	for _, v := range e.Outcome.Violations {
		b.WriteString("\n    - ")
		b.WriteString(v)
	}
	return b.String()
}

// Result collects the outcomes of every check in a run. Failing checks never
// stop later ones; the caller inspects the whole collection at the end.
type Result struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Add appends an outcome.
func (r *Result) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Passed reports whether every check passed.
func (r *Result) Passed() bool {
	for _, o := range r.Outcomes {
		if !o.Passed {
			return false
		}
	}
	return true
}

// Failures returns the failed outcomes in check order.
func (r *Result) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Passed {
			out = append(out, o)
		}
	}
	return out
}

// Err combines every failure into one error, or returns nil when all checks
// passed. multierr.Errors recovers the individual *CheckError values.
func (r *Result) Err() error {
	var err error
	for _, o := range r.Failures() {
		err = multierr.Append(err, &CheckError{Outcome: o})
	}
	return err
}

// Summary renders every failure in one human readable message.
func (r *Result) Summary() string {
	failures := r.Failures()
	if len(failures) == 0 {
		return fmt.Sprintf("all %d checks passed", len(r.Outcomes))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d checks failed:", len(failures), len(r.Outcomes))
	for _, o := range failures {
		b.WriteString("\n  ")
		b.WriteString((&CheckError{Outcome: o}).Error())
	}
	return b.String()
}
