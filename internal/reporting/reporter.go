// internal/reporting/reporter.go
package reporting

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/marketcheck/internal/config"
)

// Reporter collects the steps, attachments and assertion outcomes of one
// test case. Implementations must be safe for concurrent use.
type Reporter interface {
	// Attach stores an artifact such as a screenshot.
	Attach(name, mimeType string, data []byte) error
	// Step records the start of a named workflow step.
	Step(description string)
	// Assertion records the outcome of one check.
	Assertion(passed bool, label, failureMessage string)
	// Finish finalizes the report. runErr is a fatal error that stopped the case, if any.
	Finish(passed bool, runErr error) error
}

// Status is the final state of a case.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	// StatusBroken marks a case that stopped on an error before its checks ran.
	StatusBroken Status = "broken"
)

// StatusOf maps a verification outcome and a fatal error to a Status.
func StatusOf(passed bool, runErr error) Status {
	switch {
	case runErr != nil:
		return StatusBroken
	case passed:
		return StatusPassed
	default:
		return StatusFailed
	}
}

// New creates the reporter for one case according to cfg.
func New(cfg config.ReportConfig, caseName string, logger *zap.Logger) (Reporter, error) {
	return NewDirectory(cfg.Dir, caseName, cfg.Screenshots, logger)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Attach(string, string, []byte) error { return nil }
func (Nop) Step(string)                         {}
func (Nop) Assertion(bool, string, string)      {}
func (Nop) Finish(bool, error) error            { return nil }
