// internal/reporting/directory.go
package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// ResultFile is the name of the JSON summary written into every report directory.
const ResultFile = "result.json"

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Result is the JSON document describing one case.
type Result struct {
	UUID        string       `json:"uuid"`
	Name        string       `json:"name"`
	Status      Status       `json:"status"`
	Error       string       `json:"error,omitempty"`
	Start       time.Time    `json:"start"`
	Stop        time.Time    `json:"stop"`
	Steps       []Step       `json:"steps"`
	Attachments []Attachment `json:"attachments"`
	Assertions  []Assertion  `json:"assertions"`
}

// Step is a named workflow step.
type Step struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
}

// Attachment references a file stored next to the result.
type Attachment struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Source string `json:"source"`
}

// Assertion is one recorded check outcome.
type Assertion struct {
	Label   string `json:"label"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Directory writes a case report into its own directory: attachments as
// <uuid>-attachment.<ext> files and a result.json summary.
type Directory struct {
	dir         string
	attachments bool
	logger      *zap.Logger

	mu       sync.Mutex
	result   Result
	finished bool
}

// NewDirectory creates <baseDir>/<caseName>-<uuid>. When attachments is
// false, Attach accepts and drops artifacts.
func NewDirectory(baseDir, caseName string, attachments bool, logger *zap.Logger) (*Directory, error) {
	id := uuid.New().String()
	slug := strings.Trim(unsafeNameChars.ReplaceAllString(caseName, "-"), "-")
	if slug == "" {
		slug = "case"
	}
	dir := filepath.Join(baseDir, slug+"-"+id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	return &Directory{
		dir:         dir,
		attachments: attachments,
		logger:      logger.Named("report").With(zap.String("case", caseName)),
		result: Result{
			UUID:        id,
			Name:        caseName,
			Start:       time.Now(),
			Steps:       []Step{},
			Attachments: []Attachment{},
			Assertions:  []Assertion{},
		},
	}, nil
}

// Dir returns the report directory.
func (d *Directory) Dir() string { return d.dir }

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "application/json":
		return "json"
	case "text/html":
		return "html"
	default:
		return "txt"
	}
}

func (d *Directory) Attach(name, mimeType string, data []byte) error {
	if !d.attachments {
		return nil
	}
	source := fmt.Sprintf("%s-attachment.%s", uuid.New().String(), extensionFor(mimeType))
	if err := os.WriteFile(filepath.Join(d.dir, source), data, 0o644); err != nil {
		return fmt.Errorf("failed to write attachment %q: %w", name, err)
	}

	d.mu.Lock()
	d.result.Attachments = append(d.result.Attachments, Attachment{Name: name, Type: mimeType, Source: source})
	d.mu.Unlock()
	return nil
}

func (d *Directory) Step(description string) {
	d.logger.Info(description)
	d.mu.Lock()
	d.result.Steps = append(d.result.Steps, Step{Name: description, Start: time.Now()})
	d.mu.Unlock()
}

func (d *Directory) Assertion(passed bool, label, failureMessage string) {
	if passed {
		d.logger.Debug("Check passed.", zap.String("check", label))
		failureMessage = ""
	} else {
		d.logger.Warn("Check failed.", zap.String("check", label), zap.String("reason", failureMessage))
	}
	d.mu.Lock()
	d.result.Assertions = append(d.result.Assertions, Assertion{Label: label, Passed: passed, Message: failureMessage})
	d.mu.Unlock()
}

// Finish writes result.json. Calling it again is a no-op.
func (d *Directory) Finish(passed bool, runErr error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finished {
		return nil
	}
	d.finished = true

	d.result.Stop = time.Now()
	d.result.Status = StatusOf(passed, runErr)
	if runErr != nil {
		d.result.Error = runErr.Error()
	}

	data, err := json.MarshalIndent(d.result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	path := filepath.Join(d.dir, ResultFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	d.logger.Info("Report written.", zap.String("path", path), zap.String("status", string(d.result.Status)))
	return nil
}

// ReadResult loads the result.json stored in dir.
func ReadResult(dir string) (*Result, error) {
	data, err := os.ReadFile(filepath.Join(dir, ResultFile))
	if err != nil {
		return nil, err
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ResultFile, err)
	}
	return &r, nil
}
