package validation

import "fmt"

// Level indicates which stage produced the result.
type Level string

const (
	LevelSchema   Level = "schema"
	LevelScenario Level = "scenario"
	LevelCommit   Level = "commit"
	LevelImport   Level = "import"
)

// Severity indicates how critical a validation result is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Result is a single finding. SpecPath points at the offending input: a plan
// field path, an allocation index, or a CSV row and column.
type Result struct {
	Level        Level    `json:"level"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	SpecPath     string   `json:"spec_path"`
	ActualValue  any      `json:"actual_value,omitempty"`
	Expected     string   `json:"expected,omitempty"`
	ConflictWith string   `json:"conflict_with,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

// Report is the complete validation output.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []Result `json:"errors"`
	Warnings []Result `json:"warnings"`
	Info     []Result `json:"info"`
	Summary  string   `json:"summary"`
}

// NewReport creates an empty valid report.
func NewReport() *Report {
	return &Report{
		Valid:    true,
		Errors:   []Result{},
		Warnings: []Result{},
		Info:     []Result{},
	}
}

// AddError adds an error result and marks the report invalid.
func (r *Report) AddError(result Result) {
	result.Severity = SeverityError
	r.Errors = append(r.Errors, result)
	r.Valid = false
	r.updateSummary()
}

// AddWarning adds a warning result.
func (r *Report) AddWarning(result Result) {
	result.Severity = SeverityWarning
	r.Warnings = append(r.Warnings, result)
	r.updateSummary()
}

// AddInfo adds an informational result.
func (r *Report) AddInfo(result Result) {
	result.Severity = SeverityInfo
	r.Info = append(r.Info, result)
	r.updateSummary()
}

// Merge combines another report into this one. A nil report is ignored.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Info = append(r.Info, other.Info...)
	if !other.Valid {
		r.Valid = false
	}
	r.updateSummary()
}

// Empty reports whether the report carries no findings at all.
func (r *Report) Empty() bool {
	return len(r.Errors) == 0 && len(r.Warnings) == 0 && len(r.Info) == 0
}

// Messages flattens errors then warnings into plain strings.
func (r *Report) Messages() []string {
	out := make([]string, 0, len(r.Errors)+len(r.Warnings))
	for _, e := range r.Errors {
		out = append(out, e.Message)
	}
	for _, w := range r.Warnings {
		out = append(out, w.Message)
	}
	return out
}

// ByLevel returns every finding, of any severity, produced at level.
func (r *Report) ByLevel(level Level) []Result {
	var out []Result
	for _, group := range [][]Result{r.Errors, r.Warnings, r.Info} {
		for _, res := range group {
			if res.Level == level {
				out = append(out, res)
			}
		}
	}
	return out
}

func (r *Report) updateSummary() {
	r.Summary = fmt.Sprintf("%s, %s, %d info",
		plural(len(r.Errors), "error"), plural(len(r.Warnings), "warning"), len(r.Info))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
