package verifier

import (
	"regexp"
	"strconv"
	"strings"
)

// ErrorTypeTimeout marks a run that hit the verification timeout. Timeout
// outputs carry no counterexample; callers must not mine one out of them.
const ErrorTypeTimeout = "timeout"

// Location is the first violation site reported by the verifier.
type Location struct {
	File     string
	Line     int
	Column   int
	Function string
}

// Output is the immutable record of one verifier run.
type Output struct {
	// Successful is true when no violation was found.
	Successful bool
	// RawOutput is the full unparsed tool output.
	RawOutput string
	// ErrorType is the category of the first violation (e.g. "dereference
	// failure: array bounds violated"). Empty when successful or when the
	// output could not be parsed.
	ErrorType string
	// Location is the first violation site, when parseable.
	Location *Location
}

// ErrorLine returns the line of the first violation, or 0 when unknown.
func (o Output) ErrorLine() int {
	if o.Location == nil {
		return 0
	}
	return o.Location.Line
}

// Counterexample returns the output from "[Counterexample]" onward, or ""
// when none is present or the run timed out.
func (o Output) Counterexample() string {
	if o.ErrorType == ErrorTypeTimeout {
		return ""
	}
	idx := strings.Index(o.RawOutput, counterexampleMarker)
	if idx == -1 {
		return ""
	}
	return o.RawOutput[idx:]
}

// ViolatedProperty returns the three-line "Violated property:" block, or ""
// when none is present or the run timed out.
func (o Output) ViolatedProperty() string {
	if o.ErrorType == ErrorTypeTimeout {
		return ""
	}
	lines := strings.Split(o.RawOutput, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != violatedPropertyMarker {
			continue
		}
		end := i + 3
		if end > len(lines) {
			end = len(lines)
		}
		return strings.Join(lines[i:end], "\n")
	}
	return ""
}

const (
	counterexampleMarker   = "[Counterexample]"
	violatedPropertyMarker = "Violated property:"

	parseErrorMarker = "ERROR: PARSING ERROR"
	timedOutMarker   = "ERROR: Timed out"
)

// locationRe matches the violation site line inside a violated property
// block, e.g. "  file main.c line 7 column 7 function buggy_bubble_sort".
var locationRe = regexp.MustCompile(`file (\S+) line (\d+)(?: column (\d+))?(?: function (\S+))?`)

// clangErrorRe matches compiler diagnostics for sources that do not parse,
// e.g. "main.c:12:5: error: expected ';'".
var clangErrorRe = regexp.MustCompile(`^([^\s:]+\.(?:c|cpp|cc|h|hpp)):(\d+):(\d+): (?:fatal )?error:`)

// ParseESBMC builds an Output from one ESBMC invocation. Exit code 0 means
// no violation; anything the parser cannot make sense of is conservatively
// treated as a failure with only the raw text retained.
func ParseESBMC(exitCode int, raw string) Output {
	out := Output{
		Successful: exitCode == 0,
		RawOutput:  raw,
	}
	if out.Successful {
		return out
	}

	if strings.Contains(raw, timedOutMarker) {
		out.ErrorType = ErrorTypeTimeout
		return out
	}

	if errType, loc := parseViolatedProperty(raw); errType != "" {
		out.ErrorType = errType
		out.Location = loc
		return out
	}

	// Sources that fail to compile never reach the BMC stage; fall back to
	// the frontend diagnostic for a location.
	if loc := parseClangError(raw); loc != nil {
		out.ErrorType = "compilation error"
		out.Location = loc
		return out
	}

	return out
}

// parseViolatedProperty extracts the error category and site from the first
// "Violated property:" block. The block layout is: marker line, location
// line, then the violation description.
func parseViolatedProperty(raw string) (string, *Location) {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != violatedPropertyMarker {
			continue
		}
		var loc *Location
		if i+1 < len(lines) {
			loc = parseLocationLine(lines[i+1])
		}
		if i+2 < len(lines) {
			if errType := strings.TrimSpace(lines[i+2]); errType != "" {
				return errType, loc
			}
		}
		return "", loc
	}
	return "", nil
}

func parseLocationLine(line string) *Location {
	m := locationRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	loc := &Location{File: m[1], Function: m[4]}
	loc.Line, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		loc.Column, _ = strconv.Atoi(m[3])
	}
	return loc
}

func parseClangError(raw string) *Location {
	for _, line := range strings.Split(raw, "\n") {
		m := clangErrorRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		loc := &Location{File: m[1]}
		loc.Line, _ = strconv.Atoi(m[2])
		loc.Column, _ = strconv.Atoi(m[3])
		return loc
	}
	return nil
}
