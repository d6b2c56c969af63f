package action

import (
	"strconv"
	"strings"
)

// Action is one parsed action string: an ordered list of alternative verbs
// sharing a parameter and an optional expected-result suffix.
type Action struct {
	// Verbs is the context-filtered, ordered verb list. Execution of the
	// verb list stops at the first verb whose effect reports success.
	Verbs []string
	// Param is the (not yet placeholder-expanded) parameter string, with
	// any trailing "=NN" expected-result suffix already stripped.
	Param string
	// Expected is the parsed "=NN" value: a process exit code or an HTTP
	// status code, depending on the verb.
	Expected int
	// HasExpected reports whether "=NN" was present in the raw string;
	// when false, Expected is 0 and ExpectedOrDefault supplies the verb's
	// default (0 for exit codes, 200 for http/https).
	HasExpected bool
}

// Parse splits a raw action string into its verb list and parameter per
// the grammar `verb[,verb]*[:param][=expected]`, filtering verbs against
// the allowlist for ctx. Verbs unknown to the grammar or disallowed in
// ctx are silently dropped, per spec §4.2.
func Parse(raw string, ctx Context) (*Action, error) {
	verbPart := raw
	param := ""
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		verbPart = raw[:idx]
		param = raw[idx+1:]
	}

	var verbs []string
	for _, v := range strings.Split(verbPart, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if isAllowed(ctx, v) {
			verbs = append(verbs, v)
		}
	}

	param, expected, hasExpected := splitExpected(param)

	return &Action{
		Verbs:       verbs,
		Param:       param,
		Expected:    expected,
		HasExpected: hasExpected,
	}, nil
}

// splitExpected strips a trailing "=NN" suffix, if the characters after
// the last '=' parse cleanly as an integer.
func splitExpected(param string) (string, int, bool) {
	idx := strings.LastIndexByte(param, '=')
	if idx < 0 {
		return param, 0, false
	}
	n, err := strconv.Atoi(param[idx+1:])
	if err != nil {
		return param, 0, false
	}
	return param[:idx], n, true
}

// ExpectedOrDefault resolves the expected result for a verb, applying the
// verb-specific default (0 for process exit codes, 200 for http/https).
func (a *Action) ExpectedOrDefault(verb string) int {
	if a.HasExpected {
		return a.Expected
	}
	if verb == "http" || verb == "https" {
		return 200
	}
	return 0
}

// URLFor reconstructs the full URL for an http/https verb: the verb was
// split off at the action's first colon, so the scheme separator must be
// glued back on to recover the original parameter.
func (a *Action) URLFor(verb string) string {
	return verb + ":" + a.Param
}
