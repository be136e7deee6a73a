package profile

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// expandArgv substitutes {placeholder} tokens in tpl and splits the result
// shell-style, the same way a compiler or interpreter invocation line from
// a language's task profile is expanded before exec.
func expandArgv(tpl string, vars map[string]string) []string {
	replacer := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		replacer = append(replacer, "{"+k+"}", v)
	}
	expanded := strings.NewReplacer(replacer...).Replace(tpl)
	argv, err := shlex.Split(expanded)
	if err != nil {
		// A malformed template is a programming error in a built-in
		// profile, not a runtime condition; fall back to a naive split
		// so callers still get a usable argv instead of losing the
		// command entirely.
		return strings.Fields(expanded)
	}
	return argv
}

func binName(id string) string { return fmt.Sprintf("bin_%s", id) }
