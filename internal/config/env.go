package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvPolicy is the resolved effect of the environment variables bfind
// honors: `PATH` for -exec argv resolution, `POSIXLY_CORRECT` to disable
// GNU-only primitives, `NO_COLOR`/`LS_COLORS` for -ls/-fls coloring
// (recorded here; no renderer reads them), and `PAGER` for any future
// interactive output.
type EnvPolicy struct {
	Path           string
	POSIXLYCorrect bool
	NoColor        bool
	LSColors       string
	Pager          string
}

// LoadEnvPolicy reads the policy from the process environment.
// `NO_COLOR` and `LS_COLORS` are recorded independently; nothing here
// resolves one against the other.
func LoadEnvPolicy() EnvPolicy {
	_, posix := os.LookupEnv("POSIXLY_CORRECT")
	noColor := envTruthy("NO_COLOR")
	return EnvPolicy{
		Path:           os.Getenv("PATH"),
		POSIXLYCorrect: posix,
		NoColor:        noColor,
		LSColors:       os.Getenv("LS_COLORS"),
		Pager:          os.Getenv("PAGER"),
	}
}

// envTruthy follows NO_COLOR's own spec: any non-empty value disables
// color, including "0", unlike most other boolean env vars.
func envTruthy(name string) bool {
	v, ok := os.LookupEnv(name)
	return ok && v != ""
}

// parseBoolEnv reads a boolean variable with strconv.ParseBool, so
// "0"/"false" are off, unlike NO_COLOR; an unset or unparsable value
// yields def. Nothing in the package calls it.
func parseBoolEnv(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}
