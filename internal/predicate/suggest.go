package predicate

import (
	"github.com/hbollon/go-edlib"
)

// primitiveNames lists every flag-form primitive the grammar
// recognizes, for typo suggestions only; it has no bearing on parsing
// itself (internal/cli owns the actual grammar).
var primitiveNames = []string{
	"-name", "-iname", "-path", "-ipath", "-wholename", "-iwholename", "-lname", "-ilname",
	"-regex", "-iregex",
	"-type", "-xtype",
	"-perm",
	"-size", "-depth", "-mindepth", "-maxdepth",
	"-atime", "-mtime", "-ctime", "-amin", "-mmin", "-cmin", "-newer", "-used",
	"-links", "-inum", "-uid", "-gid", "-user", "-group", "-nouser", "-nogroup",
	"-readable", "-writable", "-executable",
	"-samefile",
	"-print", "-print0", "-printf", "-fprint", "-fprint0", "-fprintf", "-fls",
	"-exec", "-execdir", "-ok", "-okdir",
	"-delete", "-prune", "-quit", "-exit", "-true", "-false",
	"-empty", "-hidden", "-acl", "-capable", "-nouser", "-nogroup", "-sparse", "-xattr",
}

// suggestThreshold is the minimum Levenshtein similarity (1.0 - normalized
// distance) a candidate must clear before it is offered as a suggestion;
// below it, a typo is different enough from every known primitive that
// guessing would likely mislead rather than help.
const suggestThreshold = 0.6

// Suggest finds the known primitive name closest to the unrecognized
// token name, for internal/cli's parse-error diagnostics: "-nmae"
// should suggest "-name" rather than a bare parse error. It
// reports ok=false when nothing clears the similarity floor.
func Suggest(name string) (string, bool) {
	best := ""
	bestScore := 0.0
	for _, candidate := range primitiveNames {
		score, err := edlib.StringsSimilarity(name, candidate, edlib.Levenshtein)
		if err != nil {
			continue
		}
		if float64(score) > bestScore {
			bestScore = float64(score)
			best = candidate
		}
	}
	if bestScore < suggestThreshold {
		return "", false
	}
	return best, true
}
