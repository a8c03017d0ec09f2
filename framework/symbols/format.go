package symbols

import (
	"regexp"
	"strings"
)

// StatusKey names the status slot hosts render the active path in.
const StatusKey = "yaml_nav"

// NothingSelected is shown when a copy is requested without an active symbol.
const NothingSelected = "nothing selected - can't copy!"

// StatusText renders the status slot for an active symbol. It is empty when
// there is none, which hosts treat as "clear the slot".
func StatusText(sym Symbol, ok bool) string {
	if !ok {
		return ""
	}
	return "YAML path: " + sym.Path
}

// CopiedText is the status shown after a path was copied.
func CopiedText(path string) string {
	return "YAML path: " + path + " - copied to clipboard!"
}

// LocaleRule drops a leading locale segment ("en.greeting.title" becomes
// "greeting.title") for files whose name matches Pattern.
type LocaleRule struct {
	Pattern *regexp.Regexp
	Enabled bool
}

// Applies reports whether the rule strips paths for filename.
func (r LocaleRule) Applies(filename string) bool {
	return r.Enabled && r.Pattern != nil && r.Pattern.MatchString(filename)
}

// Apply returns the path to copy for filename. Single-segment paths are
// returned unchanged.
func (r LocaleRule) Apply(path, filename string) string {
	if !r.Applies(filename) {
		return path
	}
	if _, rest, ok := strings.Cut(path, Separator); ok && rest != "" {
		return rest
	}
	return path
}
