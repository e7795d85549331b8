package executor

import (
	"fmt"
	"regexp"
	"strings"

	"fcvanalyst/internal/profile"
)

// deniedOperations are substrings that must never appear in generated
// code: process spawning, dynamic evaluation, arbitrary network or
// filesystem access. The interpreter also withholds these symbols, so the
// validator is the first of two fences.
var deniedOperations = []string{
	"os/exec",
	"exec.Command",
	"syscall.",
	"unsafe.",
	"plugin.Open",
	"net.Dial",
	"net.Listen",
	"net/http",
	"http.Get",
	"http.Post",
	"os.StartProcess",
	"os.Remove",
	"os.RemoveAll",
	"os.Exit",
	"os.Setenv",
	"interp.New",
	"reflect.",
}

// columnRef matches column references in analysis snippets: Col("name")
// and Float("name"). The frame helpers all route through these accessors.
var columnRef = regexp.MustCompile(`(?:Col|Float)\(\s*"([^"]+)"`)

// ValidateCode statically checks generated code against the schema
// snapshot's column allow-list and the operation deny-list. Returns
// ok=false with a specific reason on the first violation.
func ValidateCode(code string, snap *profile.Snapshot) (bool, string) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, "no code block found in the reply"
	}

	for _, op := range deniedOperations {
		if strings.Contains(code, op) {
			return false, fmt.Sprintf("forbidden operation %q", op)
		}
	}

	allowed := snap.AllowedColumns()
	for _, m := range columnRef.FindAllStringSubmatch(code, -1) {
		if !allowed[m[1]] {
			return false, fmt.Sprintf("column %q is not in the dataset schema", m[1])
		}
	}
	return true, ""
}
