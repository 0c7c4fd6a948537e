package cmdutils

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/harness/fetch-artifact/util/common/errors"
)

const maxArgFileDepth = 16

// ExpandArgFiles replaces every "@path" argument with the lines of path, one
// argument per line. Files may reference further files. Blank lines are
// skipped and "--" stops expansion.
func ExpandArgFiles(args []string) ([]string, error) {
	return expandArgFiles(args, 0)
}

func expandArgFiles(args []string, depth int) ([]string, error) {
	if depth > maxArgFileDepth {
		return nil, errors.NewValidationError("args", fmt.Sprintf("argument files nested deeper than %d levels", maxArgFileDepth))
	}

	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		if !strings.HasPrefix(arg, "@") {
			out = append(out, arg)
			continue
		}

		lines, err := readArgFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, err
		}
		expanded, err := expandArgFiles(lines, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func readArgFile(path string) ([]string, error) {
	if path == "" {
		return nil, errors.NewValidationError("args", "'@' must be followed by a file path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewFileError(path, "open", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewFileError(path, "read", err)
	}
	return lines, nil
}
