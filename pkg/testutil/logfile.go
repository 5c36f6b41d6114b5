package testutil

import (
	"fmt"
	"os"
	"strings"
)

// WriteLogFile writes newline-terminated lines to path, replacing any
// existing file (a new file means a new inode, so this doubles as a
// rotation in tests)
func WriteLogFile(path string, lines ...string) error {
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write log file %s: %w", path, err)
	}
	return nil
}

// AppendLogLines appends newline-terminated lines to an existing file
func AppendLogLines(path string, lines ...string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("failed to append to log file %s: %w", path, err)
		}
	}
	return nil
}

// RotateLogFile replaces the file at path with a brand-new file holding
// the given lines. The replacement is created while the original still
// exists so it is guaranteed a different inode, then renamed over it.
func RotateLogFile(path string, lines ...string) error {
	replacement := path + ".rotated"
	if err := WriteLogFile(replacement, lines...); err != nil {
		return err
	}
	if err := os.Rename(replacement, path); err != nil {
		return fmt.Errorf("failed to rotate log file %s: %w", path, err)
	}
	return nil
}
