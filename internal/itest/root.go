//go:build integration

package itest

import (
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
)

// findRepoRoot asks the go tool for the enclosing module file.
func findRepoRoot() (string, error) {
	out, err := exec.Command("go", "env", "GOMOD").Output()
	if err != nil {
		return "", err
	}
	gomod := strings.TrimSpace(string(out))
	if gomod == "" || gomod == "/dev/null" || gomod == "NUL" {
		return "", errors.New("not inside a module")
	}
	return filepath.Dir(gomod), nil
}
