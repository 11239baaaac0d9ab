package splice

import (
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/go-analyze/bulk"
)

// NewProjectExec creates a command that runs in projectDir with env applied.
func NewProjectExec(projectDir string, env []string, name string, arg ...string) *exec.Cmd {
	cmd := exec.Command(name, arg...)
	cmd.Dir = projectDir
	cmd.Env = mergeSafeEnv(env)

	return cmd
}

func mergeSafeEnv(env []string) []string {
	envKeys := make([]string, len(env)) // check for os values we want to override
	for i, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		envKeys[i] = parts[0]
	}
	safeEnv := bulk.SliceFilterInPlace(func(envVar string) bool {
		if envVar == "" || envVar == "=" || strings.HasPrefix(envVar, "LD_") {
			return false // skip unsafe
		} else if parts := strings.SplitN(envVar, "=", 2); slices.Contains(envKeys, parts[0]) {
			return false // will be overridden by custom value
		}
		return true
	}, os.Environ())
	return append(safeEnv, env...)
}

// VerifyOverlayBuild builds pkgPatterns in projectDir with the rewritten units swapped in through the overlay file.
// Binaries go to binDir. Output is streamed to stderr and returned.
func VerifyOverlayBuild(projectDir, overlayPath, binDir string, pkgPatterns ...string) ([]byte, error) {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return nil, err
	}
	args := append([]string{"build", "-overlay=" + overlayPath, "-o", binDir + string(os.PathSeparator)}, pkgPatterns...)
	cmd := NewProjectExec(projectDir, nil, "go", args...)
	lb := newLockedBuffer()
	cmd.Stdout = &teeWriter{
		one: os.Stdout,
		two: lb,
	}
	cmd.Stderr = &teeWriter{
		one: os.Stderr,
		two: lb,
	}
	err := cmd.Run()
	return lb.Bytes(), err
}
