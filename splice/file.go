package splice

import (
	"os"
	"path/filepath"
	"strings"
)

// FileExists reports whether the named file exists.
func FileExists(filename string) bool {
	if _, err := os.Stat(filename); err != nil {
		return !os.IsNotExist(err)
	}
	return true
}

// fileWithinDir returns true if the provided filePath is within the given directory.
func fileWithinDir(filePath, dirPath string) (bool, error) {
	absFile, err := filepath.Abs(filePath)
	if err != nil {
		return false, err
	}
	absDir, err := filepath.Abs(dirPath)
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(filepath.Clean(absDir), filepath.Clean(absFile))
	if err != nil {
		return false, err
	}
	// If rel starts with "..", file is outside the directory
	if rel == ".." || strings.HasPrefix(filepath.ToSlash(rel), "../") {
		return false, nil
	}
	return true, nil
}

// ignoredByGoTool reports whether some element of rel starts with "_" or "." or is "testdata", which keeps files
// below it out of "./..." package patterns.
func ignoredByGoTool(rel string) bool {
	for _, elem := range strings.Split(filepath.ToSlash(rel), "/") {
		if elem == "testdata" || (elem != "." && (strings.HasPrefix(elem, "_") || strings.HasPrefix(elem, "."))) {
			return true
		}
	}
	return false
}

func replaceFile(source, destination string) error {
	if _, err := os.Stat(destination); err == nil {
		if err = os.Remove(destination); err != nil {
			return err
		}
	}

	// Rename the source to the destination (requires same filesystem)
	return os.Rename(source, destination)
}

// WriteFileAtomic writes data to a temporary file next to path and renames it into place, so path either holds
// the complete data or is left as it was.
func WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	} else if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	} else if err = tmp.Close(); err != nil {
		return err
	} else if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return replaceFile(tmp.Name(), path)
}
