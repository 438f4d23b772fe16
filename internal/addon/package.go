// Package addon reads and rewrites the addon's package.py and builds the
// addon package the fixtures upload to the server.
package addon

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// PackageInfo is the addon name and version from package.py. Both are empty
// when the file does not exist.
type PackageInfo struct {
	Name    string
	Version string
}

// ReadPackageInfo parses the top-level name and version assignments of package.py
func ReadPackageInfo(path string) (PackageInfo, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return PackageInfo{}, nil
	}
	if err != nil {
		return PackageInfo{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var info PackageInfo
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := assignment(line, "version"); ok {
			info.Version = v
			continue
		}
		if v, ok := assignment(line, "name"); ok {
			info.Name = v
		}
	}
	if err := scanner.Err(); err != nil {
		return PackageInfo{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return info, nil
}

// assignment matches `key = "value"` at the start of line
func assignment(line, key string) (string, bool) {
	rest, ok := strings.CutPrefix(line, key)
	if !ok {
		return "", false
	}
	rest = strings.TrimLeft(rest, " \t")
	rest, ok = strings.CutPrefix(rest, "=")
	if !ok {
		return "", false
	}
	return strings.Trim(strings.TrimSpace(rest), `"'`), true
}

// ReplaceInFile replaces every occurrence of old with new in the file
func ReplaceInFile(path, old, new string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	replaced := strings.ReplaceAll(string(data), old, new)
	if err := os.WriteFile(path, []byte(replaced), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// NewTestVersion derives a unique pre-release version such as 1.2.0-test+1a2b3c4d
func NewTestVersion(current string) (string, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("failed to generate test version: %w", err)
	}
	sum := md5.Sum(seed)
	return fmt.Sprintf("%s-test+%s", current, hex.EncodeToString(sum[:])[:8]), nil
}

// Imprint is a test version written into package.py
type Imprint struct {
	Path     string
	Original string
	Version  string

	// line is the index of the rewritten assignment, originalLine its old text
	line         int
	originalLine string
}

// ImprintTestVersion rewrites the version assignment ReadPackageInfo reads
// (the last top-level one) to a fresh test version. Call Restore to put the
// original line back.
func ImprintTestVersion(path string, info PackageInfo) (*Imprint, error) {
	if info.Version == "" {
		return nil, fmt.Errorf("cannot imprint a test version: no version found in %s", path)
	}
	test, err := NewTestVersion(info.Version)
	if err != nil {
		return nil, err
	}

	lines, perm, err := readLines(path)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, line := range lines {
		if _, ok := assignment(trimEOL(line), "version"); ok {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("cannot imprint a test version: no version assignment in %s", path)
	}

	imp := &Imprint{Path: path, Original: info.Version, Version: test, line: idx, originalLine: lines[idx]}
	lines[idx] = versionLine(test) + lines[idx][len(trimEOL(lines[idx])):]
	if err := writeLines(path, lines, perm); err != nil {
		return nil, err
	}
	return imp, nil
}

// Restore writes the original version line back
func (i *Imprint) Restore() error {
	lines, perm, err := readLines(i.Path)
	if err != nil {
		return err
	}
	want := versionLine(i.Version)
	idx := -1
	if i.line < len(lines) && trimEOL(lines[i.line]) == want {
		idx = i.line
	} else {
		// lines above were added or removed since the imprint
		for n, line := range lines {
			if trimEOL(line) == want {
				idx = n
				break
			}
		}
	}
	if idx < 0 {
		return fmt.Errorf("cannot restore %s: test version %s not found", i.Path, i.Version)
	}
	lines[idx] = i.originalLine
	return writeLines(i.Path, lines, perm)
}

func versionLine(v string) string {
	return fmt.Sprintf("version = %q", v)
}

func trimEOL(line string) string {
	return strings.TrimRight(line, "\r\n")
}

func readLines(path string) ([]string, fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.SplitAfter(string(data), "\n"), info.Mode().Perm(), nil
}

func writeLines(path string, lines []string, perm fs.FileMode) error {
	if err := os.WriteFile(path, []byte(strings.Join(lines, "")), perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
