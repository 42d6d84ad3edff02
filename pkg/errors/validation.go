package errors

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// ValidatePackageName rejects names that could be used for path traversal
// or injection when they end up in cache keys, URLs or file names:
//   - No empty names
//   - No control characters or null bytes
//   - No path traversal sequences (.., //, backslash)
//   - Maximum length of 256 characters
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidPackage, "package name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPackage, "package name contains invalid control characters")
		}
	}

	for _, pattern := range []string{"..", "//", "\x00", "\\"} {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidPackage, "package name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

var pythonPackageNameRegex = regexp.MustCompile(`^([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9._-]*[A-Za-z0-9])$`)

// ValidatePythonPackageName validates a project name against the PEP 508
// name grammar.
func ValidatePythonPackageName(name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}

	if !pythonPackageNameRegex.MatchString(name) {
		return New(ErrCodeInvalidPackage, "invalid Python package name: %q", name)
	}

	return nil
}

// ValidateIndexURL checks that a package index base URL is absolute and
// uses http or https.
func ValidateIndexURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "index URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid index URL %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidInput, "index URL must use http or https scheme")
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "index URL must include a host")
	}
	return nil
}

// ValidateInputFile checks a requirements or manifest path given on the
// command line. Only the base name is inspected, since users legitimately
// pass absolute and relative paths.
func ValidateInputFile(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "input file cannot be empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return New(ErrCodeInvalidPath, "input file contains invalid characters")
	}
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) {
		return New(ErrCodeInvalidPath, "input file %q is a directory", path)
	}
	return nil
}
