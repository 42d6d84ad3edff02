// Package manifest reads root requirements from Python project files.
//
// Two formats are supported: pip requirement files (requirements*.txt,
// with -r includes and -c constraint files) and pyproject.toml
// [project].dependencies. [Load] detects the format from the file name.
//
// A line that fails to parse is recorded in [Manifest.Errors] and the rest
// of the file is still read; only unreadable or malformed files fail the
// whole parse.
package manifest
