// Package lockfile reads and writes TOML lock files for a resolution.
//
// A lock records the format version, when and for which Python version it
// was generated, the root requirements, and one entry per selected package
// with its version, dependency names, artifact URL and hash:
//
//	lock-version = "1.0"
//	generated-at = 2024-01-02T03:04:05Z
//	python-version = "3.11"
//	requirements = ["flask>=2.0"]
//
//	[[packages]]
//	  name = "flask"
//	  version = "2.3.3"
//	  dependencies = ["click"]
//	  url = "https://files.pythonhosted.org/.../flask-2.3.3-py3-none-any.whl"
//	  hash = "sha256:09c3..."
//
// [Read] validates what it decodes, so a lock that reads back cleanly can
// be fed to the resolver as constraints via [Lock.Pins].
package lockfile
