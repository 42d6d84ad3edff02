package pep508

import (
	"runtime"
	"strings"
)

// DefaultPythonVersion is the target interpreter version used when none is
// configured.
const DefaultPythonVersion = "3.11"

// Environment describes the target interpreter and platform that markers
// are evaluated against.
type Environment struct {
	PythonVersion                string
	PythonFullVersion            string
	OSName                       string
	SysPlatform                  string
	PlatformSystem               string
	PlatformMachine              string
	PlatformRelease              string
	PlatformVersion              string
	PlatformPythonImplementation string
	ImplementationName           string
	ImplementationVersion        string
}

// DefaultEnvironment returns a CPython environment for the given interpreter
// version ("3.12" or "3.12.1"; empty means [DefaultPythonVersion]) with
// platform values derived from the running Go binary.
func DefaultEnvironment(pythonVersion string) Environment {
	if pythonVersion == "" {
		pythonVersion = DefaultPythonVersion
	}
	full := pythonVersion
	parts := strings.Split(pythonVersion, ".")
	if len(parts) < 3 {
		full = pythonVersion + ".0"
	}
	short := pythonVersion
	if len(parts) > 2 {
		short = strings.Join(parts[:2], ".")
	}

	env := Environment{
		PythonVersion:                short,
		PythonFullVersion:            full,
		OSName:                       "posix",
		PlatformPythonImplementation: "CPython",
		ImplementationName:           "cpython",
		ImplementationVersion:        full,
	}

	switch runtime.GOOS {
	case "windows":
		env.OSName = "nt"
		env.SysPlatform = "win32"
		env.PlatformSystem = "Windows"
	case "darwin":
		env.SysPlatform = "darwin"
		env.PlatformSystem = "Darwin"
	default:
		env.SysPlatform = runtime.GOOS
		env.PlatformSystem = strings.ToUpper(runtime.GOOS[:1]) + runtime.GOOS[1:]
	}

	switch runtime.GOARCH {
	case "amd64":
		env.PlatformMachine = "x86_64"
		if runtime.GOOS == "windows" {
			env.PlatformMachine = "AMD64"
		}
	case "arm64":
		env.PlatformMachine = "aarch64"
		if runtime.GOOS == "darwin" {
			env.PlatformMachine = "arm64"
		}
	case "386":
		env.PlatformMachine = "i686"
	default:
		env.PlatformMachine = runtime.GOARCH
	}
	return env
}

// Value returns the value of a marker variable.
func (e Environment) Value(name string) (string, bool) {
	switch canonicalVariable(name) {
	case "python_version":
		return e.PythonVersion, true
	case "python_full_version":
		return e.PythonFullVersion, true
	case "os_name":
		return e.OSName, true
	case "sys_platform":
		return e.SysPlatform, true
	case "platform_system":
		return e.PlatformSystem, true
	case "platform_machine":
		return e.PlatformMachine, true
	case "platform_release":
		return e.PlatformRelease, true
	case "platform_version":
		return e.PlatformVersion, true
	case "platform_python_implementation":
		return e.PlatformPythonImplementation, true
	case "implementation_name":
		return e.ImplementationName, true
	case "implementation_version":
		return e.ImplementationVersion, true
	}
	return "", false
}

var legacyVariables = map[string]string{
	"os.name":                        "os_name",
	"sys.platform":                   "sys_platform",
	"platform.version":               "platform_version",
	"platform.machine":               "platform_machine",
	"platform.python_implementation": "platform_python_implementation",
	"python_implementation":          "platform_python_implementation",
}

func canonicalVariable(name string) string {
	if n, ok := legacyVariables[name]; ok {
		return n
	}
	return name
}

func knownVariable(name string) bool {
	if canonicalVariable(name) == "extra" {
		return true
	}
	_, ok := Environment{}.Value(name)
	return ok
}
