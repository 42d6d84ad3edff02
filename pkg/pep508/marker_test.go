package pep508

import (
	"reflect"
	"testing"
)

func testEnv() Environment {
	return Environment{
		PythonVersion:                "3.11",
		PythonFullVersion:            "3.11.4",
		OSName:                       "posix",
		SysPlatform:                  "linux",
		PlatformSystem:               "Linux",
		PlatformMachine:              "x86_64",
		PlatformPythonImplementation: "CPython",
		ImplementationName:           "cpython",
		ImplementationVersion:        "3.11.4",
	}
}

func TestMarkerEvaluate(t *testing.T) {
	tests := []struct {
		marker string
		extras []string
		want   bool
	}{
		{`python_version >= "3.8"`, nil, true},
		{`python_version < "3.8"`, nil, false},
		{`python_version > "3.9"`, nil, true},
		{`'3.8' <= python_version`, nil, true},
		{`python_full_version >= "3.11.2"`, nil, true},
		{`python_version == "3.*"`, nil, true},
		{`sys_platform == "win32"`, nil, false},
		{`sys_platform != "win32" and os_name == "posix"`, nil, true},
		{`sys_platform == "win32" or platform_system == "Linux"`, nil, true},
		{`(sys_platform == "win32" or sys_platform == "darwin") and python_version >= "3"`, nil, false},
		{`"linux" in sys_platform`, nil, true},
		{`platform_machine not in "arm64 aarch64"`, nil, true},
		{`extra == "socks"`, nil, false},
		{`extra == "socks"`, []string{"socks"}, true},
		{`extra == "Socks_Proxy"`, []string{"socks-proxy"}, true},
		{`extra != "test"`, []string{"docs"}, true},
		{`python_version >= "3.8" and extra == "cli"`, []string{"cli"}, true},
		{`os.name == "posix"`, nil, true},
		{`implementation_name == "pypy"`, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.marker, func(t *testing.T) {
			m, err := ParseMarker(tt.marker)
			if err != nil {
				t.Fatalf("ParseMarker(%q): %v", tt.marker, err)
			}
			if got := m.Evaluate(testEnv(), tt.extras); got != tt.want {
				t.Errorf("Evaluate(%q, %v) = %v, want %v", tt.marker, tt.extras, got, tt.want)
			}
		})
	}
}

func TestParseMarkerErrors(t *testing.T) {
	bad := []string{
		``,
		`python_version`,
		`python_version >= `,
		`python_version >= "3.8" and`,
		`(python_version >= "3.8"`,
		`python_version <> "3"`,
		`python_version == python_full_version`,
		`"unterminated == python_version`,
		`foo == "bar"`,
	}
	for _, in := range bad {
		if _, err := ParseMarker(in); err == nil {
			t.Errorf("ParseMarker(%q) expected error", in)
		}
	}
}

func TestMarkerExtras(t *testing.T) {
	m, err := ParseMarker(`extra == "a" or ("b" == extra and python_version > "3")`)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := m.Extras(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Extras() = %v, want %v", got, want)
	}
}

func TestRequirementAppliesTo(t *testing.T) {
	env := testEnv()
	if !MustParseRequirement("foo").AppliesTo(env, nil) {
		t.Error("requirement without marker should apply")
	}
	r := MustParseRequirement(`colorama ; platform_system == "Windows"`)
	if r.AppliesTo(env, nil) {
		t.Error("windows-only requirement should not apply on linux")
	}
}

func TestDefaultEnvironment(t *testing.T) {
	env := DefaultEnvironment("")
	if env.PythonVersion != "3.11" || env.PythonFullVersion != "3.11.0" {
		t.Errorf("default python = %s/%s", env.PythonVersion, env.PythonFullVersion)
	}
	env = DefaultEnvironment("3.12.1")
	if env.PythonVersion != "3.12" || env.PythonFullVersion != "3.12.1" {
		t.Errorf("python = %s/%s, want 3.12/3.12.1", env.PythonVersion, env.PythonFullVersion)
	}
	if env.SysPlatform == "" || env.PlatformMachine == "" {
		t.Error("platform values should be derived from the runtime")
	}
}
