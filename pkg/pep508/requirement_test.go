package pep508

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"Django":           "django",
		"zope.interface":   "zope-interface",
		"Foo__Bar-.baz":    "foo-bar-baz",
		"  typing_extensions ": "typing-extensions",
	}
	for in, want := range tests {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		in     string
		name   string
		extras []string
		spec   string
		marker bool
	}{
		{"requests", "requests", nil, "", false},
		{"Requests>=2.8.1", "requests", nil, ">=2.8.1", false},
		{"requests[Socks, security] >=2.8, <3", "requests", []string{"security", "socks"}, ">=2.8,<3", false},
		{"certifi (>=2017.4.17)", "certifi", nil, ">=2017.4.17", false},
		{"pywin32>=1.0 ; sys_platform == 'win32'", "pywin32", nil, ">=1.0", true},
		{"PySocks!=1.5.7,>=1.5.6; extra == 'socks'", "pysocks", nil, "!=1.5.7,>=1.5.6", true},
		{"zope.interface~=5.0", "zope-interface", nil, "~=5.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseRequirement(tt.in)
			if err != nil {
				t.Fatalf("ParseRequirement(%q): %v", tt.in, err)
			}
			if r.Name != tt.name {
				t.Errorf("Name = %q, want %q", r.Name, tt.name)
			}
			if !reflect.DeepEqual(r.Extras, tt.extras) {
				t.Errorf("Extras = %v, want %v", r.Extras, tt.extras)
			}
			if got := r.Specifier.String(); got != tt.spec {
				t.Errorf("Specifier = %q, want %q", got, tt.spec)
			}
			if (r.Marker != nil) != tt.marker {
				t.Errorf("Marker present = %v, want %v", r.Marker != nil, tt.marker)
			}
		})
	}
}

func TestParseRequirementErrors(t *testing.T) {
	bad := []string{
		"",
		">=1.0",
		"foo @ https://example.com/foo.whl",
		"foo[bar",
		"foo (>=1.0",
		"foo>=",
		"foo ; bogus_var == '1'",
		"foo ; python_version >=",
	}
	for _, in := range bad {
		if _, err := ParseRequirement(in); !errors.Is(err, ErrInvalidRequirement) {
			t.Errorf("ParseRequirement(%q) error = %v, want ErrInvalidRequirement", in, err)
		}
	}
}

func TestParseRequirementsIsolatesFailures(t *testing.T) {
	reqs, errs := ParseRequirements([]string{"a>=1", "b @ http://x", "c"})
	if len(reqs) != 2 || len(errs) != 1 {
		t.Fatalf("got %d reqs and %d errors, want 2 and 1", len(reqs), len(errs))
	}
	if reqs[0].Name != "a" || reqs[1].Name != "c" {
		t.Errorf("unexpected requirements %v", reqs)
	}
}

func TestRequirementString(t *testing.T) {
	r := MustParseRequirement("Foo_Bar[B,a] (>=1.0) ; python_version < '4'")
	if got, want := r.String(), "foo-bar[a,b]>=1.0; python_version < '4'"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if !r.HasExtra("A") || r.HasExtra("c") {
		t.Error("HasExtra mismatch")
	}
}
