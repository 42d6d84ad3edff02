package pep440

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseConstraint(t *testing.T) {
	tests := []struct {
		in       string
		op       Operator
		want     string
		wildcard bool
	}{
		{">=1.0", OpGreaterEqual, ">=1.0", false},
		{"== 1.2.*", OpEqual, "==1.2.*", true},
		{"!=1.5.*", OpNotEqual, "!=1.5.*", true},
		{"~=1.4.5", OpCompatible, "~=1.4.5", false},
		{"<2", OpLess, "<2", false},
		{"===foobar", OpArbitrary, "===foobar", false},
		{">1.0alpha", OpGreater, ">1.0a0", false},
	}
	for _, tt := range tests {
		c, err := ParseConstraint(tt.in)
		if err != nil {
			t.Fatalf("ParseConstraint(%q): %v", tt.in, err)
		}
		if c.Op != tt.op || c.Wildcard != tt.wildcard {
			t.Errorf("ParseConstraint(%q) = {%s wildcard=%v}, want {%s wildcard=%v}", tt.in, c.Op, c.Wildcard, tt.op, tt.wildcard)
		}
		if got := c.String(); got != tt.want {
			t.Errorf("ParseConstraint(%q).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseConstraintErrors(t *testing.T) {
	for _, in := range []string{"1.0", ">=", "~=1", ">=1.*", ""} {
		if _, err := ParseConstraint(in); !errors.Is(err, ErrInvalidConstraint) {
			t.Errorf("ParseConstraint(%q) error = %v, want ErrInvalidConstraint", in, err)
		}
	}
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		spec    string
		version string
		want    bool
	}{
		{"==1.0", "1.0.0", true},
		{"==1.0", "1.0+local", true},
		{"==1.0+local", "1.0", false},
		{"==1.2.*", "1.2.9", true},
		{"==1.2.*", "1.2", true},
		{"==1.2.*", "1.3", false},
		{"!=1.2.*", "1.3", true},
		{"!=1.0", "1.0", false},
		{"<2.0", "1.9", true},
		{"<2.0", "2.0a1", false},
		{"<2.0rc1", "2.0a1", true},
		{"<=2.0", "2.0", true},
		{">1.0", "1.0.post1", false},
		{">1.0", "1.0.1", true},
		{">1.0.post1", "1.0.post2", true},
		{">=1.0", "1.0", true},
		{">=1.0", "0.9", false},
		{"~=1.4.5", "1.4.5", true},
		{"~=1.4.5", "1.4.9", true},
		{"~=1.4.5", "1.5", false},
		{"~=1.4.5", "1.4.4", false},
		{"~=2.2", "2.9", true},
		{"~=2.2", "3.0", false},
		{"===1.0", "1.0", true},
		{"===1.0", "1.0.0", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.spec, tt.version), func(t *testing.T) {
			c, err := ParseConstraint(tt.spec)
			if err != nil {
				t.Fatal(err)
			}
			if got := Satisfies(MustParse(tt.version), c); got != tt.want {
				t.Errorf("Satisfies(%s, %s) = %v, want %v", tt.version, tt.spec, got, tt.want)
			}
		})
	}
}

func TestSpecifier(t *testing.T) {
	spec := MustParseSpecifier(">=1.4, <2, !=1.5.*")
	tests := map[string]bool{
		"1.3":   false,
		"1.4":   true,
		"1.5.2": false,
		"1.9":   true,
		"2.0":   false,
	}
	for v, want := range tests {
		if got := spec.Allows(MustParse(v)); got != want {
			t.Errorf("Allows(%s) = %v, want %v", v, got, want)
		}
	}
	if got, want := spec.String(), ">=1.4,<2,!=1.5.*"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSpecifierEmptyAllowsAll(t *testing.T) {
	spec, err := ParseSpecifier("  ")
	if err != nil {
		t.Fatal(err)
	}
	if !spec.Allows(MustParse("0.0.1a1")) {
		t.Error("empty specifier should allow everything")
	}
}

func TestSpecifierFlags(t *testing.T) {
	if !MustParseSpecifier(">=2.0b1").HasPrerelease() {
		t.Error(">=2.0b1 should name a pre-release")
	}
	if MustParseSpecifier("!=2.0b1,>=1").HasPrerelease() {
		t.Error("exclusions should not opt into pre-releases")
	}
	if !MustParseSpecifier("==1.0").Pins() || MustParseSpecifier("==1.*").Pins() {
		t.Error("Pins mismatch")
	}

	a := MustParseSpecifier(">=1")
	b := MustParseSpecifier("<2")
	both := a.And(b)
	if len(both) != 2 || len(a) != 1 || len(b) != 1 {
		t.Errorf("And should not modify inputs: %v %v %v", a, b, both)
	}
}

// Raising a lower bound never admits versions the weaker bound rejected.
func TestGreaterEqualMonotonic(t *testing.T) {
	versions := []string{"0.1", "1.0a1", "1.0", "1.0.post1", "1.2", "2.0.dev0", "2.0", "3"}
	for _, lo := range versions {
		for _, hi := range versions {
			if Compare(MustParse(lo), MustParse(hi)) > 0 {
				continue
			}
			weak := MustParseSpecifier(">=" + lo)
			strong := MustParseSpecifier(">=" + hi)
			for _, v := range versions {
				pv := MustParse(v)
				if strong.Allows(pv) && !weak.Allows(pv) {
					t.Errorf("%s allowed by >=%s but not by >=%s", v, hi, lo)
				}
			}
		}
	}
}

func ExampleSpecifier_Allows() {
	spec := MustParseSpecifier("~=1.4.5")
	for _, v := range []string{"1.4.4", "1.4.7", "1.5.0"} {
		fmt.Println(v, spec.Allows(MustParse(v)))
	}
	// Output:
	// 1.4.4 false
	// 1.4.7 true
	// 1.5.0 false
}
