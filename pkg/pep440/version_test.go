package pep440

import (
	"errors"
	"reflect"
	"sort"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.0", "1.0"},
		{"v1.2.3", "1.2.3"},
		{"1.0a1", "1.0a1"},
		{"1.0alpha1", "1.0a1"},
		{"1.0-beta.2", "1.0b2"},
		{"1.0c1", "1.0rc1"},
		{"1.0preview3", "1.0rc3"},
		{"1.0rc", "1.0rc0"},
		{"1.0-1", "1.0.post1"},
		{"1.0.rev2", "1.0.post2"},
		{"1.0.post", "1.0.post0"},
		{"1.0.dev", "1.0.dev0"},
		{"1.0a1.dev2", "1.0a1.dev2"},
		{"2!1.0", "2!1.0"},
		{"1.0+Ubuntu-1", "1.0+ubuntu.1"},
		{"  1.1  ", "1.1"},
		{"1.0.0.0.0", "1.0.0.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got := v.String(); got != tt.want {
				t.Errorf("Parse(%q).String() = %q, want %q", tt.in, got, tt.want)
			}
			if v.IsLenient() {
				t.Errorf("Parse(%q) unexpectedly lenient", tt.in)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n"} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidVersion", in, err)
		}
	}
}

func TestParseLenient(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"2004d", []int{2004}},
		{"1.2-final-3", []int{1, 2, 3}},
		{"release", []int{0}},
		{"0.9.x", []int{0, 9}},
	}
	for _, tt := range tests {
		v, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if !v.IsLenient() {
			t.Errorf("Parse(%q) should be lenient", tt.in)
		}
		if !reflect.DeepEqual(v.Release, tt.want) {
			t.Errorf("Parse(%q).Release = %v, want %v", tt.in, v.Release, tt.want)
		}
	}
}

func TestCompareOrdering(t *testing.T) {
	// Strictly increasing.
	ordered := []string{
		"1.0.dev0",
		"1.0a1.dev0",
		"1.0a1",
		"1.0a2",
		"1.0b1",
		"1.0rc1",
		"1.0",
		"1.0.post1.dev0",
		"1.0.post1",
		"1.0.1",
		"1.1.dev0",
		"1.1",
		"2.0",
		"1!0.1",
	}
	for i := range ordered {
		for j := range ordered {
			a, b := MustParse(ordered[i]), MustParse(ordered[j])
			want := cmpInt(i, j)
			if got := Compare(a, b); got != want {
				t.Errorf("Compare(%s, %s) = %d, want %d", ordered[i], ordered[j], got, want)
			}
		}
	}
}

func TestCompareEquivalence(t *testing.T) {
	tests := [][2]string{
		{"1.0", "1.0.0"},
		{"1.0", "1.0+local"},
		{"v1.0", "1.0"},
		{"1.0alpha1", "1.0a1"},
		{"0!1.0", "1.0"},
	}
	for _, tt := range tests {
		if c := Compare(MustParse(tt[0]), MustParse(tt[1])); c != 0 {
			t.Errorf("Compare(%s, %s) = %d, want 0", tt[0], tt[1], c)
		}
	}
}

func TestCompareTotalOrder(t *testing.T) {
	raw := []string{
		"1.0", "1.0.0", "0.9", "1.0rc1", "1.0.post2", "2!0.1", "1.0.dev3",
		"1.10", "1.9", "1.0+abc", "3", "1.0b2.post1", "weird-1.4",
	}
	vs := make([]Version, len(raw))
	for i, s := range raw {
		vs[i] = MustParse(s)
	}

	for _, a := range vs {
		for _, b := range vs {
			if Compare(a, b) != -Compare(b, a) {
				t.Errorf("antisymmetry violated for %s, %s", a, b)
			}
			for _, c := range vs {
				if Compare(a, b) <= 0 && Compare(b, c) <= 0 && Compare(a, c) > 0 {
					t.Errorf("transitivity violated for %s <= %s <= %s", a, b, c)
				}
			}
		}
	}

	sort.Slice(vs, func(i, j int) bool { return Compare(vs[i], vs[j]) < 0 })
	if vs[len(vs)-1].Epoch != 2 {
		t.Errorf("epoch version should sort last, got %s", vs[len(vs)-1])
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"1.0", "1.0.0", "2!3.4.5", "1.0a0", "1.0b12", "1.0rc3.post4.dev5",
		"1.0.post0", "1.0.dev0", "1.0+local.7", "v2.1", "1.0-3", "1.0_RC_1",
	}
	for _, in := range inputs {
		v := MustParse(in)
		back, err := Parse(v.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", v.String(), err)
		}
		if !reflect.DeepEqual(v, back) {
			t.Errorf("round trip %q: %+v != %+v", in, v, back)
		}
		if !Equal(v, back) {
			t.Errorf("Equal(%q, %q) = false", in, v.String())
		}
	}
}

func TestIsPrerelease(t *testing.T) {
	tests := map[string]bool{
		"1.0":       false,
		"1.0a1":     true,
		"1.0.dev1":  true,
		"1.0.post1": false,
		"1.0rc1":    true,
	}
	for in, want := range tests {
		if got := MustParse(in).IsPrerelease(); got != want {
			t.Errorf("%s.IsPrerelease() = %v, want %v", in, got, want)
		}
	}
}
