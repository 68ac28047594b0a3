package domain

import "testing"

func TestVersionFromProjectPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"3.0.0/mr3.0.0_release", "3.0.0"},
		{"3.0.0", "3.0.0"},
		{"/3.0.0/mr3.0.0_release/", "3.0.0"},
		{"2.15.1/nightly", "2.15.1"},
		{"10/jobs", "10"},
		{"legacy/mr_release", "legacy"},
		{"standalone", "standalone"},
	}
	for _, tc := range cases {
		if got := VersionFromProjectPath(tc.in); got != tc.want {
			t.Errorf("VersionFromProjectPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
