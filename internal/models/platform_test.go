package models

import (
	"errors"
	"strings"
	"testing"
)

func TestAssertValidPlatform(t *testing.T) {
	cases := []struct {
		name      string
		os, arch  string
		buildType []string
		wantField string
	}{
		{name: "macos arm64", os: "macos", arch: "arm64"},
		{name: "windows x64 installer", os: "windows", arch: "x64", buildType: []string{"installer"}},
		{name: "android arm64 patch", os: "android", arch: "arm64", buildType: []string{"patch"}},
		{name: "unknown os", os: "solaris", arch: "x64", wantField: "os"},
		{name: "unknown arch", os: "linux", arch: "mips", wantField: "arch"},
		{name: "unknown type", os: "linux", arch: "x64", buildType: []string{"delta"}, wantField: "type"},
		{name: "uppercase os", os: "MacOS", arch: "arm64", wantField: "os"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AssertValidPlatform(tc.os, tc.arch, tc.buildType...)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("err = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrUnsupported) {
				t.Fatalf("err = %v, want ErrUnsupported", err)
			}
			if !strings.Contains(err.Error(), tc.wantField+" ") {
				t.Errorf("error should name the field %q: %v", tc.wantField, err)
			}
			if !strings.Contains(err.Error(), "accepted:") {
				t.Errorf("error should list accepted values: %v", err)
			}
		})
	}
}

func TestAssertValidChannel(t *testing.T) {
	for _, ch := range SupportedChannels {
		if err := AssertValidChannel(ch); err != nil {
			t.Errorf("%s: %v", ch, err)
		}
	}
	if err := AssertValidChannel("nightly"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("nightly: %v", err)
	}
}

func TestAssertValidDistribution(t *testing.T) {
	for _, d := range SupportedDistributions {
		if err := AssertValidDistribution(d); err != nil {
			t.Errorf("%s: %v", d, err)
		}
	}
	if err := AssertValidDistribution("torrent"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("torrent: %v", err)
	}
}

func TestAssertValidVariant(t *testing.T) {
	for _, ok := range []string{"default", "opengl", "metal-3", "x86_64.legacy"} {
		if err := AssertValidVariant(ok); err != nil {
			t.Errorf("%q: %v", ok, err)
		}
	}
	bad := []string{"", "Has Space", "UPPER", strings.Repeat("x", 65), "emoji⚡"}
	for _, v := range bad {
		if err := AssertValidVariant(v); !errors.Is(err, ErrUnsupported) {
			t.Errorf("%q accepted", v)
		}
	}
}
