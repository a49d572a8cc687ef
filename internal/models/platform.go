package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported marks validation failures on enum-like fields. Callers
// match it with errors.Is and report the message verbatim.
var ErrUnsupported = errors.New("unsupported value")

const (
	OSMacOS   = "macos"
	OSWindows = "windows"
	OSLinux   = "linux"
	OSIOS     = "ios"
	OSAndroid = "android"
)

const (
	ArchARM64 = "arm64"
	ArchX64   = "x64"
	ArchX86   = "x86"
)

const (
	TypePatch     = "patch"
	TypeInstaller = "installer"
)

const (
	DistributionDirect = "direct"
	DistributionStore  = "store"
)

const (
	ChannelStable = "stable"
	ChannelBeta   = "beta"
	ChannelAlpha  = "alpha"
)

// DefaultVariant labels the single build in a slot when nothing
// distinguishes co-existing builds (e.g. renderer backend).
const DefaultVariant = "default"

var (
	SupportedOS            = []string{OSMacOS, OSWindows, OSLinux, OSIOS, OSAndroid}
	SupportedArch          = []string{ArchARM64, ArchX64, ArchX86}
	SupportedTypes         = []string{TypePatch, TypeInstaller}
	SupportedDistributions = []string{DistributionDirect, DistributionStore}
	SupportedChannels      = []string{ChannelStable, ChannelBeta, ChannelAlpha}
)

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func unsupported(field, value string, accepted []string) error {
	return fmt.Errorf("%w: %s %q (accepted: %s)", ErrUnsupported, field, value, strings.Join(accepted, ", "))
}

// AssertValidPlatform checks os/arch and, when given, the build type.
// Update checks omit the type because the client does not know it yet.
func AssertValidPlatform(os, arch string, buildType ...string) error {
	if !contains(SupportedOS, os) {
		return unsupported("os", os, SupportedOS)
	}
	if !contains(SupportedArch, arch) {
		return unsupported("arch", arch, SupportedArch)
	}
	for _, t := range buildType {
		if !contains(SupportedTypes, t) {
			return unsupported("type", t, SupportedTypes)
		}
	}
	return nil
}

func IsSupportedChannel(channel string) bool {
	return contains(SupportedChannels, channel)
}

func IsSupportedDistribution(distribution string) bool {
	return contains(SupportedDistributions, distribution)
}

func AssertValidChannel(channel string) error {
	if !IsSupportedChannel(channel) {
		return unsupported("channel", channel, SupportedChannels)
	}
	return nil
}

func AssertValidDistribution(distribution string) error {
	if !IsSupportedDistribution(distribution) {
		return unsupported("distribution", distribution, SupportedDistributions)
	}
	return nil
}

// AssertValidVariant accepts short lowercase labels: letters, digits,
// dot, underscore and dash.
func AssertValidVariant(variant string) error {
	if variant == "" || len(variant) > 64 {
		return fmt.Errorf("%w: variant %q (must be 1-64 characters)", ErrUnsupported, variant)
	}
	for _, r := range variant {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			continue
		}
		return fmt.Errorf("%w: variant %q (allowed characters: a-z 0-9 . _ -)", ErrUnsupported, variant)
	}
	return nil
}
