package stealth

import (
	"math/rand"
	"strings"

	"github.com/chernistry/tavily/pkg/hashutil"
)

/*
Device profile selection.

Profiles are drawn from a fixed pool of internally consistent fingerprints:
a macOS user agent always pairs with a macOS platform string and an
Apple-plausible renderer, never with SwiftShader. Selection is seeded by the
session id, so one session always resolves to the same profile; when a
proxy region is known, region-consistent locale/timezone entries are
preferred.
*/

var profilePool = []DeviceProfile{
	{
		UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		Viewport:      Viewport{Width: 1920, Height: 1080},
		Locale:        "en-US",
		TimezoneID:    "America/New_York",
		WebGLVendor:   "Google Inc. (NVIDIA)",
		WebGLRenderer: "ANGLE (NVIDIA, NVIDIA GeForce GTX 1660 Direct3D11 vs_5_0 ps_5_0, D3D11)",
		Platform:      "Win32",
		Region:        "us",
	},
	{
		UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		Viewport:      Viewport{Width: 1536, Height: 864},
		Locale:        "en-GB",
		TimezoneID:    "Europe/London",
		WebGLVendor:   "Google Inc. (Intel)",
		WebGLRenderer: "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)",
		Platform:      "Win32",
		Region:        "gb",
	},
	{
		UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		Viewport:      Viewport{Width: 1440, Height: 900},
		Locale:        "en-US",
		TimezoneID:    "America/Los_Angeles",
		WebGLVendor:   "Google Inc. (Apple)",
		WebGLRenderer: "ANGLE (Apple, Apple M2, OpenGL 4.1)",
		Platform:      "MacIntel",
		Region:        "us",
	},
	{
		UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		Viewport:      Viewport{Width: 1680, Height: 1050},
		Locale:        "en-US",
		TimezoneID:    "America/Chicago",
		WebGLVendor:   "Apple Inc.",
		WebGLRenderer: "Apple GPU",
		Platform:      "MacIntel",
		Region:        "us",
	},
	{
		UserAgent:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		Viewport:      Viewport{Width: 1920, Height: 1080},
		Locale:        "de-DE",
		TimezoneID:    "Europe/Berlin",
		WebGLVendor:   "Google Inc. (Mesa)",
		WebGLRenderer: "ANGLE (Mesa, Mesa Intel(R) Xe Graphics (TGL GT2), OpenGL 4.6)",
		Platform:      "Linux x86_64",
		Region:        "de",
	},
	{
		UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
		Viewport:      Viewport{Width: 1366, Height: 768},
		Locale:        "fr-FR",
		TimezoneID:    "Europe/Paris",
		WebGLVendor:   "Google Inc. (AMD)",
		WebGLRenderer: "ANGLE (AMD, AMD Radeon RX 6600 Direct3D11 vs_5_0 ps_5_0, D3D11)",
		Platform:      "Win32",
		Region:        "fr",
	},
}

// SelectProfile resolves the device profile for a session. The same session
// id always yields the same profile; an empty id draws a random one.
// When region is non-empty, profiles from that region are preferred.
func SelectProfile(sessionID string, region string) DeviceProfile {
	pool := profilePool
	if region != "" {
		var regional []DeviceProfile
		for _, p := range pool {
			if strings.EqualFold(p.Region, region) {
				regional = append(regional, p)
			}
		}
		if len(regional) > 0 {
			pool = regional
		}
	}

	var rng *rand.Rand
	if sessionID != "" {
		rng = rand.New(rand.NewSource(hashutil.DeriveSeed(sessionID)))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return pool[rng.Intn(len(pool))]
}

// ConsistentWithOS verifies the profile invariant: platform and renderer
// must plausibly belong to the OS the user agent claims.
func (p DeviceProfile) ConsistentWithOS() bool {
	ua := strings.ToLower(p.UserAgent)
	renderer := strings.ToLower(p.WebGLRenderer)

	if strings.Contains(renderer, "swiftshader") {
		return false
	}

	switch {
	case strings.Contains(ua, "macintosh"):
		return p.Platform == "MacIntel" &&
			(strings.Contains(renderer, "apple") || strings.Contains(renderer, "amd") || strings.Contains(renderer, "intel"))
	case strings.Contains(ua, "windows"):
		return p.Platform == "Win32"
	case strings.Contains(ua, "linux"):
		return strings.HasPrefix(p.Platform, "Linux")
	}
	return false
}

// FingerprintSeed derives the per-session noise seed used by the canvas and
// audio patches. Stable within a session, distinct across sessions.
func FingerprintSeed(sessionID string) uint32 {
	if sessionID == "" {
		return uint32(rand.Int63())
	}
	return uint32(hashutil.DeriveSeed("fp:" + sessionID))
}
