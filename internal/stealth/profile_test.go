package stealth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectProfile_StickyPerSession(t *testing.T) {
	first := SelectProfile("session-abc", "")
	second := SelectProfile("session-abc", "")

	assert.Equal(t, first, second, "same session id must resolve to the same profile")
}

func TestSelectProfile_DistinctSessionsCanDiffer(t *testing.T) {
	// across enough sessions at least two distinct profiles must appear
	seen := map[string]bool{}
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"} {
		seen[SelectProfile(id, "").UserAgent] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestSelectProfile_RegionPreference(t *testing.T) {
	profile := SelectProfile("session-region", "de")
	assert.Equal(t, "de", profile.Region)
	assert.Equal(t, "de-DE", profile.Locale)
}

func TestSelectProfile_UnknownRegionFallsBackToFullPool(t *testing.T) {
	profile := SelectProfile("session-x", "zz")
	assert.NotEmpty(t, profile.UserAgent)
}

func TestProfilePool_AllProfilesOSConsistent(t *testing.T) {
	for _, profile := range profilePool {
		assert.True(t, profile.ConsistentWithOS(),
			"profile %q is not OS-consistent", profile.UserAgent)
	}
}

func TestConsistentWithOS_RejectsMismatches(t *testing.T) {
	tests := []struct {
		name    string
		profile DeviceProfile
	}{
		{
			name: "macOS UA with Win32 platform",
			profile: DeviceProfile{
				UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
				Platform:      "Win32",
				WebGLRenderer: "Apple GPU",
			},
		},
		{
			name: "swiftshader renderer",
			profile: DeviceProfile{
				UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
				Platform:      "Win32",
				WebGLRenderer: "Google SwiftShader",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.profile.ConsistentWithOS())
		})
	}
}

func TestFingerprintSeed(t *testing.T) {
	t.Run("stable within a session", func(t *testing.T) {
		assert.Equal(t, FingerprintSeed("s1"), FingerprintSeed("s1"))
	})

	t.Run("distinct across sessions", func(t *testing.T) {
		assert.NotEqual(t, FingerprintSeed("s1"), FingerprintSeed("s2"))
	})
}
