package stealth

import (
	"time"
)

// Mode selects how much of the masking bundle is applied.
type Mode string

const (
	ModeMinimal    Mode = "minimal"
	ModeModerate   Mode = "moderate"
	ModeAggressive Mode = "aggressive"
)

func (m Mode) Valid() bool {
	return m == ModeMinimal || m == ModeModerate || m == ModeAggressive
}

// AtLeast reports whether the mode includes everything other provides.
func (m Mode) AtLeast(other Mode) bool {
	return rank(m) >= rank(other)
}

func rank(m Mode) int {
	switch m {
	case ModeAggressive:
		return 2
	case ModeModerate:
		return 1
	default:
		return 0
	}
}

// Viewport is the browsing context's window size.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DeviceProfile is the coherent fingerprint applied to a browser session.
//
// Invariant: the fields are internally consistent — the platform and WebGL
// renderer always plausibly belong to the OS named by the user agent.
type DeviceProfile struct {
	UserAgent     string   `json:"user_agent"`
	Viewport      Viewport `json:"viewport"`
	Locale        string   `json:"locale"`
	TimezoneID    string   `json:"timezone_id"`
	WebGLVendor   string   `json:"webgl_vendor"`
	WebGLRenderer string   `json:"webgl_renderer"`
	Platform      string   `json:"platform"`
	Region        string   `json:"region,omitempty"`
}

// Cookie mirrors the subset of browser cookie state the session persists.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

// OriginStorage is one origin's web storage snapshot.
type OriginStorage struct {
	Origin       string            `json:"origin"`
	LocalStorage map[string]string `json:"local_storage,omitempty"`
}

// StorageState is the persisted storage snapshot of a session.
type StorageState struct {
	Cookies []Cookie        `json:"cookies"`
	Origins []OriginStorage `json:"origins,omitempty"`
}

// Session couples a storage snapshot with the device profile that produced
// it. Reload restores both.
type Session struct {
	ID      string
	Profile DeviceProfile
	Storage StorageState
	SavedAt time.Time
}

// NetworkProfile names a set of latency and throughput caps applied to a
// browsing context in aggressive mode.
type NetworkProfile string

const (
	NetworkSlow3G NetworkProfile = "slow_3g"
	NetworkFast3G NetworkProfile = "fast_3g"
	Network4G     NetworkProfile = "4g"
	NetworkWifi   NetworkProfile = "wifi"
	NetworkDSL    NetworkProfile = "dsl"
)

// networkShape holds the emulation numbers for one profile.
type networkShape struct {
	latency  time.Duration
	download float64 // bytes/s
	upload   float64 // bytes/s
}

var networkShapes = map[NetworkProfile]networkShape{
	NetworkSlow3G: {latency: 400 * time.Millisecond, download: 50 * 1024, upload: 20 * 1024},
	NetworkFast3G: {latency: 150 * time.Millisecond, download: 188 * 1024, upload: 86 * 1024},
	Network4G:     {latency: 60 * time.Millisecond, download: 1_250 * 1024, upload: 375 * 1024},
	NetworkWifi:   {latency: 15 * time.Millisecond, download: 3_750 * 1024, upload: 1_875 * 1024},
	NetworkDSL:    {latency: 30 * time.Millisecond, download: 250 * 1024, upload: 125 * 1024},
}
