package classifier

// Vendor names the challenge or block family a page belongs to.
type Vendor string

const (
	VendorNone            Vendor = "none"
	VendorRecaptcha       Vendor = "recaptcha"
	VendorHCaptcha        Vendor = "hcaptcha"
	VendorTurnstile       Vendor = "turnstile"
	VendorCloudflareBlock Vendor = "cloudflare_block"
	VendorGenericBlock    Vendor = "generic_block"
)

// Verdict is the classifier's typed outcome.
//
// Present is true only when the evidence clears the detection bar; a single
// weak signal keeps Present false and surfaces through Suspected instead.
type Verdict struct {
	Present    bool
	Vendor     Vendor
	Confidence float64
	Reason     string
	Suspected  bool
}

// Input bundles everything the classifier may inspect for one response.
// BodyPrefix is capped by the caller at MaxBodyPrefix.
type Input struct {
	StatusCode int
	FinalURL   string
	Headers    map[string]string
	BodyPrefix []byte
}

// MaxBodyPrefix bounds how much of a body the classifier will scan.
const MaxBodyPrefix = 200 * 1024
