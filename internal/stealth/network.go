package stealth

import (
	"context"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// EmulateNetwork returns the CDP action applying the named profile's latency
// and throughput caps to a browsing context. Unknown names emulate nothing.
func EmulateNetwork(profile NetworkProfile) chromedp.Action {
	shape, ok := networkShapes[profile]
	if !ok {
		return chromedp.ActionFunc(func(ctx context.Context) error { return nil })
	}
	return network.EmulateNetworkConditions(
		false,
		float64(shape.latency.Milliseconds()),
		shape.download,
		shape.upload,
	)
}
