package stealth

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

/*
Behavior emulation (moderate and above).

Humans do not move pointers in straight lines, scroll a page in one jump, or
type at a fixed cadence. The actions below approximate those signals:

- Mouse movement follows a curved path with variable step timing
- Scrolling happens in several segments separated by reading-like pauses
- Typing uses a variable inter-key delay with rare longer pauses

All actions are best-effort: a failed dispatch never fails the fetch.
*/

// Behavior emits humanlike interaction into a browsing context.
// The rng is owned by the caller; seeding it per session keeps replays
// coherent.
type Behavior struct {
	rng *rand.Rand
}

func NewBehavior(seed int64) Behavior {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return Behavior{rng: rand.New(rand.NewSource(seed))}
}

// MouseWander moves the pointer along a curved path toward a random point
// inside the viewport.
func (b *Behavior) MouseWander(viewport Viewport) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		fromX := float64(b.rng.Intn(viewport.Width/4) + 10)
		fromY := float64(b.rng.Intn(viewport.Height/4) + 10)
		toX := float64(b.rng.Intn(viewport.Width-40) + 20)
		toY := float64(b.rng.Intn(viewport.Height-40) + 20)

		steps := 12 + b.rng.Intn(12)
		// control point off the straight line gives the path its curve
		ctrlX := (fromX+toX)/2 + float64(b.rng.Intn(200)-100)
		ctrlY := (fromY+toY)/2 + float64(b.rng.Intn(120)-60)

		for i := 1; i <= steps; i++ {
			t := float64(i) / float64(steps)
			x := bezierPoint(fromX, ctrlX, toX, t)
			y := bezierPoint(fromY, ctrlY, toY, t)
			move := input.DispatchMouseEvent(input.MouseMoved, x, y)
			if err := move.Do(ctx); err != nil {
				return nil // best effort
			}
			sleepJittered(ctx, 8+b.rng.Intn(22))
		}
		return nil
	})
}

// ScrollRead scrolls the page in segments with reading-like pauses.
func (b *Behavior) ScrollRead() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		segments := 3 + b.rng.Intn(3)
		for i := 0; i < segments; i++ {
			delta := 250 + b.rng.Intn(450)
			script := fmt.Sprintf("window.scrollBy({top: %d, behavior: 'smooth'});", delta)
			if err := chromedp.Evaluate(script, nil).Do(ctx); err != nil {
				return nil // best effort
			}
			sleepJittered(ctx, 400+b.rng.Intn(1400))
		}
		return nil
	})
}

// TypeText emits text keystroke by keystroke with a humanlike cadence.
func (b *Behavior) TypeText(selector, text string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := chromedp.Focus(selector, chromedp.ByQuery).Do(ctx); err != nil {
			return nil
		}
		for _, r := range text {
			if err := input.InsertText(string(r)).Do(ctx); err != nil {
				return nil
			}
			delay := 60 + b.rng.Intn(120)
			// occasional longer hesitation
			if b.rng.Intn(12) == 0 {
				delay += 350 + b.rng.Intn(500)
			}
			sleepJittered(ctx, delay)
		}
		return nil
	})
}

func bezierPoint(p0, p1, p2, t float64) float64 {
	inv := 1 - t
	return math.Round(inv*inv*p0 + 2*inv*t*p1 + t*t*p2)
}

func sleepJittered(ctx context.Context, ms int) {
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(ms) * time.Millisecond):
	}
}
