package simulated

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Behavior selects how the simulated client responds.
type Behavior string

const (
	// BehaviorSucceed accepts every document.
	BehaviorSucceed Behavior = "succeed"
	// BehaviorFail rejects every document.
	BehaviorFail Behavior = "fail"
	// BehaviorAlternate rejects every second document, starting with a
	// success.
	BehaviorAlternate Behavior = "alternate"
	// BehaviorRandom rejects roughly one document in four.
	BehaviorRandom Behavior = "random"
)

// ParseBehavior validates a configured behavior name.
func ParseBehavior(s string) (Behavior, error) {
	switch Behavior(s) {
	case BehaviorSucceed, BehaviorFail, BehaviorAlternate, BehaviorRandom:
		return Behavior(s), nil
	case "":
		return BehaviorSucceed, nil
	default:
		return "", fmt.Errorf("unknown simulated behavior %q", s)
	}
}

// Client is an offline stand-in for the platform submission client. It
// never opens a connection; it answers according to its behavior so the
// pipeline's failure paths can be exercised without a platform account.
type Client struct {
	behavior Behavior
	log      *slog.Logger

	mu    sync.Mutex
	calls int
	rng   *rand.Rand
}

// NewClient creates a simulated submission client.
func NewClient(behavior Behavior, log *slog.Logger) *Client {
	return &Client{
		behavior: behavior,
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Send answers according to the configured behavior. Failures come back
// as (false, error) the way a terminal platform rejection would.
func (c *Client) Send(_ context.Context, _ []byte, name string) (bool, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	var ok bool
	switch c.behavior {
	case BehaviorFail:
		ok = false
	case BehaviorAlternate:
		ok = call%2 == 1
	case BehaviorRandom:
		ok = c.rng.Intn(4) != 0
	default:
		ok = true
	}
	c.mu.Unlock()

	if !ok {
		c.log.Debug("Simulated submission rejected", "document", name, "call", call)
		return false, fmt.Errorf("simulated rejection of %s", name)
	}
	c.log.Debug("Simulated submission accepted", "document", name, "call", call)
	return true, nil
}

// Enabled always reports true: the simulated client stands in for a
// fully configured platform.
func (c *Client) Enabled() bool { return true }

// BaseURL returns a placeholder URL.
func (c *Client) BaseURL() string { return "simulated://" + string(c.behavior) }

// Endpoint returns a placeholder endpoint path.
func (c *Client) Endpoint() string { return "/import" }

// Timeout returns zero: simulated sends never block.
func (c *Client) Timeout() time.Duration { return 0 }
