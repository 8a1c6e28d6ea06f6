package backend

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// auto delay bounds
const (
	autoDelayMin = 300 * time.Millisecond
	autoDelayMax = 1000 * time.Millisecond
)

// Delay is the artificial response delay of the backend
type Delay struct {
	// Auto picks a random delay between 300ms and 1s for every request
	Auto bool
	// Fixed delays every request by a fixed duration
	Fixed time.Duration
}

// ParseDelay parses a delay option, either "auto" or a number of milliseconds.
// The empty string means no delay.
func ParseDelay(s string) (Delay, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Delay{}, nil
	}
	if s == "auto" {
		return Delay{Auto: true}, nil
	}
	ms, err := strconv.Atoi(s)
	if err != nil || ms < 0 {
		return Delay{}, fmt.Errorf("invalid delay %q, expected auto or milliseconds", s)
	}
	return Delay{Fixed: time.Duration(ms) * time.Millisecond}, nil
}

// Duration returns the delay for one request
func (d Delay) Duration() time.Duration {
	if d.Auto {
		return autoDelayMin + time.Duration(rand.Int63n(int64(autoDelayMax-autoDelayMin)+1))
	}
	return d.Fixed
}

// String returns the delay in the form ParseDelay accepts
func (d Delay) String() string {
	if d.Auto {
		return "auto"
	}
	return strconv.FormatInt(d.Fixed.Milliseconds(), 10)
}

func (b *Backend) handleDelay() {
	if !b.delay.Auto && b.delay.Fixed <= 0 {
		return
	}
	delayMiddleware := func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timer := time.NewTimer(b.delay.Duration())
			select {
			case <-timer.C:
				h.ServeHTTP(w, r)
			case <-r.Context().Done():
				timer.Stop()
			}
		})
	}
	b.router.Use(delayMiddleware)
}
