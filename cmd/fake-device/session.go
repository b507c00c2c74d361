package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/synthetic"
)

const progressEvery = 30

// deviceLine is the microcontroller's JSON line. It carries no timestamp or
// phase; the bridge stamps frames itself.
type deviceLine struct {
	HR      int  `json:"hr"`
	RR      int  `json:"rr"`
	Sweat   int  `json:"sweat"`
	LeadOff bool `json:"leadOff"`
}

type session struct {
	out      io.Writer
	clock    clockwork.Clock
	profile  synthetic.Profile
	rng      synthetic.Rand
	interval time.Duration
	duration time.Duration
}

// run writes one reading per interval until duration elapses or ctx is
// cancelled, and returns how many readings were written.
func (s *session) run(ctx context.Context) (int, error) {
	rng := s.rng
	if rng == nil {
		rng = synthetic.NewRand(uint64(s.clock.Now().UnixNano()))
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	start := s.clock.Now()
	lastProgress := 0
	lines := 0
	for {
		elapsed := s.clock.Since(start)
		if s.duration > 0 && elapsed > s.duration {
			return lines, nil
		}

		seconds := int(elapsed / time.Second)
		r := synthetic.Vitals(seconds, rng, s.profile)
		data, err := json.Marshal(deviceLine{HR: r.HR, RR: r.RR, Sweat: r.Sweat, LeadOff: r.LeadOff})
		if err != nil {
			return lines, fmt.Errorf("encode reading: %w", err)
		}
		if _, err := fmt.Fprintf(s.out, "%s\n", data); err != nil {
			return lines, fmt.Errorf("write reading: %w", err)
		}
		lines++

		if block := seconds / progressEvery; block > lastProgress {
			lastProgress = block
			if _, err := fmt.Fprintf(s.out, "# Progress: %ds / %ds - Phase: %s\n",
				seconds, int(s.duration/time.Second), r.Phase); err != nil {
				return lines, fmt.Errorf("write progress: %w", err)
			}
		}

		select {
		case <-ctx.Done():
			return lines, nil
		case <-ticker.Chan():
		}
	}
}
