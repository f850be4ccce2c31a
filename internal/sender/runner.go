package sender

import (
	"context"
	"errors"
	"time"

	logx "congratbot/pkg/logx"
)

// fallbackDelay is slept when a runner has no usable repeat delay yet.
const fallbackDelay = 5 * time.Second

// cursorState is one runner's position in the rotating name list.
//
// Zero value is the idle state: the next tick primes the cursor at the head
// of the current list without dispatching.
type cursorState struct {
	primed bool
	next   int
}

// step advances the rotation by one tick against the current name list and
// returns the name to dispatch, or ok=false on the priming tick and on the
// wrap tick after the last name. One no-dispatch tick per full pass.
func (c *cursorState) step(names []string) (string, bool) {
	switch {
	case !c.primed:
		c.primed = true
		c.next = 0
		return "", false
	case c.next >= len(names):
		c.next = 0
		return "", false
	default:
		name := names[c.next]
		c.next++
		return name, true
	}
}

// runJob is the repeating body of one chat's sender job.
//
// Each wake it re-reads the current settings, advances the cursor, and
// dispatches at most one name. The sleep uses the freshly-read repeat delay,
// so a reconfigure takes effect on the very next cycle; dispatch errors are
// logged and never stop the loop.
func (s *Service) runJob(ctx context.Context, chat ChatID) {
	log := s.log.With(logx.Int64("chat_id", int64(chat)))
	log.Debug("sender job running")

	var cur cursorState
	for {
		delay := s.fallback

		set, ok := s.registry.Settings(chat)
		if !ok {
			// Entry removed behind our back (not via Stop): orphaned exit.
			log.Debug("registry entry gone; sender job exiting")
			return
		}
		if set.RepeatDelay > 0 {
			delay = set.RepeatDelay
		}

		if name, dispatch := cur.step(set.Names); dispatch {
			if err := s.send(ctx, chat, name, KindBoth); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Debug("sender job canceled mid-dispatch")
					return
				}
				log.Warn("dispatch failed", logx.String("name", name), logx.Err(err))
			}
		}

		select {
		case <-ctx.Done():
			log.Debug("sender job canceled")
			return
		case <-time.After(delay):
		}
	}
}
