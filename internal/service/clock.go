package service

import (
	"time"

	"github.com/segyhp/loan-engine/pkg/utils"
)

// Clock supplies the current time in the business timezone.
type Clock interface {
	Now() time.Time
	// Today is the current business date at midnight.
	Today() time.Time
	Location() *time.Location
}

type SystemClock struct {
	loc *time.Location
}

func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return SystemClock{loc: loc}
}

func (c SystemClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c SystemClock) Today() time.Time         { return utils.DateOf(c.Now()) }
func (c SystemClock) Location() *time.Location { return c.loc }

// FixedClock always reports the same instant. Used by tests and replays.
type FixedClock struct {
	At time.Time
}

func (c *FixedClock) Now() time.Time           { return c.At }
func (c *FixedClock) Today() time.Time         { return utils.DateOf(c.At) }
func (c *FixedClock) Location() *time.Location { return c.At.Location() }

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.At = c.At.Add(d) }
