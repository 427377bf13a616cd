package scoring

import (
	"time"

	"github.com/quadrille/attribution/internal/model"
)

// Delays holds the three tier-dependent deadline windows.  Guest is
// the last-chance window for recent bidders, Regular the window for
// the premium/hotspot and familiarity exceptions, Senior the base
// deadline for automatic attribution.
type Delays struct {
	Guest   time.Duration
	Regular time.Duration
	Senior  time.Duration
}

// DefaultDelays mirror the production configuration: 48h, 72h, 96h.
func DefaultDelays() Delays {
	return Delays{
		Guest:   48 * time.Hour,
		Regular: 72 * time.Hour,
		Senior:  96 * time.Hour,
	}
}

// recentGapDays is the location-gap threshold under which a Guest must
// wait for the last-chance window.
const recentGapDays = 30

// Eligible decides whether a scored application may win at this
// instant.  Each clause is an independent override: when a candidate's
// tier and scores match the clause's condition, the remaining time to
// start must have shrunk below the clause's window.  All applicable
// clauses must pass.  Tiers only relax clauses, so raising a
// candidate's tier never turns an eligible application ineligible.
func Eligible(card Scorecard, d Delays) bool {
	// The base tier has no bidding rights at all.
	if card.Tier < model.TierGuest {
		return false
	}
	if card.Tier <= model.TierGuest && card.LocationPrev != nil && *card.LocationPrev <= recentGapDays {
		if card.Remaining > d.Guest {
			return false
		}
	}
	if card.Tier <= model.TierRegular && card.Premium && card.Hotspot {
		if card.Remaining > d.Regular {
			return false
		}
	}
	if card.Tier <= model.TierSenior {
		if card.LocationCount <= 5 && card.Remaining > d.Regular {
			return false
		}
		if card.LocationPrem >= 1 && card.Remaining > d.Regular {
			return false
		}
		if card.LocationTemp >= card.GlobalTemp+5 && card.Remaining > d.Regular {
			return false
		}
	}
	return true
}
