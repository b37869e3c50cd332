// Package altimeter derives progress per altitude from the current cards and
// recommends which altitude the user should work at next.
package altimeter

import (
	"fmt"

	"github.com/phrazzld/cardfeed/internal/domain"
)

// OrientThreshold is the score above which an orient task signals a conflict
// in the queue.
const OrientThreshold = 0.7

// ComputeProgress folds every card into a single progress aggregate. Do-now
// cards count once each, ship checks and amplify suggestions are summed
// across cards, and any orient task above OrientThreshold in urgency or
// impact clears OrientOK. Other kinds do not contribute.
func ComputeProgress(cards []domain.Card) domain.AltimeterProgress {
	p := domain.AltimeterProgress{OrientOK: true}

	for _, c := range cards {
		switch content := c.Content.(type) {
		case domain.DoNowContent:
			p.DoCount = domain.SaturatingAdd(p.DoCount, 1)
		case domain.ShipContent:
			green := 0
			for _, chk := range content.Checks {
				if chk.Status == domain.CheckGreen {
					green++
				}
			}
			p.ShipGreen = domain.SaturatingAdd(p.ShipGreen, green)
			p.ShipTotal = domain.SaturatingAdd(p.ShipTotal, len(content.Checks))
		case domain.AmplifyContent:
			p.AmplifyTotal = domain.SaturatingAdd(p.AmplifyTotal, len(content.Suggestions))
			p.AmplifyDone = domain.SaturatingAdd(p.AmplifyDone, len(content.Drafts))
		case domain.OrientContent:
			for _, task := range content.NextTasks {
				if task.Urgency > OrientThreshold || task.Impact > OrientThreshold {
					p.OrientOK = false
				}
			}
		}
	}
	return p
}

// RecommendAltitude picks an altitude from progress. Rules are checked in
// order and the first match wins; the fallback is Do with no rationale.
func RecommendAltitude(p domain.AltimeterProgress) (domain.Altitude, string) {
	switch {
	case p.DoCount >= 3:
		return domain.AltitudeDo, fmt.Sprintf("%d focused edits available", p.DoCount)
	case p.ShipTotal > 0 && p.ShipGreen == p.ShipTotal:
		return domain.AltitudeShip, fmt.Sprintf("Ready to ship: %d/%d checks green", p.ShipGreen, p.ShipTotal)
	case p.AmplifyTotal > p.AmplifyDone:
		return domain.AltitudeAmplify, fmt.Sprintf("%d audiences need updates", p.AmplifyTotal-p.AmplifyDone)
	case !p.OrientOK:
		return domain.AltitudeOrient, "Queue conflicts detected; review priorities"
	}
	return domain.AltitudeDo, ""
}

// UpdateKind is the kind tag carried by altimeter update payloads.
const UpdateKind = "altimeter.update"

// Update is the payload of an altimeter.update event.
type Update struct {
	Kind           string                   `json:"kind"`
	SystemAltitude domain.Altitude          `json:"systemAltitude"`
	Progress       domain.AltimeterProgress `json:"progress"`
	Rationale      *string                  `json:"rationale"`
}

// NewUpdate computes progress and the recommendation for cards.
func NewUpdate(cards []domain.Card) Update {
	p := ComputeProgress(cards)
	alt, why := RecommendAltitude(p)
	u := Update{
		Kind:           UpdateKind,
		SystemAltitude: alt,
		Progress:       p,
	}
	if why != "" {
		u.Rationale = &why
	}
	return u
}
