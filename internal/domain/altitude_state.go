package domain

import "time"

// GateType names a step between neighbouring altitudes.
type GateType string

const (
	GateDoToShip        GateType = "do_to_ship"
	GateShipToAmplify   GateType = "ship_to_amplify"
	GateAmplifyToOrient GateType = "amplify_to_orient"
	GateOrientToDo      GateType = "orient_to_do"
)

// GateFor returns the gate crossed when moving from one altitude to the
// next one in the cycle. ok is false for any other transition.
func GateFor(from, to Altitude) (GateType, bool) {
	switch {
	case from == AltitudeDo && to == AltitudeShip:
		return GateDoToShip, true
	case from == AltitudeShip && to == AltitudeAmplify:
		return GateShipToAmplify, true
	case from == AltitudeAmplify && to == AltitudeOrient:
		return GateAmplifyToOrient, true
	case from == AltitudeOrient && to == AltitudeDo:
		return GateOrientToDo, true
	}
	return "", false
}

// Gate records one altitude transition through a gate.
type Gate struct {
	FromAltitude  Altitude  `json:"from_altitude"`
	ToAltitude    Altitude  `json:"to_altitude"`
	GateType      GateType  `json:"gate_type"`
	ConditionsMet bool      `json:"conditions_met"`
	Timestamp     time.Time `json:"timestamp"`
}

// AltitudeState is the working altitude together with how it was reached.
type AltitudeState struct {
	Current     Altitude  `json:"current"`
	Previous    *Altitude `json:"previous"`
	Manual      bool      `json:"manual"`
	GatesPassed []Gate    `json:"gates_passed"`
}
