package domain

// AltimeterProgress aggregates per-altitude work across cards. Counters
// saturate at 255.
type AltimeterProgress struct {
	DoCount      uint8 `json:"doCount"`
	ShipGreen    uint8 `json:"shipGreen"`
	ShipTotal    uint8 `json:"shipTotal"`
	AmplifyDone  uint8 `json:"amplifyDone"`
	AmplifyTotal uint8 `json:"amplifyTotal"`
	OrientOK     bool  `json:"orientOk"`
}

// SaturatingAdd adds n to v, clamping at 255.
func SaturatingAdd(v uint8, n int) uint8 {
	if n <= 0 {
		return v
	}
	if sum := int(v) + n; sum < 255 {
		return uint8(sum)
	}
	return 255
}
