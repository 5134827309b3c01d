package quality

// Tier grades a data payload. Ordered: Poor < Fair < Good < Excellent.
type Tier int

const (
	Poor Tier = iota
	Fair
	Good
	Excellent
)

var tierNames = map[Tier]string{
	Poor:      "poor",
	Fair:      "fair",
	Good:      "good",
	Excellent: "excellent",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "poor"
}

// AtLeast reports whether the tier meets the given floor
func (t Tier) AtLeast(floor Tier) bool {
	return t >= floor
}

// Score maps the tier onto [0, 1] for fusion arithmetic
func (t Tier) Score() float64 {
	return float64(t) / float64(Excellent)
}
