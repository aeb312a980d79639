package isotope

// Envelope is the ordered isotope profile of one neutral mass.
// Abundances are non-negative and sum to 1.
type Envelope struct {
	Mass     float64
	Isotopes []Isotope
	apex     int // position in Isotopes of the most abundant isotope
}

func newEnvelope(mass float64, isotopes []Isotope) Envelope {
	apex := 0
	for i, iso := range isotopes {
		if iso.Abundance > isotopes[apex].Abundance {
			apex = i
		}
	}
	return Envelope{Mass: mass, Isotopes: isotopes, apex: apex}
}

// Len returns the number of isotopes in the envelope
func (e Envelope) Len() int {
	return len(e.Isotopes)
}

// MostAbundantIndex returns the isotope index of the highest peak
func (e Envelope) MostAbundantIndex() int {
	return e.Isotopes[e.apex].Index
}

// MostAbundantPosition returns the position of the highest peak in Isotopes
func (e Envelope) MostAbundantPosition() int {
	return e.apex
}

// IsotopeMz returns the m/z of isotope index at the given charge
func (e Envelope) IsotopeMz(index int, charge int) float64 {
	return IsotopeMz(e.Mass, index, charge)
}

// Abundances returns the relative abundances in isotope order
func (e Envelope) Abundances() []float64 {
	a := make([]float64, len(e.Isotopes))
	for i, iso := range e.Isotopes {
		a[i] = iso.Abundance
	}
	return a
}
