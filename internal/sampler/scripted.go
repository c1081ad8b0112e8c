package sampler

// Scripted replays fixed draws in order. Once a queue runs dry it falls back
// to a neutral value: 1 for uniforms (never below a probability), the
// distribution mean for Beta, 0 for Gamma and IntN.
type Scripted struct {
	Uniforms []float64
	Betas    []float64
	Gammas   []float64
	Ints     []int

	UniformCalls int
	BetaCalls    int
	GammaCalls   int
}

func (s *Scripted) Float64() float64 {
	s.UniformCalls++
	if len(s.Uniforms) == 0 {
		return 1
	}
	v := s.Uniforms[0]
	s.Uniforms = s.Uniforms[1:]
	return v
}

func (s *Scripted) Beta(alpha, beta float64) float64 {
	s.BetaCalls++
	if len(s.Betas) == 0 {
		return alpha / (alpha + beta)
	}
	v := s.Betas[0]
	s.Betas = s.Betas[1:]
	return v
}

func (s *Scripted) Gamma(shape, scale float64) float64 {
	s.GammaCalls++
	if len(s.Gammas) == 0 {
		return 0
	}
	v := s.Gammas[0]
	s.Gammas = s.Gammas[1:]
	return v
}

func (s *Scripted) IntN(n int) int {
	if len(s.Ints) == 0 {
		return 0
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}
