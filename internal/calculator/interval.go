package calculator

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"CascadeBandit/internal/model"
)

// CredibleInterval returns the equal-tailed interval holding level of the
// posterior mass, e.g. level 0.9 gives the 5% and 95% quantiles.
func CredibleInterval(p model.Posterior, level float64) (low, high float64, err error) {
	if level <= 0 || level >= 1 {
		return 0, 0, fmt.Errorf("credible level %v outside (0,1)", level)
	}
	if p.Alpha <= 0 || p.Beta <= 0 {
		return 0, 0, fmt.Errorf("invalid posterior (%v,%v)", p.Alpha, p.Beta)
	}
	d := distuv.Beta{Alpha: p.Alpha, Beta: p.Beta}
	tail := (1 - level) / 2
	return d.Quantile(tail), d.Quantile(1 - tail), nil
}
