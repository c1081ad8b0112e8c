package notifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"CascadeBandit/internal/calculator"
	"CascadeBandit/internal/model"
)

// configTableRows caps the configuration table in a report.
const configTableRows = 9

// Report is everything the periodic report shows.
type Report struct {
	Snapshot   model.Snapshot
	Iteration  int
	Iterations int
	Rolling    float64 // conversion over the recent window, percent
	Failures   []model.FailureEvent
}

// FormatReport formats the periodic experiment report.
func FormatReport(r *Report) string {
	var b strings.Builder
	c := r.Snapshot.Counters

	b.WriteString(fmt.Sprintf("📊 <b>Cascade Bandit</b> | frame %s / %s\n\n",
		humanize.Comma(int64(r.Iteration)), humanize.Comma(int64(r.Iterations))))

	b.WriteString("📈 <b>Conversion:</b>\n")
	b.WriteString(conversionLine("primary", c.PrimarySuccess, c.PrimaryPayments))
	b.WriteString(conversionLine("repeated", c.RepeatedSuccess, c.RepeatedPayments))
	b.WriteString(conversionLine("overall", c.Success, c.Payments))
	b.WriteString(conversionLine("cascade", c.CascadeSuccess, c.CascadePayments))
	b.WriteString(fmt.Sprintf("  recent:   %.2f%%\n\n", r.Rolling))

	constraints := make([]string, len(r.Snapshot.Arms))
	for i, a := range r.Snapshot.Arms {
		constraints[i] = humanize.Comma(int64(a.Constraint))
	}
	b.WriteString(fmt.Sprintf("Constraints: [%s]\n", strings.Join(constraints, ", ")))
	b.WriteString(fmt.Sprintf("Top configurations: %s\n", joinKeys(r.Snapshot.Top)))

	if s := r.Snapshot.Suspension; s != nil {
		b.WriteString(fmt.Sprintf("⚠️ Bank %d offline until iteration %d\n", s.Arm, s.RestoreAt))
	}
	for _, evt := range r.Failures {
		b.WriteString(FormatFailure(evt) + "\n")
	}

	b.WriteString("\n" + FormatConfigs(&r.Snapshot))
	return b.String()
}

// FormatConfigs renders the most-tried configurations as a table.
func FormatConfigs(snap *model.Snapshot) string {
	hist := make([]model.CascadeSnapshot, len(snap.Historical))
	copy(hist, snap.Historical)
	sort.SliceStable(hist, func(i, j int) bool {
		return hist[i].Stats.Alpha+hist[i].Stats.Beta > hist[j].Stats.Alpha+hist[j].Stats.Beta
	})
	if len(hist) > configTableRows {
		hist = hist[:configTableRows]
	}

	var b strings.Builder
	b.WriteString("🔀 <b>Configurations:</b>\n")
	if len(hist) == 0 {
		b.WriteString("  none yet\n")
		return b.String()
	}
	b.WriteString("<pre>\n")
	b.WriteString(fmt.Sprintf("%-12s %7s %6s %6s\n", "cascade", "mean%", "alpha", "beta"))
	for _, h := range hist {
		key := string(h.Key)
		if !h.Active {
			key += "*"
		}
		b.WriteString(fmt.Sprintf("%-12s %7.2f %6.0f %6.0f\n",
			key, h.Stats.Mean*100, h.Stats.Alpha, h.Stats.Beta))
	}
	b.WriteString("</pre>\n")
	return b.String()
}

// FormatArms renders every arm's posteriors with a 90% credible interval.
func FormatArms(snap *model.Snapshot) string {
	var b strings.Builder
	b.WriteString("🏦 <b>Banks:</b>\n<pre>\n")
	b.WriteString(fmt.Sprintf("%-4s %6s %-17s %-17s\n", "bank", "left", "primary 90%", "repeated 90%"))
	for _, a := range snap.Arms {
		b.WriteString(fmt.Sprintf("%-4d %6d %-17s %-17s\n",
			a.Index, a.Constraint, interval(a.Primary), interval(a.Repeated)))
	}
	b.WriteString("</pre>\n")
	return b.String()
}

// FormatFailure narrates a bank suspension or restoration.
func FormatFailure(evt model.FailureEvent) string {
	switch evt.Type {
	case model.FailureSuspended:
		return "🔴 " + evt.Message
	case model.FailureRestored:
		return "🟢 " + evt.Message
	default:
		return evt.Message
	}
}

func conversionLine(label string, success, payments int) string {
	return fmt.Sprintf("  %-9s %6.2f%% (%s payments)\n",
		label+":", calculator.Conversion(success, payments), humanize.Comma(int64(payments)))
}

func interval(p model.Posterior) string {
	lo, hi, err := calculator.CredibleInterval(p, 0.9)
	if err != nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f-%.2f", lo, hi)
}

func joinKeys(keys []model.CascadeKey) string {
	if len(keys) == 0 {
		return "none"
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = "[" + string(k) + "]"
	}
	return strings.Join(parts, " ")
}

var tagPattern = regexp.MustCompile(`</?[a-z]+>`)

func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}
