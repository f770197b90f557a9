package pipeline

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/lumenlend/tvlscan/internal/model"
)

// buildReport assembles the final TVLReport from the accumulated passes.
// Pure aggregation plus formatting; no fetches happen here.
func buildReport(runID string, extracted, mainFailures, finalFailures int, acc *accumulator) *model.TVLReport {
	positions := make([]model.PositionSummary, len(acc.summaries))
	copy(positions, acc.summaries)
	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].DepositedUSD > positions[j].DepositedUSD
	})

	var successRate float64
	if extracted > 0 {
		successRate = float64(len(positions)) / float64(extracted)
	}

	return &model.TVLReport{
		RunID:         runID,
		TotalTVL:      acc.deposits,
		TotalDeposits: acc.deposits,
		TotalBorrows:  acc.borrows,
		PositionCount: len(positions),
		Positions:     positions,

		RecordsExtracted: extracted,
		MainPassFailures: mainFailures,
		FinalFailures:    finalFailures,
		SuccessRate:      successRate,
	}
}

// publishBreakdown narrates the final accounting on the progress stream.
func (r *Runner) publishBreakdown(rep *model.TVLReport, mainFailures, recovered int) {
	r.stream.Publish("report: %d positions aggregated from %d records (%.1f%% success)",
		rep.PositionCount, rep.RecordsExtracted, rep.SuccessRate*100)
	if mainFailures > 0 {
		r.stream.Publish("report: %d/%d recovered in cleanup, %d unresolved",
			recovered, mainFailures, rep.FinalFailures)
	}
	r.stream.Publish("report: total TVL %s (deposits %s, borrows %s)",
		formatUSD(rep.TotalTVL), formatUSD(rep.TotalDeposits), formatUSD(rep.TotalBorrows))
}

// FormatText renders a report as a human-readable summary.
func FormatText(rep *model.TVLReport) string {
	var b strings.Builder
	b.WriteString("TVL Report\n")
	b.WriteString("==========\n")
	b.WriteString("Total TVL:      " + formatUSD(rep.TotalTVL) + "\n")
	b.WriteString("Total deposits: " + formatUSD(rep.TotalDeposits) + "\n")
	b.WriteString("Total borrows:  " + formatUSD(rep.TotalBorrows) + "\n")

	p := message.NewPrinter(language.English)
	b.WriteString(p.Sprintf("Positions:      %d of %d records (%.1f%% success, %d unresolved)\n",
		rep.PositionCount, rep.RecordsExtracted, rep.SuccessRate*100, rep.FinalFailures))

	if len(rep.Positions) > 0 {
		b.WriteString("\nTop positions by deposits:\n")
		limit := minInt(len(rep.Positions), 10)
		for i := 0; i < limit; i++ {
			pos := rep.Positions[i]
			b.WriteString(p.Sprintf("  %2d. %s  deposited %s  borrowed %s  (%s)\n",
				i+1, shortID(pos.PositionID), formatUSD(pos.DepositedUSD), formatUSD(pos.BorrowedUSD), pos.Classification))
		}
	}
	return b.String()
}

// formatUSD renders a dollar value with thousands separators.
func formatUSD(v float64) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("$%v", number.Decimal(v, number.MaxFractionDigits(2), number.MinFractionDigits(2)))
}
