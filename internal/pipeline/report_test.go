package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlend/tvlscan/internal/model"
)

func TestBuildReportSortsByDeposits(t *testing.T) {
	t.Parallel()

	acc := &accumulator{}
	acc.add(model.PositionSummary{PositionID: "0xsmall", DepositedUSD: 10, BorrowedUSD: 1})
	acc.add(model.PositionSummary{PositionID: "0xbig", DepositedUSD: 500, BorrowedUSD: 100})
	acc.add(model.PositionSummary{PositionID: "0xmid", DepositedUSD: 50, BorrowedUSD: 5})

	rep := buildReport("run-1", 3, 0, 0, acc)

	require.Len(t, rep.Positions, 3)
	assert.Equal(t, "0xbig", rep.Positions[0].PositionID)
	assert.Equal(t, "0xmid", rep.Positions[1].PositionID)
	assert.Equal(t, "0xsmall", rep.Positions[2].PositionID)

	assert.Equal(t, 3, rep.PositionCount)
	assert.InDelta(t, 560.0, rep.TotalTVL, 1e-9)
	assert.InDelta(t, 560.0, rep.TotalDeposits, 1e-9)
	assert.InDelta(t, 106.0, rep.TotalBorrows, 1e-9)
	assert.InDelta(t, 1.0, rep.SuccessRate, 1e-9)
}

func TestBuildReportLeavesAccumulatorUntouched(t *testing.T) {
	t.Parallel()

	acc := &accumulator{}
	acc.add(model.PositionSummary{PositionID: "0xa", DepositedUSD: 1})
	acc.add(model.PositionSummary{PositionID: "0xb", DepositedUSD: 2})

	_ = buildReport("run-1", 2, 0, 0, acc)

	// The report sorts a copy; accumulation order survives.
	assert.Equal(t, "0xa", acc.summaries[0].PositionID)
	assert.Equal(t, "0xb", acc.summaries[1].PositionID)
}

func TestBuildReportCountsFailures(t *testing.T) {
	t.Parallel()

	acc := &accumulator{}
	for i := 0; i < 19; i++ {
		acc.add(model.PositionSummary{PositionID: posID(i), DepositedUSD: 100})
	}

	rep := buildReport("run-1", 20, 4, 1, acc)

	assert.Equal(t, 20, rep.RecordsExtracted)
	assert.Equal(t, 4, rep.MainPassFailures)
	assert.Equal(t, 1, rep.FinalFailures)
	assert.Equal(t, 19, rep.PositionCount, "count reflects successes, not attempts")
	assert.InDelta(t, 0.95, rep.SuccessRate, 1e-9)
}

func TestBuildReportEmpty(t *testing.T) {
	t.Parallel()

	rep := buildReport("run-1", 0, 0, 0, &accumulator{})

	assert.Zero(t, rep.TotalTVL)
	assert.Zero(t, rep.PositionCount)
	assert.Zero(t, rep.SuccessRate)
	assert.Empty(t, rep.Positions)
}

func TestFormatUSD(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "$0.00"},
		{in: 1234.5, want: "$1,234.50"},
		{in: 1000000, want: "$1,000,000.00"},
		{in: 0.1, want: "$0.10"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUSD(tt.in))
	}
}

func TestFormatText(t *testing.T) {
	t.Parallel()

	acc := &accumulator{}
	acc.add(model.PositionSummary{
		PositionID:     "0x123456789abcdef123456789abcdef",
		DepositedUSD:   1500,
		BorrowedUSD:    250,
		Classification: model.ClassificationStandard,
	})
	rep := buildReport("run-1", 1, 0, 0, acc)

	out := FormatText(rep)

	assert.Contains(t, out, "Total TVL:      $1,500.00")
	assert.Contains(t, out, "Top positions by deposits:")
	assert.Contains(t, out, "standard")
}
