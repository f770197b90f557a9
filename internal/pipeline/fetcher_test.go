package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/lumenlend/tvlscan/internal/model"
)

func testRecords(n int) []model.CapabilityRecord {
	recs := make([]model.CapabilityRecord, n)
	for i := range recs {
		recs[i] = model.CapabilityRecord{
			ObjectID:       model.CandidateID(capID(i)),
			PositionID:     posID(i),
			Classification: model.ClassificationStandard,
		}
	}
	return recs
}

func TestMainPassAccumulatesSuccesses(t *testing.T) {
	market := &mockMarketClient{}
	for i := 0; i < 4; i++ {
		market.On("GetObligation", mock.Anything, posID(i)).
			Return(obligation(i, 100, 25), nil)
	}

	r := New(testConfig(), &mockRPCClient{}, market, withSleep(noSleep))
	acc := &accumulator{}
	r.runMainPass(context.Background(), testRecords(4), acc)

	assert.Len(t, acc.summaries, 4)
	assert.InDelta(t, 400.0, acc.deposits, 1e-9)
	assert.InDelta(t, 100.0, acc.borrows, 1e-9)
	assert.InDelta(t, 75.0, acc.summaries[0].NetUSD, 1e-9)
}

func TestMainPassRetriesBeforeGivingUp(t *testing.T) {
	market := &mockMarketClient{}

	// Fails twice, succeeds on the third and final main-pass attempt.
	market.On("GetObligation", mock.Anything, posID(0)).
		Return(nil, errors.New("flaky")).Times(2)
	market.On("GetObligation", mock.Anything, posID(0)).
		Return(obligation(0, 100, 0), nil)

	r := New(testConfig(), &mockRPCClient{}, market, withSleep(noSleep))
	acc := &accumulator{}
	r.runMainPass(context.Background(), testRecords(1), acc)

	assert.Len(t, acc.summaries, 1)
	market.AssertNumberOfCalls(t, "GetObligation", 3)

	var retryLines int
	for _, msg := range r.Stream().Messages() {
		if isRetryLine(msg) {
			retryLines++
		}
	}
	assert.Equal(t, 2, retryLines, "each failed attempt announces the retry")
}

func isRetryLine(msg string) bool {
	return strings.HasPrefix(msg, "fetch: position") && strings.HasSuffix(msg, "failed, retrying")
}

func TestMainPassBatchBoundaryTracksController(t *testing.T) {
	market := &mockMarketClient{}
	for i := 0; i < 40; i++ {
		market.On("GetObligation", mock.Anything, posID(i)).
			Return(obligation(i, 1, 0), nil)
	}

	cfg := testConfig()
	cfg.Tuning.InitialBatchSize = 15
	r := New(cfg, &mockRPCClient{}, market, withSleep(noSleep))
	acc := &accumulator{}
	r.runMainPass(context.Background(), testRecords(40), acc)

	// 15 + 15 (stable, stable→speed-up applies after batch 2) then the
	// remaining 10 at the grown width: three batches total.
	var batchLines []string
	for _, msg := range r.Stream().Messages() {
		if strings.HasPrefix(msg, "fetch: batch") {
			batchLines = append(batchLines, msg)
		}
	}
	assert.Len(t, batchLines, 3)
	assert.Len(t, acc.summaries, 40)
}

func TestShortID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0xabc", shortID("0xabc"))
	long := "0x123456789abcdef123456789abcdef"
	assert.Equal(t, "0x123456…cdef", shortID(long))
}
