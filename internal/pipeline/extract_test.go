package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlend/tvlscan/internal/model"
	"github.com/lumenlend/tvlscan/pkg/suirpc"
)

func TestExtractRecord(t *testing.T) {
	t.Parallel()
	r := New(testConfig(), &mockRPCClient{}, &mockMarketClient{})

	obj := capObject(0)
	rec, ok := r.extractRecord(*obj)

	require.True(t, ok)
	assert.Equal(t, model.CandidateID(capID(0)), rec.ObjectID)
	assert.Equal(t, posID(0), rec.PositionID)
	assert.Equal(t, model.ClassificationStandard, rec.Classification)
	assert.Equal(t, "0xowner0", rec.Owner)
}

func TestExtractRecordClassifications(t *testing.T) {
	t.Parallel()
	r := New(testConfig(), &mockRPCClient{}, &mockMarketClient{})

	tests := []struct {
		kind string
		want model.Classification
	}{
		{kind: "standard", want: model.ClassificationStandard},
		{kind: "locked", want: model.ClassificationLocked},
		{kind: "", want: model.ClassificationUnknown},
		{kind: "something-new", want: model.ClassificationUnknown},
	}

	for _, tt := range tests {
		t.Run("kind_"+tt.kind, func(t *testing.T) {
			obj := capObject(0)
			capField := obj.Content.Fields["cap"].(map[string]any)
			capField["fields"].(map[string]any)["kind"] = tt.kind

			rec, ok := r.extractRecord(*obj)
			require.True(t, ok)
			assert.Equal(t, tt.want, rec.Classification)
		})
	}
}

func TestExtractRecordSkips(t *testing.T) {
	t.Parallel()
	r := New(testConfig(), &mockRPCClient{}, &mockMarketClient{})

	tests := []struct {
		name   string
		mutate func(obj *suirpc.ObjectData)
	}{
		{
			name:   "no content",
			mutate: func(obj *suirpc.ObjectData) { obj.Content = nil },
		},
		{
			name:   "non-move content",
			mutate: func(obj *suirpc.ObjectData) { obj.Content.DataType = "package" },
		},
		{
			name:   "cap borrowed",
			mutate: func(obj *suirpc.ObjectData) { obj.Content.Fields["cap"] = nil },
		},
		{
			name:   "cap is not an object",
			mutate: func(obj *suirpc.ObjectData) { obj.Content.Fields["cap"] = "0xdeadbeef" },
		},
		{
			name: "cap missing inner fields",
			mutate: func(obj *suirpc.ObjectData) {
				obj.Content.Fields["cap"] = map[string]any{"type": "whatever"}
			},
		},
		{
			name: "missing obligation id",
			mutate: func(obj *suirpc.ObjectData) {
				obj.Content.Fields["cap"].(map[string]any)["fields"] = map[string]any{"kind": "standard"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := capObject(0)
			tt.mutate(obj)

			_, ok := r.extractRecord(*obj)
			assert.False(t, ok)
		})
	}
}

func TestExtractRecordsMixedBatch(t *testing.T) {
	t.Parallel()
	r := New(testConfig(), &mockRPCClient{}, &mockMarketClient{})

	borrowed := capObject(1)
	borrowed.Content.Fields["cap"] = nil

	records := r.extractRecords([]suirpc.ObjectData{*capObject(0), *borrowed, *capObject(2)})

	require.Len(t, records, 2)
	assert.Equal(t, posID(0), records[0].PositionID)
	assert.Equal(t, posID(2), records[1].PositionID)
}

func TestExtractRecordNoOwner(t *testing.T) {
	t.Parallel()
	r := New(testConfig(), &mockRPCClient{}, &mockMarketClient{})

	obj := capObject(0)
	obj.Owner = nil

	rec, ok := r.extractRecord(*obj)
	require.True(t, ok)
	assert.Empty(t, rec.Owner)
}
