package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Classification
	}{
		{in: "standard", want: ClassificationStandard},
		{in: "Standard", want: ClassificationStandard},
		{in: " locked ", want: ClassificationLocked},
		{in: "LOCKED", want: ClassificationLocked},
		{in: "", want: ClassificationUnknown},
		{in: "boosted", want: ClassificationUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseClassification(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeCandidateID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want CandidateID
	}{
		{in: "0xABCDEF", want: "0xabcdef"},
		{in: "abcdef", want: "0xabcdef"},
		{in: "  0xAbCd  ", want: "0xabcd"},
		{in: "", want: ""},
		{in: "   ", want: ""},
		{in: "0x", want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCandidateID(tt.in), "input %q", tt.in)
	}
}
