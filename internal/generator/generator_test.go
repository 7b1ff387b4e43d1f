package generator

import (
	"math/rand"
	"testing"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("MathsMechanics")
	require.NoError(t, err)
	assert.Equal(t, MathsMechanics, c)

	_, err = ParseCategory("MathsChemistry")
	require.Error(t, err)
	assert.Equal(t, appErrors.ReasonUnknownCategory, kerrors.Reason(err))
}

func TestParseOptionsRoundTrip(t *testing.T) {
	options, err := ParseOptions("SUVAT, Vectors,Graphs")
	require.NoError(t, err)
	assert.Equal(t, []Option{SUVAT, Vectors, Graphs}, options)
	assert.Equal(t, "SUVAT,Vectors,Graphs", JoinOptions(options))

	_, err = ParseOptions("SUVAT,Telepathy")
	require.Error(t, err)

	options, err = ParseOptions("")
	require.NoError(t, err)
	assert.Empty(t, options)
}

func TestValidateChoices(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		options  []Option
		reason   string
	}{
		{"valid mechanics", MathsMechanics, []Option{SUVAT, Vectors}, ""},
		{"graphs valid everywhere", MathsStatistics, []Option{Graphs}, ""},
		{"empty", MathsCore, nil, appErrors.ReasonInvalidChoices},
		{"too many", MathsMechanics, []Option{SUVAT, Vectors, Graphs, Moments, Pullies}, appErrors.ReasonInvalidChoices},
		{"duplicate", MathsMechanics, []Option{SUVAT, SUVAT}, appErrors.ReasonInvalidChoices},
		{"wrong category", MathsCore, []Option{SUVAT}, appErrors.ReasonInvalidChoices},
		{"unknown category", Category("MathsChemistry"), []Option{Graphs}, appErrors.ReasonUnknownCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChoices(tt.category, tt.options, 4)
			if tt.reason == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.reason, kerrors.Reason(err))
			}
		})
	}
}

func TestPaperPopulate(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	paper := NewPaper(101, MathsMechanics, []Option{SUVAT, Vectors})
	require.NoError(t, paper.Populate(r))
	// 每个选题出 questionsPerTopic 轮，每轮一道组合题
	assert.Len(t, paper.Questions, 2*questionsPerTopic)
	for _, q := range paper.Questions {
		assert.NotEmpty(t, q.Header.RawText)
		assert.NotEmpty(t, q.Parts)
	}
}

func TestPaperPopulateUnsupportedOption(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	paper := NewPaper(101, MathsMechanics, []Option{SUVAT, Pullies})
	err := paper.Populate(r)
	require.Error(t, err)
	assert.Equal(t, appErrors.ReasonUnsupportedOption, kerrors.Reason(err))
	assert.True(t, appErrors.IsUnsupportedOption(err))
	assert.False(t, appErrors.IsRetryable(err))
}

func TestAlgebraRootsConsistent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		qs := generateAlgebra(r)
		require.Len(t, qs, 1)
		assert.NotEmpty(t, qs[0].MarkScheme.RawText)
	}
}
