package generator

import (
	"math/rand"
	"time"

	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
)

// questionsPerTopic 每个选题出题轮数
const questionsPerTopic = 3

// optionGenerator 单轮出题函数，一轮可以产出多道题
type optionGenerator func(r *rand.Rand) []Question

// engines 各类别已实现引擎的选题表。未登记的选题视为暂不支持，
// 生成时返回终态错误而不是静默跳过。
var engines = map[Category]map[Option]optionGenerator{
	MathsMechanics: {
		SUVAT:   generateSUVAT,
		Vectors: generateVectors,
	},
	MathsStatistics: {
		Probability:          generateProbability,
		BinomialDistribution: generateBinomial,
	},
	MathsCore: {
		Algebra:         generateAlgebra,
		Differentiation: generateDifferentiation,
		Integration:     generateIntegration,
	},
}

// Paper 生成的试卷，作为产物序列化后上传
type Paper struct {
	Questions []Question `json:"questions"`
	CreatedBy int64      `json:"created_by"`
	CreatedOn time.Time  `json:"created_on"`
	Category  Category   `json:"generated_category"`
	Options   []Option   `json:"generated_options"`
}

// NewPaper 创建待填充的试卷
func NewPaper(createdBy int64, category Category, options []Option) *Paper {
	return &Paper{
		CreatedBy: createdBy,
		CreatedOn: time.Now().UTC(),
		Category:  category,
		Options:   options,
	}
}

// Populate 按选题填充题目。遇到没有引擎的选题返回 GEN_UNSUPPORTED_OPTION，
// 该错误是终态，调用方不应重试。
func (p *Paper) Populate(r *rand.Rand) error {
	byOption, ok := engines[p.Category]
	if !ok {
		return appErrors.ErrUnknownCategory("'%s' is not a valid category", p.Category)
	}
	for _, option := range p.Options {
		gen, ok := byOption[option]
		if !ok {
			return appErrors.ErrUnsupportedOption("no generator for option '%s' in category '%s'", option, p.Category)
		}
		for i := 0; i < questionsPerTopic; i++ {
			p.Questions = append(p.Questions, gen(r)...)
		}
	}
	return nil
}
