package generator

import (
	"strings"

	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
)

// Category 试卷类别
type Category string

const (
	MathsMechanics  Category = "MathsMechanics"
	MathsStatistics Category = "MathsStatistics"
	MathsCore       Category = "MathsCore"
)

// Option 出题选题
type Option string

const (
	// 力学
	SUVAT          Option = "SUVAT"
	Momentum       Option = "Momentum"
	Graphs         Option = "Graphs"
	Moments        Option = "Moments"
	Pullies        Option = "Pullies"
	InclinedSlopes Option = "InclinedSlopes"
	Projectiles    Option = "Projectiles"
	Vectors        Option = "Vectors"
	// 统计
	Probability          Option = "Probability"
	HypothesisTesting    Option = "HypothesisTesting"
	NormalDistribution   Option = "NormalDistribution"
	BinomialDistribution Option = "BinomialDistribution"
	// 纯数
	Algebra                 Option = "Algebra"
	Integration             Option = "Integration"
	Differentiation         Option = "Differentiation"
	TrigonometricIdentities Option = "TrigonometricIdentities"
	CoordinateGeometry      Option = "CoordinateGeometry"
	SequencesAndSeries      Option = "SequencesAndSeries"
)

var categories = map[Category]struct{}{
	MathsMechanics:  {},
	MathsStatistics: {},
	MathsCore:       {},
}

// compatibleOptions 类别与选题的兼容表，Graphs 对三个类别都合法
var compatibleOptions = map[Category]map[Option]struct{}{
	MathsMechanics: {
		SUVAT: {}, Momentum: {}, Graphs: {}, Moments: {},
		Pullies: {}, InclinedSlopes: {}, Projectiles: {}, Vectors: {},
	},
	MathsStatistics: {
		Graphs: {}, Probability: {}, HypothesisTesting: {},
		NormalDistribution: {}, BinomialDistribution: {},
	},
	MathsCore: {
		Graphs: {}, Algebra: {}, Integration: {}, Differentiation: {},
		TrigonometricIdentities: {}, CoordinateGeometry: {}, SequencesAndSeries: {},
	},
}

// ParseCategory 解析类别字符串
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := categories[c]; !ok {
		return "", appErrors.ErrUnknownCategory("'%s' is not a valid category", s)
	}
	return c, nil
}

// ParseOption 解析选题字符串
func ParseOption(s string) (Option, error) {
	o := Option(s)
	for _, opts := range compatibleOptions {
		if _, ok := opts[o]; ok {
			return o, nil
		}
	}
	return "", appErrors.ErrInvalidChoices("'%s' is not a valid option", s)
}

// ParseOptions 解析逗号分隔的选题列表（数据库存储格式）
func ParseOptions(s string) ([]Option, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	options := make([]Option, 0, len(parts))
	for _, part := range parts {
		o, err := ParseOption(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, nil
}

// JoinOptions 将选题列表序列化为逗号分隔字符串
func JoinOptions(options []Option) string {
	parts := make([]string, len(options))
	for i, o := range options {
		parts[i] = string(o)
	}
	return strings.Join(parts, ",")
}

// ValidateChoices 校验一次提交的选题：非空、不超限、无重复、与类别兼容
func ValidateChoices(category Category, options []Option, maxChoices int) error {
	if len(options) == 0 {
		return appErrors.ErrInvalidChoices("at least one option is required")
	}
	if len(options) > maxChoices {
		return appErrors.ErrInvalidChoices("at most %d options are allowed, got %d", maxChoices, len(options))
	}
	compat, ok := compatibleOptions[category]
	if !ok {
		return appErrors.ErrUnknownCategory("'%s' is not a valid category", category)
	}
	seen := make(map[Option]struct{}, len(options))
	for _, o := range options {
		if _, dup := seen[o]; dup {
			return appErrors.ErrInvalidChoices("duplicate option '%s'", o)
		}
		seen[o] = struct{}{}
		if _, ok := compat[o]; !ok {
			return appErrors.ErrInvalidChoices("option '%s' is not compatible with category '%s'", o, category)
		}
	}
	return nil
}
