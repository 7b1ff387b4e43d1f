package generator

// QuestionHeader 题干，同时携带纯文本与 LaTeX 两种排版
type QuestionHeader struct {
	RawText   string `json:"raw_text"`
	LatexText string `json:"latex_text"`
}

// MarkScheme 评分标准
type MarkScheme struct {
	RawText   string `json:"raw_text"`
	LatexText string `json:"latex_text"`
}

// Question 单题：题头 + 题面 + 评分标准
type Question struct {
	Header     QuestionHeader `json:"header"`
	RawText    string         `json:"raw_text"`
	LatexText  string         `json:"latex_text"`
	MarkScheme MarkScheme     `json:"mark_scheme"`
	// Parts 非空时表示一道带小问的组合题，此时题面字段为空
	Parts []Question `json:"parts,omitempty"`
}

// NewQuestion 以题头创建空题
func NewQuestion(header QuestionHeader) Question {
	return Question{Header: header}
}

// Grouped 以共享题头组合若干小问
func Grouped(header QuestionHeader, parts ...Question) Question {
	return Question{Header: header, Parts: parts}
}
