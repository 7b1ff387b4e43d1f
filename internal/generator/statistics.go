package generator

import (
	"fmt"
	"math/rand"
)

// generateProbability 独立事件概率：从袋中有放回抽球
func generateProbability(r *rand.Rand) []Question {
	red := randRange(r, 2, 7)
	blue := randRange(r, 2, 7)
	total := red + blue

	header := QuestionHeader{
		RawText: fmt.Sprintf(
			"A bag contains %d red counters and %d blue counters. A counter is taken at random, its colour recorded, and it is returned to the bag. This is done twice.",
			red, blue),
		LatexText: fmt.Sprintf(
			`A bag contains \(%d\) red counters and \(%d\) blue counters. A counter is taken at random, its colour recorded, and it is returned to the bag. This is done twice.`,
			red, blue),
	}

	partA := Question{
		Header: QuestionHeader{
			RawText:   "Find the probability that both counters recorded are red.",
			LatexText: "Find the probability that both counters recorded are red.",
		},
		MarkScheme: MarkScheme{
			RawText: fmt.Sprintf(
				"Draws are independent, so P(RR) = (%d/%d)^2 = %d/%d.",
				red, total, red*red, total*total),
			LatexText: fmt.Sprintf(
				`Draws are independent, so \(P(RR) = \left(\frac{%d}{%d}\right)^2 = \frac{%d}{%d}\).`,
				red, total, red*red, total*total),
		},
	}

	partB := Question{
		Header: QuestionHeader{
			RawText:   "Find the probability that the two counters recorded are different colours.",
			LatexText: "Find the probability that the two counters recorded are different colours.",
		},
		MarkScheme: MarkScheme{
			RawText: fmt.Sprintf(
				"P(different) = 2 * (%d/%d) * (%d/%d) = %d/%d.",
				red, total, blue, total, 2*red*blue, total*total),
			LatexText: fmt.Sprintf(
				`\(P(\text{different}) = 2 \cdot \frac{%d}{%d} \cdot \frac{%d}{%d} = \frac{%d}{%d}\).`,
				red, total, blue, total, 2*red*blue, total*total),
		},
	}

	return []Question{Grouped(header, partA, partB)}
}

// generateBinomial 二项分布建模与单点概率
func generateBinomial(r *rand.Rand) []Question {
	n := randRange(r, 8, 15)
	k := randRange(r, 2, 5)
	pNum := randRange(r, 1, 5)
	const pDen = 10

	header := QuestionHeader{
		RawText: fmt.Sprintf(
			"The probability that a seed germinates is %d/%d, independently of all other seeds. A gardener plants %d seeds and X is the number that germinate.",
			pNum, pDen, n),
		LatexText: fmt.Sprintf(
			`The probability that a seed germinates is \(\frac{%d}{%d}\), independently of all other seeds. A gardener plants \(%d\) seeds and \(X\) is the number that germinate.`,
			pNum, pDen, n),
	}

	partA := Question{
		Header: QuestionHeader{
			RawText:   "State a suitable model for the distribution of X.",
			LatexText: `State a suitable model for the distribution of \(X\).`,
		},
		MarkScheme: MarkScheme{
			RawText: fmt.Sprintf(
				"Fixed number of independent trials with constant success probability, so X ~ B(%d, %d/%d).",
				n, pNum, pDen),
			LatexText: fmt.Sprintf(
				`Fixed number of independent trials with constant success probability, so \(X \sim B(%d, \frac{%d}{%d})\).`,
				n, pNum, pDen),
		},
	}

	partB := Question{
		Header: QuestionHeader{
			RawText:   fmt.Sprintf("Write an expression for P(X = %d).", k),
			LatexText: fmt.Sprintf(`Write an expression for \(P(X = %d)\).`, k),
		},
		MarkScheme: MarkScheme{
			RawText: fmt.Sprintf(
				"P(X = %d) = C(%d, %d) * (%d/%d)^%d * (%d/%d)^%d.",
				k, n, k, pNum, pDen, k, pDen-pNum, pDen, n-k),
			LatexText: fmt.Sprintf(
				`\(P(X = %d) = \binom{%d}{%d}\left(\frac{%d}{%d}\right)^{%d}\left(\frac{%d}{%d}\right)^{%d}\).`,
				k, n, k, pNum, pDen, k, pDen-pNum, pDen, n-k),
		},
	}

	return []Question{Grouped(header, partA, partB)}
}
