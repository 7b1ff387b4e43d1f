package generator

import (
	"fmt"
	"math/rand"
)

// generateAlgebra 因式分解求根：构造已知整数根的二次方程
func generateAlgebra(r *rand.Rand) []Question {
	p := randRange(r, 1, 7)
	q := randRangeExcept(r, -7, 0, -p)
	// (x - p)(x - q) = x^2 - (p+q)x + pq
	b, c := -(p + q), p*q

	question := Question{
		Header: QuestionHeader{
			RawText:   fmt.Sprintf("Solve x^2 %+dx %+d = 0.", b, c),
			LatexText: fmt.Sprintf(`Solve \(x^2 %+dx %+d = 0\).`, b, c),
		},
		MarkScheme: MarkScheme{
			RawText: fmt.Sprintf(
				"Factorise as (x - %d)(x + %d) = 0, giving x = %d or x = %d.", p, -q, p, q),
			LatexText: fmt.Sprintf(
				`Factorise as \((x - %d)(x %+d) = 0\), giving \(x = %d\) or \(x = %d\).`, p, -q, p, q),
		},
	}
	return []Question{question}
}

// generateDifferentiation 多项式求导与驻点斜率
func generateDifferentiation(r *rand.Rand) []Question {
	a := randRange(r, 1, 5)
	b := randRangeExcept(r, -6, 6, 0)
	c := randRangeExcept(r, -9, 9, 0)
	x0 := randRange(r, 1, 4)

	header := QuestionHeader{
		RawText:   fmt.Sprintf("A curve has equation y = %dx^3 %+dx^2 %+dx.", a, b, c),
		LatexText: fmt.Sprintf(`A curve has equation \(y = %dx^3 %+dx^2 %+dx\).`, a, b, c),
	}

	partA := Question{
		Header: QuestionHeader{
			RawText:   "Find dy/dx.",
			LatexText: `Find \(\frac{dy}{dx}\).`,
		},
		MarkScheme: MarkScheme{
			RawText:   fmt.Sprintf("Differentiate term by term: dy/dx = %dx^2 %+dx %+d.", 3*a, 2*b, c),
			LatexText: fmt.Sprintf(`Differentiate term by term: \(\frac{dy}{dx} = %dx^2 %+dx %+d\).`, 3*a, 2*b, c),
		},
	}

	slope := 3*a*x0*x0 + 2*b*x0 + c
	partB := Question{
		Header: QuestionHeader{
			RawText:   fmt.Sprintf("Find the gradient of the curve at x = %d.", x0),
			LatexText: fmt.Sprintf(`Find the gradient of the curve at \(x = %d\).`, x0),
		},
		MarkScheme: MarkScheme{
			RawText:   fmt.Sprintf("Substitute x = %d into the derivative to obtain %d.", x0, slope),
			LatexText: fmt.Sprintf(`Substitute \(x = %d\) into the derivative to obtain \(%d\).`, x0, slope),
		},
	}

	return []Question{Grouped(header, partA, partB)}
}

// generateIntegration 多项式不定积分，系数保证整除
func generateIntegration(r *rand.Rand) []Question {
	a := 3 * randRange(r, 1, 4)
	b := 2 * randRangeExcept(r, -4, 4, 0)
	c := randRangeExcept(r, -9, 9, 0)

	question := Question{
		Header: QuestionHeader{
			RawText:   fmt.Sprintf("Find the integral of %dx^2 %+dx %+d with respect to x.", a, b, c),
			LatexText: fmt.Sprintf(`Find \(\int %dx^2 %+dx %+d \,dx\).`, a, b, c),
		},
		MarkScheme: MarkScheme{
			RawText: fmt.Sprintf(
				"Raise each power by one and divide: %dx^3 %+dx^2 %+dx + C.", a/3, b/2, c),
			LatexText: fmt.Sprintf(
				`Raise each power by one and divide: \(%dx^3 %+dx^2 %+dx + C\).`, a/3, b/2, c),
		},
	}
	return []Question{question}
}
