package generator

import (
	"fmt"
	"math/rand"
)

// generateSUVAT 匀加速直线运动组合题：已知某时刻速度与恒定加速度，
// 求另一时刻的速度和位移
func generateSUVAT(r *rand.Rand) []Question {
	name, label := randParticle(r)
	t0 := randRange(r, 0, 6)
	t1 := randRangeExcept(r, 0, 6, t0)

	ai, aj := randRangeExcept(r, -10, 10, 0), randRangeExcept(r, -10, 10, 0)
	vi, vj := randRangeExcept(r, -10, 10, 0), randRangeExcept(r, -10, 10, 0)

	header := QuestionHeader{
		RawText: fmt.Sprintf(
			"A %s, %s, is modelled as a particle and moves with constant acceleration %s m/s^2. At time T = %d seconds %s is moving with velocity %s m/s.",
			name, label, formatVecRaw(ai, aj), t0, label, formatVecRaw(vi, vj)),
		LatexText: fmt.Sprintf(
			`A %s, \(%s\), is modelled as a particle and moves with constant acceleration \(%s\,\mathrm{ms^{-2}}\). At time \(T = %d\) seconds \(%s\) is moving with velocity \(%s\,\mathrm{ms^{-1}}\).`,
			name, label, formatVecLatex(ai, aj), t0, label, formatVecLatex(vi, vj)),
	}

	// v(t) = v0 + a(t - t0)
	uvi, uvj := vi+ai*(t1-t0), vj+aj*(t1-t0)
	partA := Question{
		Header: QuestionHeader{
			RawText:   fmt.Sprintf("Find the velocity of %s at T = %d seconds.", label, t1),
			LatexText: fmt.Sprintf(`Find the velocity of \(%s\) at \(T = %d\) seconds.`, label, t1),
		},
		MarkScheme: MarkScheme{
			RawText: fmt.Sprintf(
				"Use v = u + at with the interval between T = %d and T = %d to obtain v = %s m/s.",
				t0, t1, formatVecRaw(uvi, uvj)),
			LatexText: fmt.Sprintf(
				`Use \(\mathbf{v} = \mathbf{u} + \mathbf{a}t\) over the interval to obtain \(\mathbf{v} = %s\,\mathrm{ms^{-1}}\).`,
				formatVecLatex(uvi, uvj)),
		},
	}

	// s = u*dt + a*dt^2/2，dt 取偶数保证整数结果
	dt := 2 * randRange(r, 1, 4)
	si, sj := vi*dt+ai*dt*dt/2, vj*dt+aj*dt*dt/2
	partB := Question{
		Header: QuestionHeader{
			RawText: fmt.Sprintf(
				"Find the displacement of %s from its position at T = %d after a further %d seconds.", label, t0, dt),
			LatexText: fmt.Sprintf(
				`Find the displacement of \(%s\) from its position at \(T = %d\) after a further \(%d\) seconds.`, label, t0, dt),
		},
		MarkScheme: MarkScheme{
			RawText: fmt.Sprintf(
				"Use s = ut + at^2/2 with t = %d to obtain s = %s m.", dt, formatVecRaw(si, sj)),
			LatexText: fmt.Sprintf(
				`Use \(\mathbf{s} = \mathbf{u}t + \tfrac{1}{2}\mathbf{a}t^2\) with \(t = %d\) to obtain \(\mathbf{s} = %s\,\mathrm{m}\).`,
				dt, formatVecLatex(si, sj)),
		},
	}

	return []Question{Grouped(header, partA, partB)}
}

// generateVectors 力的合成：两个已知力作用于质点，求合力与合加速度
func generateVectors(r *rand.Rand) []Question {
	name, label := randParticle(r)
	mass := randRange(r, 1, 5)

	f1i, f1j := randRangeExcept(r, -8, 8, 0), randRangeExcept(r, -8, 8, 0)
	f2i, f2j := randRangeExcept(r, -8, 8, 0), randRangeExcept(r, -8, 8, 0)
	// 保证合力非零
	for f1i+f2i == 0 && f1j+f2j == 0 {
		f2i, f2j = randRangeExcept(r, -8, 8, 0), randRangeExcept(r, -8, 8, 0)
	}
	ri, rj := f1i+f2i, f1j+f2j

	header := QuestionHeader{
		RawText: fmt.Sprintf(
			"Two forces %s N and %s N act on a %s, %s, of mass %d kg modelled as a particle.",
			formatVecRaw(f1i, f1j), formatVecRaw(f2i, f2j), name, label, mass),
		LatexText: fmt.Sprintf(
			`Two forces \(%s\,\mathrm{N}\) and \(%s\,\mathrm{N}\) act on a %s, \(%s\), of mass \(%d\,\mathrm{kg}\) modelled as a particle.`,
			formatVecLatex(f1i, f1j), formatVecLatex(f2i, f2j), name, label, mass),
	}

	partA := Question{
		Header: QuestionHeader{
			RawText:   fmt.Sprintf("Find the resultant force acting on %s.", label),
			LatexText: fmt.Sprintf(`Find the resultant force acting on \(%s\).`, label),
		},
		MarkScheme: MarkScheme{
			RawText:   fmt.Sprintf("Sum the components to obtain R = %s N.", formatVecRaw(ri, rj)),
			LatexText: fmt.Sprintf(`Sum the components to obtain \(\mathbf{R} = %s\,\mathrm{N}\).`, formatVecLatex(ri, rj)),
		},
	}

	partB := Question{
		Header: QuestionHeader{
			RawText:   fmt.Sprintf("Find the magnitude-squared of the acceleration of %s times %d^2.", label, mass),
			LatexText: fmt.Sprintf(`Hence find \(|%d\mathbf{a}|^2\), where \(\mathbf{a}\) is the acceleration of \(%s\).`, mass, label),
		},
		MarkScheme: MarkScheme{
			RawText: fmt.Sprintf(
				"Apply F = ma, so ma = %s and |ma|^2 = %d.", formatVecRaw(ri, rj), ri*ri+rj*rj),
			LatexText: fmt.Sprintf(
				`Apply \(\mathbf{F} = m\mathbf{a}\), so \(m\mathbf{a} = %s\) and \(|m\mathbf{a}|^2 = %d\).`,
				formatVecLatex(ri, rj), ri*ri+rj*rj),
		},
	}

	return []Question{Grouped(header, partA, partB)}
}
