package generator

import (
	"fmt"
	"math/rand"
)

var particleNames = []string{"ball", "stone", "crate", "block", "toy car", "marble"}

var particleLabels = []string{"P", "Q", "R", "S"}

// randParticle 随机拟题对象与代号
func randParticle(r *rand.Rand) (name, label string) {
	return particleNames[r.Intn(len(particleNames))], particleLabels[r.Intn(len(particleLabels))]
}

// randRange [min, max) 均匀整数
func randRange(r *rand.Rand, min, max int) int {
	return min + r.Intn(max-min)
}

// randRangeExcept [min, max) 均匀整数，跳过 except
func randRangeExcept(r *rand.Rand, min, max, except int) int {
	for {
		v := randRange(r, min, max)
		if v != except {
			return v
		}
	}
}

// formatVecRaw 以 ai + bj 形式渲染二维向量（纯文本）
func formatVecRaw(i, j int) string {
	if j < 0 {
		return fmt.Sprintf("(%di - %dj)", i, -j)
	}
	return fmt.Sprintf("(%di + %dj)", i, j)
}

// formatVecLatex 以 ai + bj 形式渲染二维向量（LaTeX）
func formatVecLatex(i, j int) string {
	if j < 0 {
		return fmt.Sprintf(`(%d\mathbf{i} - %d\mathbf{j})`, i, -j)
	}
	return fmt.Sprintf(`(%d\mathbf{i} + %d\mathbf{j})`, i, j)
}
