package captcha

import "image"

// MatchCards escolhe as duas cartas candidatas que respondem o desafio.
// Primeiro tenta o caminho barato: igualdade de labels, varrendo os slots em
// ordem (first-fit). Se qualquer metade ficou sem label confiável ou o
// greedy não fechou as duas posições, ambas as metades degradam para o
// matching por similaridade de sobreposição.
//
// Com menos de dois candidatos não existe par distinto: retorna o zero value
// (slots 0/0) em vez de um par degenerado.
func MatchCards(left, right ClassificationResult, candidates []ClassificationResult, leftHalf, rightHalf image.Image, cardImages []image.Image) MatchAssignment {
	if len(cardImages) < 2 {
		return MatchAssignment{}
	}
	if left.Label != LabelUnknown && right.Label != LabelUnknown {
		if a, ok := greedyMatch(left.Label, right.Label, candidates); ok {
			return a
		}
	}
	leftSims := make([]float64, len(cardImages))
	rightSims := make([]float64, len(cardImages))
	for i, img := range cardImages {
		leftSims[i] = OverlapRatio(leftHalf, img)
		rightSims[i] = OverlapRatio(rightHalf, img)
	}
	return overlapMatch(leftSims, rightSims)
}

// greedyMatch percorre os candidatos em ordem de slot. A metade esquerda tem
// prioridade: o primeiro candidato com o label dela é consumido e nunca
// reusado pela direita, mesmo com labels iguais. Retorna ok=false se alguma
// posição ficou sem par.
func greedyMatch(leftLabel, rightLabel string, candidates []ClassificationResult) (MatchAssignment, bool) {
	var a MatchAssignment
	for i, c := range candidates {
		if a.Left == 0 && c.Label == leftLabel {
			a.Left = i + 1
			continue
		}
		if a.Right == 0 && c.Label == rightLabel {
			a.Right = i + 1
		}
		if a.Left != 0 && a.Right != 0 {
			break
		}
	}
	return a, a.Left != 0 && a.Right != 0
}

// overlapMatch escolhe, para cada metade, o candidato de maior similaridade.
// Em colisão a esquerda mantém a escolha e a direita cai para a sua segunda
// melhor opção, então o par retornado é sempre distinto.
func overlapMatch(leftSims, rightSims []float64) MatchAssignment {
	bestLeft := argmax(leftSims)
	bestRight := argmax(rightSims)
	if bestRight == bestLeft {
		demoted := make([]float64, len(rightSims))
		copy(demoted, rightSims)
		demoted[bestLeft] = -1
		bestRight = argmax(demoted)
	}
	return MatchAssignment{Left: bestLeft + 1, Right: bestRight + 1}
}

// argmax retorna o índice do maior valor; empates ficam com o primeiro.
func argmax(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}
	return best
}
