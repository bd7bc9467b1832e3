package captcha

import (
	"image"
	"image/color"
	"testing"
)

func labeled(labels ...string) []ClassificationResult {
	out := make([]ClassificationResult, len(labels))
	for i, l := range labels {
		out[i] = ClassificationResult{Label: l, Confidence: 0.9}
	}
	return out
}

func TestGreedyMatchLabelsDistintos(t *testing.T) {
	cands := labeled("clubs", "hearts", "spades", "diamonds", "king", "queen")
	a, ok := greedyMatch("spades", "king", cands)
	if !ok {
		t.Fatal("match deveria fechar com ambos os labels presentes")
	}
	if a.Left != 3 || a.Right != 5 {
		t.Errorf("esperava (3,5), veio (%d,%d)", a.Left, a.Right)
	}
}

func TestGreedyMatchMesmoLabel(t *testing.T) {
	// Pergunta pede a mesma carta duas vezes: a esquerda consome a primeira
	// ocorrência e a direita fica com a seguinte
	cands := labeled("hearts", "ace", "ace", "clubs", "ace", "spades")
	a, ok := greedyMatch("ace", "ace", cands)
	if !ok {
		t.Fatal("match deveria fechar com duas ocorrências do label")
	}
	if a.Left != 2 || a.Right != 3 {
		t.Errorf("esperava (2,3), veio (%d,%d)", a.Left, a.Right)
	}
	if a.Left == a.Right {
		t.Error("as posições escolhidas nunca podem coincidir")
	}
}

func TestGreedyMatchIncompleto(t *testing.T) {
	cands := labeled("hearts", "clubs", "spades", "diamonds", "king", "queen")
	if _, ok := greedyMatch("ace", "king", cands); ok {
		t.Error("label ausente nos candidatos não pode fechar match")
	}
	// Única ocorrência consumida pela esquerda: direita fica sem par
	if _, ok := greedyMatch("king", "king", cands); ok {
		t.Error("uma ocorrência só não serve para as duas metades")
	}
}

func TestOverlapMatchSemColisao(t *testing.T) {
	left := []float64{0.1, 0.9, 0.3, 0.2, 0.1, 0.1}
	right := []float64{0.2, 0.1, 0.1, 0.8, 0.3, 0.1}
	a := overlapMatch(left, right)
	if a.Left != 2 || a.Right != 4 {
		t.Errorf("esperava (2,4), veio (%d,%d)", a.Left, a.Right)
	}
}

func TestOverlapMatchColisao(t *testing.T) {
	// Ambas as metades preferem a carta 3: a esquerda mantém e a direita
	// cai para a segunda melhor dela (carta 5)
	left := []float64{0.1, 0.2, 0.9, 0.1, 0.3, 0.1}
	right := []float64{0.1, 0.2, 0.95, 0.1, 0.6, 0.1}
	a := overlapMatch(left, right)
	if a.Left != 3 || a.Right != 5 {
		t.Errorf("esperava (3,5), veio (%d,%d)", a.Left, a.Right)
	}
	if a.Left == a.Right {
		t.Error("colisão deveria ser resolvida com posições distintas")
	}
}

func TestOverlapMatchEmpate(t *testing.T) {
	// Empate exato fica com o índice menor
	left := []float64{0.5, 0.5, 0.1, 0.1, 0.1, 0.1}
	right := []float64{0.1, 0.1, 0.4, 0.4, 0.1, 0.1}
	a := overlapMatch(left, right)
	if a.Left != 1 || a.Right != 3 {
		t.Errorf("esperava (1,3), veio (%d,%d)", a.Left, a.Right)
	}
}

func TestMatchCardsFallbackPorSobreposicao(t *testing.T) {
	// Labels inconclusivos: o matcher degrada para similaridade estrutural
	leftHalf := uniform(20, 30, color.Black)
	rightHalf := uniform(20, 30, color.White)
	imgs := []image.Image{
		uniform(20, 30, color.White),
		uniform(20, 30, color.Black),
		metade(20, 30),
		metade(20, 30),
		metade(20, 30),
		metade(20, 30),
	}
	cands := labeled(LabelUnknown, LabelUnknown, LabelUnknown, LabelUnknown, LabelUnknown, LabelUnknown)
	a := MatchCards(Unknown(), Unknown(), cands, leftHalf, rightHalf, imgs)
	if a.Left != 2 || a.Right != 1 {
		t.Errorf("esperava (2,1), veio (%d,%d)", a.Left, a.Right)
	}
}

func TestMatchCardsGreedyIncompletoDegrada(t *testing.T) {
	// Labels conhecidos mas sem par completo nos candidatos: fallback total
	leftHalf := uniform(20, 30, color.Black)
	rightHalf := uniform(20, 30, color.White)
	imgs := []image.Image{
		uniform(20, 30, color.Black),
		uniform(20, 30, color.White),
		metade(20, 30),
		metade(20, 30),
		metade(20, 30),
		metade(20, 30),
	}
	cands := labeled("hearts", "clubs", "spades", "diamonds", "queen", "jack")
	a := MatchCards(
		ClassificationResult{Label: "king"},
		ClassificationResult{Label: "clubs"},
		cands, leftHalf, rightHalf, imgs,
	)
	if a.Left != 1 || a.Right != 2 {
		t.Errorf("esperava (1,2) via sobreposição, veio (%d,%d)", a.Left, a.Right)
	}
}

func TestMatchCardsPoucosCandidatos(t *testing.T) {
	leftHalf := uniform(20, 30, color.Black)
	rightHalf := uniform(20, 30, color.White)

	a := MatchCards(Unknown(), Unknown(), nil, leftHalf, rightHalf, nil)
	if a.Left != 0 || a.Right != 0 {
		t.Errorf("sem candidatos esperava (0,0), veio (%d,%d)", a.Left, a.Right)
	}

	// Um candidato só: não existe par distinto possível
	imgs := []image.Image{uniform(20, 30, color.Black)}
	cands := labeled("spades")
	a = MatchCards(
		ClassificationResult{Label: "spades"},
		ClassificationResult{Label: "spades"},
		cands, leftHalf, rightHalf, imgs,
	)
	if a.Left != 0 || a.Right != 0 {
		t.Errorf("um candidato só esperava (0,0), veio (%d,%d)", a.Left, a.Right)
	}
}

// metade gera uma carta com a faixa superior de tinta, similaridade ~0.5
// contra cartas totalmente pretas ou brancas.
func metade(w, h int) image.Image {
	img := uniform(w, h, color.White)
	for y := 0; y < h/2; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}
