package captcha

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func uniform(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func TestSplitQuestionDimensoes(t *testing.T) {
	src := uniform(200, 80, color.White)
	left, right := SplitQuestion(src)

	if left.Bounds().Dx() != 100 || left.Bounds().Dy() != 80 {
		t.Errorf("metade esquerda com dimensões erradas: %v", left.Bounds())
	}
	if right.Bounds().Dx() != 100 || right.Bounds().Dy() != 80 {
		t.Errorf("metade direita com dimensões erradas: %v", right.Bounds())
	}
}

func TestSplitQuestionLarguraImpar(t *testing.T) {
	src := uniform(101, 40, color.White)
	left, right := SplitQuestion(src)

	// Coluna do meio pertence à metade direita
	if left.Bounds().Dx() != 50 {
		t.Errorf("esquerda deveria ter 50 colunas, tem %d", left.Bounds().Dx())
	}
	if right.Bounds().Dx() != 51 {
		t.Errorf("direita deveria ter 51 colunas, tem %d", right.Bounds().Dx())
	}
}

func TestSplitQuestionPreservaPixels(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	vermelho := color.RGBA{R: 255, A: 255}
	azul := color.RGBA{B: 255, A: 255}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			src.Set(x, y, vermelho)
			src.Set(x+2, y, azul)
		}
	}

	left, right := SplitQuestion(src)
	if r, _, _, _ := left.At(1, 1).RGBA(); r>>8 != 255 {
		t.Errorf("metade esquerda perdeu o conteúdo vermelho")
	}
	if _, _, b, _ := right.At(0, 0).RGBA(); b>>8 != 255 {
		t.Errorf("metade direita perdeu o conteúdo azul")
	}

	// As metades são cópias: alterar a origem não pode vazar
	src.Set(0, 0, azul)
	if r, _, _, _ := left.At(0, 0).RGBA(); r>>8 != 255 {
		t.Errorf("metade esquerda compartilha buffer com a origem")
	}
}
