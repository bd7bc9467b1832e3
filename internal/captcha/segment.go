package captcha

import (
	"fmt"
	"image"
	"image/draw"
	"time"
)

// SplitQuestion divide a imagem da pergunta em duas metades no eixo vertical.
// A metade esquerda recebe floor(w/2) colunas; com largura ímpar a coluna
// central vai para a direita. As metades são cópias independentes da origem.
func SplitQuestion(img image.Image) (left, right image.Image) {
	b := img.Bounds()
	mid := b.Min.X + b.Dx()/2
	left = cropCopy(img, image.Rect(b.Min.X, b.Min.Y, mid, b.Max.Y))
	right = cropCopy(img, image.Rect(mid, b.Min.Y, b.Max.X, b.Max.Y))
	return left, right
}

// cropCopy materializa um retângulo da imagem numa RGBA nova, para que as
// metades sobrevivam independentes do buffer de captura.
func cropCopy(src image.Image, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return dst
}

// CaptureQuestion espera a imagem da pergunta ficar visível e a captura.
func CaptureQuestion(vp Viewport, sel Selectors, timeout time.Duration) (image.Image, error) {
	el, err := vp.WaitVisible(sel.Question, timeout)
	if err != nil {
		return nil, fmt.Errorf("imagem da pergunta não encontrada: %w", err)
	}
	img, err := el.Capture()
	if err != nil {
		return nil, fmt.Errorf("falha ao capturar pergunta: %w", err)
	}
	if img == nil || img.Bounds().Dx() < 2 || img.Bounds().Dy() < 1 {
		return nil, ErrEmptyImage
	}
	return img, nil
}

// CaptureCandidates captura as seis cartas candidatas na ordem dos slots.
// Falha em qualquer slot aborta a tentativa inteira: um conjunto parcial
// produziria matches sem sentido.
func CaptureCandidates(vp Viewport, sel Selectors, timeout time.Duration) ([]CandidateCard, error) {
	cards := make([]CandidateCard, 0, len(sel.Cards))
	for i, s := range sel.Cards {
		el, err := vp.WaitVisible(s, timeout)
		if err != nil {
			return nil, fmt.Errorf("carta candidata %d não encontrada: %w", i+1, err)
		}
		img, err := el.Capture()
		if err != nil {
			return nil, fmt.Errorf("falha ao capturar carta %d: %w", i+1, err)
		}
		if img == nil || img.Bounds().Empty() {
			return nil, fmt.Errorf("carta %d: %w", i+1, ErrEmptyImage)
		}
		cards = append(cards, CandidateCard{Index: i + 1, Image: img, El: el})
	}
	return cards, nil
}
