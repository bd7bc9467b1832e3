package captcha

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// binarizeThreshold separa tinta de fundo após a conversão para cinza.
const binarizeThreshold = 127

// OverlapRatio mede a similaridade estrutural entre duas imagens de carta:
// converte ambas para cinza, redimensiona b para as dimensões de a,
// binariza e retorna a fração de pixels concordantes (1.0 = idênticas).
// É o critério de fallback quando os labels não fecham um match.
func OverlapRatio(a, b image.Image) float64 {
	if a == nil || b == nil {
		return 0
	}
	ga := toGray(a)
	gb := toGray(b)
	if ga.Bounds().Empty() || gb.Bounds().Empty() {
		return 0
	}
	if !ga.Bounds().Eq(gb.Bounds()) {
		resized := image.NewGray(ga.Bounds())
		xdraw.BiLinear.Scale(resized, resized.Bounds(), gb, gb.Bounds(), xdraw.Src, nil)
		gb = resized
	}
	total := ga.Bounds().Dx() * ga.Bounds().Dy()
	diff := 0
	for i := range ga.Pix {
		if (ga.Pix[i] > binarizeThreshold) != (gb.Pix[i] > binarizeThreshold) {
			diff++
		}
	}
	return 1 - float64(diff)/float64(total)
}

// toGray converte com os mesmos pesos de luma do classificador de cor, para
// que binarização e máscara de conteúdo enxerguem a carta do mesmo jeito.
func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) && g.Stride == g.Bounds().Dx() {
		return g
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r16, g16, b16, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			l := grayLuma(uint8(r16>>8), uint8(g16>>8), uint8(b16>>8))
			dst.Pix[y*dst.Stride+x] = uint8(l + 0.5)
		}
	}
	return dst
}
