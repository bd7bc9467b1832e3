package captcha

import "image"

// Constantes calibradas da heurística de cor. O matiz usa a escala 0..180
// (meio grau por unidade) e saturação/valor a escala 0..255, então os bands
// de vermelho ficam em [0,10] e [160,180].
const (
	redHueLow       = 10
	redHueHigh      = 160
	redSatMin       = 70
	redValMin       = 50
	contentGrayMax  = 200
	redRatioMinimum = 0.2
)

// ClassifyColor decide entre vermelho e preto contando pixels vermelhos
// (máscara HSV) contra pixels de conteúdo (tinta escura sobre o fundo claro
// da carta). Cartas sem conteúdo algum retornam LabelUnknown em vez de um
// chute: melhor degradar para o fallback do que envenenar o matcher.
func ClassifyColor(img image.Image) string {
	if img == nil {
		return LabelUnknown
	}
	b := img.Bounds()
	redPixels := 0
	contentPixels := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r := uint8(r16 >> 8)
			g := uint8(g16 >> 8)
			bl := uint8(b16 >> 8)
			h, s, v := rgbToHSV(r, g, bl)
			if (h <= redHueLow || h >= redHueHigh) && s >= redSatMin && v >= redValMin {
				redPixels++
			}
			if grayLuma(r, g, bl) < contentGrayMax {
				contentPixels++
			}
		}
	}
	if contentPixels == 0 {
		return LabelUnknown
	}
	if float64(redPixels)/float64(contentPixels) > redRatioMinimum {
		return ColorRed
	}
	return ColorBlack
}

// rgbToHSV converte para HSV com H em 0..180, S e V em 0..255.
func rgbToHSV(r, g, b uint8) (h, s, v float64) {
	rf := float64(r)
	gf := float64(g)
	bf := float64(b)
	max := rf
	if gf > max {
		max = gf
	}
	if bf > max {
		max = bf
	}
	min := rf
	if gf < min {
		min = gf
	}
	if bf < min {
		min = bf
	}
	v = max
	delta := max - min
	if max > 0 {
		s = 255 * delta / max
	}
	if delta == 0 {
		return 0, s, v
	}
	var deg float64
	switch max {
	case rf:
		deg = 60 * (gf - bf) / delta
	case gf:
		deg = 120 + 60*(bf-rf)/delta
	default:
		deg = 240 + 60*(rf-gf)/delta
	}
	if deg < 0 {
		deg += 360
	}
	return deg / 2, s, v
}

// grayLuma reproduz a conversão padrão para tons de cinza (pesos BT.601).
func grayLuma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}
