package captcha

import (
	"bufio"
	"fmt"
	"image"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
)

// classifierInputSize é o lado da imagem quadrada esperada pelo modelo.
const classifierInputSize = 64

// O runtime ONNX é processo-global: inicializa uma vez e nunca desliga.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initRuntime(libPath string) error {
	ortInitOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// CardClassifier embrulha o modelo visual pré-treinado de cartas. O modelo é
// caixa-preta: só consumimos o label top-1 e a confiança, validados contra o
// vocabulário fechado.
type CardClassifier struct {
	session    *ort.DynamicAdvancedSession
	options    *ort.SessionOptions
	inputName  string
	outputName string
	labels     []string
}

// NewCardClassifier carrega o modelo e o arquivo de labels (um por linha, na
// ordem das classes de saída). Deve ser chamado uma vez e o resultado
// compartilhado: sessões ONNX são caras.
func NewCardClassifier(modelPath, labelsPath, runtimeLib string) (*CardClassifier, error) {
	if err := initRuntime(runtimeLib); err != nil {
		return nil, fmt.Errorf("falha ao inicializar runtime ONNX: %w", err)
	}

	labels, err := loadLabels(labelsPath)
	if err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("falha ao ler informações do modelo: %w", err)
	}

	c := &CardClassifier{labels: labels}
	c.options, err = ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	_ = c.options.SetIntraOpNumThreads(1)
	_ = c.options.SetInterOpNumThreads(1)
	_ = c.options.SetGraphOptimizationLevel(ort.GraphOptimizationLevel(99))

	c.session, err = ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		c.options,
	)
	if err != nil {
		c.options.Destroy()
		return nil, err
	}
	c.inputName = inputs[0].Name
	c.outputName = outputs[0].Name
	return c, nil
}

// Predict roda a inferência e retorna a classe top-1 com a probabilidade
// pós-softmax. Labels fora do vocabulário degradam para LabelUnknown.
func (c *CardClassifier) Predict(img image.Image) (ClassificationResult, error) {
	if img == nil || img.Bounds().Empty() {
		return Unknown(), ErrEmptyImage
	}

	resized := resize.Resize(classifierInputSize, classifierInputSize, img, resize.Bilinear)
	inputData := imageToRGBFloat32(resized, classifierInputSize, classifierInputSize)

	inputShape := ort.NewShape(1, 3, classifierInputSize, classifierInputSize)
	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return Unknown(), err
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := c.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return Unknown(), err
	}
	if outputs[0] == nil {
		return Unknown(), fmt.Errorf("modelo não produziu saída")
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return Unknown(), fmt.Errorf("tipo de saída do modelo não suportado")
	}

	probs := softmax(outputTensor.GetData())
	if len(probs) == 0 {
		return Unknown(), fmt.Errorf("saída do modelo vazia")
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	if best >= len(c.labels) || !ValidLabel(c.labels[best]) {
		return Unknown(), nil
	}
	return ClassificationResult{Label: c.labels[best], Confidence: probs[best]}, nil
}

// Close libera a sessão e as opções. O runtime global fica de pé.
func (c *CardClassifier) Close() {
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.options != nil {
		c.options.Destroy()
		c.options = nil
	}
}

// Classify é a fronteira soft-fail do classificador: qualquer erro, label
// inválido ou predictor ausente vira LabelUnknown, nunca um erro propagado.
func Classify(p Predictor, img image.Image) ClassificationResult {
	if p == nil || img == nil {
		return Unknown()
	}
	res, err := p.Predict(img)
	if err != nil || !ValidLabel(res.Label) {
		return Unknown()
	}
	return res
}

func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("falha ao abrir labels do modelo: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("arquivo de labels vazio: %s", path)
	}
	return labels, nil
}

// imageToRGBFloat32 monta o tensor CHW normalizado em [0,1].
func imageToRGBFloat32(img image.Image, width, height int) []float32 {
	data := make([]float32, 3*width*height)
	b := img.Bounds()
	plane := width * height
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r16, g16, b16, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			idx := y*width + x
			data[idx] = float32(r16>>8) / 255.0
			data[plane+idx] = float32(g16>>8) / 255.0
			data[2*plane+idx] = float32(b16>>8) / 255.0
		}
	}
	return data
}

func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	max := logits[0]
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	var sum float64
	exps := make([]float64, len(logits))
	for i, v := range logits {
		exps[i] = math.Exp(float64(v - max))
		sum += exps[i]
	}
	out := make([]float32, len(logits))
	for i := range exps {
		out[i] = float32(exps[i] / sum)
	}
	return out
}
