package captcha

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"
)

type fakeElement struct {
	name string
	img  image.Image
	vp   *fakeViewport
}

func (e *fakeElement) Click() error {
	e.vp.clicks = append(e.vp.clicks, e.name)
	// O alert de rejeição abre no instante do clique de confirmação e só é
	// observado por um watch armado antes dele
	if e.name == "ok" && e.vp.alertOn && e.vp.armed {
		e.vp.alertCaught = true
	}
	return nil
}

func (e *fakeElement) Capture() (image.Image, error) {
	return e.img, nil
}

type fakeViewport struct {
	elements    map[string]*fakeElement
	alertOn     bool
	alertText   string
	htmlErr     error
	clicks      []string
	attempts    int
	dismissed   int
	armed       bool
	alertCaught bool
}

func (f *fakeViewport) WaitVisible(sel string, _ time.Duration) (Element, error) {
	el, ok := f.elements[sel]
	if !ok {
		return nil, fmt.Errorf("elemento %q ausente", sel)
	}
	if sel == "q" {
		f.attempts++
	}
	return el, nil
}

func (f *fakeViewport) ArmAlertWatch(time.Duration) func() (string, bool) {
	f.armed = true
	return func() (string, bool) {
		f.armed = false
		if f.alertCaught {
			f.alertCaught = false
			return f.alertText, true
		}
		return "", false
	}
}

func (f *fakeViewport) DismissAlert() error {
	f.dismissed++
	return nil
}

func (f *fakeViewport) HTML() (string, error) {
	if f.htmlErr != nil {
		return "", f.htmlErr
	}
	return "<html>...驗證碼檢核...</html>", nil
}

type fakePredictor struct {
	fn func(image.Image) (ClassificationResult, error)
}

func (p *fakePredictor) Predict(img image.Image) (ClassificationResult, error) {
	return p.fn(img)
}

func testSelectors() Selectors {
	return Selectors{
		ChallengeMarker: "驗證碼檢核",
		Question:        "q",
		Cards:           []string{"c1", "c2", "c3", "c4", "c5", "c6"},
		Confirm:         "ok",
	}
}

// newFakeViewport monta um desafio onde a metade esquerda da pergunta é
// preta, a direita é branca, a carta 3 é preta e a carta 6 é branca. As
// demais cartas têm padrão meio-a-meio.
func newFakeViewport() *fakeViewport {
	vp := &fakeViewport{elements: map[string]*fakeElement{}}

	question := image.NewRGBA(image.Rect(0, 0, 80, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			question.Set(x, y, color.Black)
			question.Set(x+40, y, color.White)
		}
	}
	vp.elements["q"] = &fakeElement{name: "q", img: question, vp: vp}

	for i := 1; i <= 6; i++ {
		var img image.Image
		switch i {
		case 3:
			img = uniform(40, 40, color.Black)
		case 6:
			img = uniform(40, 40, color.White)
		default:
			img = metade(40, 40)
		}
		name := fmt.Sprintf("c%d", i)
		vp.elements[name] = &fakeElement{name: name, img: img, vp: vp}
	}
	vp.elements["ok"] = &fakeElement{name: "ok", vp: vp}
	return vp
}

func testConfig() SolverConfig {
	return SolverConfig{
		MaxAttempts: 3,
		AlertWait:   time.Millisecond,
		RetryPause:  time.Millisecond,
		WaitVisible: time.Second,
		Selectors:   testSelectors(),
	}
}

func TestSolveSucessoPrimeiraTentativa(t *testing.T) {
	vp := newFakeViewport()
	pred := &fakePredictor{fn: func(img image.Image) (ClassificationResult, error) {
		// Mapeia pelo pixel dominante: preto → spades, branco → hearts
		switch ClassifyColor(img) {
		case ColorBlack:
			return ClassificationResult{Label: "spades", Confidence: 0.99}, nil
		default:
			return Unknown(), nil
		}
	}}

	solver := NewSolver(vp, pred, testConfig())
	solved, err := solver.Solve(context.Background())
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if !solved {
		t.Fatal("deveria resolver na primeira tentativa")
	}
	if vp.attempts != 1 {
		t.Errorf("esperava 1 tentativa, houve %d", vp.attempts)
	}
	// Clique final é sempre a confirmação
	if len(vp.clicks) != 3 || vp.clicks[2] != "ok" {
		t.Errorf("sequência de cliques inesperada: %v", vp.clicks)
	}
}

func TestSolveEsgotaTentativas(t *testing.T) {
	vp := newFakeViewport()
	vp.alertOn = true
	vp.alertText = "錯誤"

	solver := NewSolver(vp, nil, testConfig())
	solved, err := solver.Solve(context.Background())
	if err != nil {
		t.Fatalf("esgotar tentativas não é erro: %v", err)
	}
	if solved {
		t.Fatal("com alert em toda submissão o desafio não pode resolver")
	}
	if vp.attempts != 3 {
		t.Errorf("esperava exatamente 3 tentativas, houve %d", vp.attempts)
	}
	if vp.dismissed != 3 {
		t.Errorf("cada alert deveria ser aceito, houve %d dismiss", vp.dismissed)
	}
}

func TestAlertImediatoAposSubmissao(t *testing.T) {
	// O fake só entrega o alert se o watch foi armado antes do clique de
	// confirmação: um subscribe tardio perderia o evento e um match errado
	// seria reportado como sucesso
	vp := newFakeViewport()
	vp.alertOn = true
	vp.alertText = "驗證錯誤"

	cfg := testConfig()
	cfg.MaxAttempts = 1
	solver := NewSolver(vp, nil, cfg)
	solved, err := solver.Solve(context.Background())
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if solved {
		t.Fatal("submissão rejeitada por alert não pode contar como sucesso")
	}
	if vp.dismissed != 1 {
		t.Errorf("o alert capturado deveria ser aceito, houve %d dismiss", vp.dismissed)
	}
}

func TestSolveSemClassificadorVisual(t *testing.T) {
	// Predictor nulo: o motor degrada para cor + sobreposição e ainda
	// completa a tentativa escolhendo as cartas estruturalmente corretas
	vp := newFakeViewport()
	solver := NewSolver(vp, nil, testConfig())
	solved, err := solver.Solve(context.Background())
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if !solved {
		t.Fatal("degradação não pode impedir a submissão")
	}
	if len(vp.clicks) != 3 {
		t.Fatalf("esperava 2 cartas + confirmação, veio %v", vp.clicks)
	}
	if vp.clicks[0] != "c3" || vp.clicks[1] != "c6" {
		t.Errorf("fallback deveria escolher c3 e c6, veio %v", vp.clicks)
	}
}

func TestSolvePredictorSempreUnknown(t *testing.T) {
	vp := newFakeViewport()
	pred := &fakePredictor{fn: func(image.Image) (ClassificationResult, error) {
		return Unknown(), nil
	}}
	solver := NewSolver(vp, pred, testConfig())
	solved, err := solver.Solve(context.Background())
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if !solved {
		t.Fatal("unknown em tudo ainda deve completar via fallback")
	}
}

func TestSolveViewportPerdido(t *testing.T) {
	vp := newFakeViewport()
	vp.htmlErr = errors.New("conexão fechada")

	solver := NewSolver(vp, nil, testConfig())
	_, err := solver.Solve(context.Background())
	if !errors.Is(err, ErrViewportLost) {
		t.Fatalf("perda do viewport deveria propagar ErrViewportLost, veio %v", err)
	}
}

func TestSolveContextoCancelado(t *testing.T) {
	vp := newFakeViewport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	solver := NewSolver(vp, nil, testConfig())
	_, err := solver.Solve(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelamento deveria propagar, veio %v", err)
	}
	if vp.attempts != 0 {
		t.Errorf("contexto cancelado não deveria iniciar tentativa")
	}
}

func TestHandleChallengeContextoCancelado(t *testing.T) {
	vp := newFakeViewport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	solver := NewSolver(vp, nil, testConfig())
	_, err := solver.HandleChallenge(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelamento deveria atravessar HandleChallenge, veio %v", err)
	}
	if vp.attempts != 0 {
		t.Error("contexto cancelado não deveria iniciar tentativa")
	}
}

func TestIsChallengePresent(t *testing.T) {
	vp := newFakeViewport()
	if !IsChallengePresent(vp, "驗證碼檢核") {
		t.Error("marcador presente no HTML deveria ser detectado")
	}
	if IsChallengePresent(vp, "marcador-inexistente") {
		t.Error("marcador ausente não pode ser detectado")
	}
	vp.htmlErr = errors.New("página fechada")
	if IsChallengePresent(vp, "驗證碼檢核") {
		t.Error("falha de leitura conta como ausência do desafio")
	}
}

func TestHandleChallengeSemDesafio(t *testing.T) {
	vp := newFakeViewport()
	cfg := testConfig()
	cfg.Selectors.ChallengeMarker = "texto-que-nao-existe"
	solver := NewSolver(vp, nil, cfg)

	ok, err := solver.HandleChallenge(context.Background())
	if err != nil || !ok {
		t.Fatalf("sem desafio deveria retornar (true,nil), veio (%v,%v)", ok, err)
	}
	if vp.attempts != 0 {
		t.Error("sem desafio nenhuma tentativa deveria rodar")
	}
}

func TestClassifyFronteiraSoftFail(t *testing.T) {
	img := uniform(10, 10, color.Black)

	errPred := &fakePredictor{fn: func(image.Image) (ClassificationResult, error) {
		return ClassificationResult{}, errors.New("sessão morta")
	}}
	if got := Classify(errPred, img); got.Label != LabelUnknown {
		t.Errorf("erro do predictor deveria virar unknown, veio %q", got.Label)
	}

	foraDoVocab := &fakePredictor{fn: func(image.Image) (ClassificationResult, error) {
		return ClassificationResult{Label: "joker", Confidence: 0.99}, nil
	}}
	if got := Classify(foraDoVocab, img); got.Label != LabelUnknown {
		t.Errorf("label fora do vocabulário deveria virar unknown, veio %q", got.Label)
	}

	if got := Classify(nil, img); got.Label != LabelUnknown {
		t.Errorf("predictor nulo deveria virar unknown, veio %q", got.Label)
	}
}
