package captcha

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"
)

// Defaults do loop de tentativas, calibrados contra o portal real.
const (
	DefaultMaxAttempts = 10
	DefaultAlertWait   = 3 * time.Second
	DefaultRetryPause  = 1 * time.Second
	defaultWaitVisible = 10 * time.Second
)

// SolverConfig parametriza o Solver. Campos zerados recebem os defaults.
type SolverConfig struct {
	MaxAttempts int
	AlertWait   time.Duration
	RetryPause  time.Duration
	WaitVisible time.Duration
	Selectors   Selectors
	Debug       *DebugSink
	Errors      *ErrorSink
}

// Solver orquestra o ciclo completo de resolução do desafio. Uma instância
// serve um viewport; o Predictor pode (e deve) ser compartilhado entre
// instâncias, já que o modelo é um singleton de processo.
type Solver struct {
	vp          Viewport
	predictor   Predictor
	sel         Selectors
	maxAttempts int
	alertWait   time.Duration
	retryPause  time.Duration
	waitVisible time.Duration
	debug       *DebugSink
	errors      *ErrorSink
}

// NewSolver monta um Solver aplicando defaults sobre a configuração.
// predictor pode ser nil: o motor degrada para cor + sobreposição.
func NewSolver(vp Viewport, predictor Predictor, cfg SolverConfig) *Solver {
	s := &Solver{
		vp:          vp,
		predictor:   predictor,
		sel:         cfg.Selectors,
		maxAttempts: cfg.MaxAttempts,
		alertWait:   cfg.AlertWait,
		retryPause:  cfg.RetryPause,
		waitVisible: cfg.WaitVisible,
		debug:       cfg.Debug,
		errors:      cfg.Errors,
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.alertWait <= 0 {
		s.alertWait = DefaultAlertWait
	}
	if s.retryPause < 0 {
		s.retryPause = DefaultRetryPause
	}
	if s.waitVisible <= 0 {
		s.waitVisible = defaultWaitVisible
	}
	if len(s.sel.Cards) == 0 {
		s.sel = DefaultSelectors()
	}
	return s
}

// IsChallengePresent verifica se a página atual é o desafio de verificação,
// procurando o texto marcador no HTML. Qualquer falha conta como ausência.
func IsChallengePresent(vp Viewport, marker string) bool {
	html, err := vp.HTML()
	if err != nil {
		return false
	}
	return strings.Contains(html, marker)
}

// Solve executa o loop limitado de tentativas. Retorna (true, nil) quando
// uma submissão passa sem alert, (false, nil) quando as tentativas esgotam
// e (false, err) apenas quando o viewport ficou inacessível.
func (s *Solver) Solve(ctx context.Context) (bool, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}
		if attempt > 1 {
			fmt.Printf("🔄 [Captcha] Tentativa %d/%d...\n", attempt, s.maxAttempts)
			time.Sleep(s.retryPause)
		}

		outcome, detail, err := s.attempt(attempt)
		if err != nil {
			return false, err
		}
		switch outcome {
		case OutcomeSubmitted:
			fmt.Println("✅ [Captcha] Verificação enviada sem rejeição!")
			return true, nil
		case OutcomeRejectedWithAlert:
			fmt.Printf("❌ [Captcha] Rejeitado pelo portal: %s\n", detail)
		case OutcomeError:
			fmt.Printf("⚠️  [Captcha] Erro na tentativa %d: %s\n", attempt, detail)
			s.errors.Log(attempt, detail)
			// Um alert pendente pode estar travando a página
			_ = s.vp.DismissAlert()
		}
	}
	fmt.Printf("❌ [Captcha] Desafio não resolvido após %d tentativas\n", s.maxAttempts)
	return false, nil
}

// attempt executa uma passada completa do pipeline. O error retornado é
// reservado para perda do viewport; todo o resto vira OutcomeError e fica
// dentro do contrato de retry.
func (s *Solver) attempt(attempt int) (AttemptOutcome, string, error) {
	// Sonda de vida: distingue "elemento sumiu" de "viewport morreu".
	if _, err := s.vp.HTML(); err != nil {
		return OutcomeError, "", fmt.Errorf("%w: %v", ErrViewportLost, err)
	}

	// Captura, com um retry local para piscadas de render
	question, err := s.captureQuestionOnce()
	if err != nil {
		time.Sleep(500 * time.Millisecond)
		if question, err = s.captureQuestionOnce(); err != nil {
			return OutcomeError, err.Error(), nil
		}
	}
	left, right := SplitQuestion(question)

	cards, err := CaptureCandidates(s.vp, s.sel, s.waitVisible)
	if err != nil {
		return OutcomeError, err.Error(), nil
	}
	s.debug.SaveAttempt(attempt, left, right, cards)

	// Classificação: visual para tudo, cor como fallback das metades
	leftRes := Classify(s.predictor, left)
	rightRes := Classify(s.predictor, right)
	if leftRes.Label == LabelUnknown {
		leftRes = ClassificationResult{Label: ClassifyColor(left)}
	}
	if rightRes.Label == LabelUnknown {
		rightRes = ClassificationResult{Label: ClassifyColor(right)}
	}

	candResults := make([]ClassificationResult, len(cards))
	candImages := make([]image.Image, len(cards))
	for i, c := range cards {
		candResults[i] = Classify(s.predictor, c.Image)
		candImages[i] = c.Image
	}

	assign := MatchCards(leftRes, rightRes, candResults, left, right, candImages)
	fmt.Printf("🃏 [Captcha] Metades [%s | %s] → cartas %d e %d\n",
		leftRes.Label, rightRes.Label, assign.Left, assign.Right)

	// Submissão: esquerda primeiro, sempre
	if err := cards[assign.Left-1].El.Click(); err != nil {
		return OutcomeError, fmt.Sprintf("clique na carta %d falhou: %v", assign.Left, err), nil
	}
	if err := cards[assign.Right-1].El.Click(); err != nil {
		return OutcomeError, fmt.Sprintf("clique na carta %d falhou: %v", assign.Right, err), nil
	}
	confirm, err := s.vp.WaitVisible(s.sel.Confirm, s.waitVisible)
	if err != nil {
		return OutcomeError, fmt.Sprintf("botão de confirmação não encontrado: %v", err), nil
	}
	// O watch tem que estar armado antes do clique: o alert de rejeição
	// pode abrir no instante da submissão
	waitAlert := s.vp.ArmAlertWatch(s.alertWait)
	if err := confirm.Click(); err != nil {
		go waitAlert()
		return OutcomeError, fmt.Sprintf("clique no botão de confirmação falhou: %v", err), nil
	}

	// Observação: alert dentro da janela = match errado
	if text, appeared := waitAlert(); appeared {
		_ = s.vp.DismissAlert()
		return OutcomeRejectedWithAlert, text, nil
	}
	return OutcomeSubmitted, "", nil
}

func (s *Solver) captureQuestionOnce() (image.Image, error) {
	return CaptureQuestion(s.vp, s.sel, s.waitVisible)
}

// HandleChallenge é o ponto de entrada de conveniência: se a página atual
// não é o desafio, retorna true sem tocar em nada; caso contrário resolve e
// limpa as imagens de debug do run.
func (s *Solver) HandleChallenge(ctx context.Context) (bool, error) {
	if !IsChallengePresent(s.vp, s.sel.ChallengeMarker) {
		return true, nil
	}
	fmt.Println("🔍 [Captcha] Desafio de verificação detectado, resolvendo...")
	solved, err := s.Solve(ctx)
	s.debug.Cleanup()
	return solved, err
}
