// Package captcha implementa o motor de resolução do desafio de verificação
// do portal PCC: um par de cartas "pergunta" que deve ser casado com duas das
// seis cartas candidatas exibidas abaixo. O pipeline é: captura → segmentação
// → classificação (visual + cor) → matching → submissão → observação do
// resultado, num loop de tentativas limitado.
package captcha

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// LabelUnknown é o sentinela para classificações inconclusivas.
const LabelUnknown = "unknown"

// Labels de cor produzidos pelo classificador heurístico.
const (
	ColorRed   = "red"
	ColorBlack = "black"
)

// knownLabels é o vocabulário fechado aceito na fronteira do classificador.
// Qualquer label fora daqui vira LabelUnknown.
var knownLabels = map[string]struct{}{
	// Valores
	"ace": {}, "two": {}, "three": {}, "four": {}, "five": {}, "six": {},
	"seven": {}, "eight": {}, "nine": {}, "ten": {}, "jack": {}, "queen": {}, "king": {},
	// Naipes
	"hearts": {}, "diamonds": {}, "clubs": {}, "spades": {},
	// Cores
	ColorRed: {}, ColorBlack: {},
}

// ValidLabel informa se o label pertence ao vocabulário fechado.
func ValidLabel(label string) bool {
	_, ok := knownLabels[label]
	return ok
}

// ClassificationResult é a saída de uma classificação de carta.
// Confidence só tem significado quando Label != LabelUnknown.
type ClassificationResult struct {
	Label      string
	Confidence float32
}

// Unknown retorna o resultado sentinela.
func Unknown() ClassificationResult {
	return ClassificationResult{Label: LabelUnknown}
}

// MatchAssignment mapeia cada metade da pergunta para o índice (1..6) da
// carta candidata escolhida. Left e Right são sempre distintos.
type MatchAssignment struct {
	Left  int
	Right int
}

// AttemptOutcome é o resultado observado de uma tentativa de submissão.
type AttemptOutcome int

const (
	// OutcomeSubmitted indica que nenhum alert apareceu — sucesso.
	OutcomeSubmitted AttemptOutcome = iota
	// OutcomeRejectedWithAlert indica rejeição pelo portal (match errado).
	OutcomeRejectedWithAlert
	// OutcomeError indica falha inesperada durante a tentativa.
	OutcomeError
)

func (o AttemptOutcome) String() string {
	switch o {
	case OutcomeSubmitted:
		return "Submitted"
	case OutcomeRejectedWithAlert:
		return "RejectedWithAlert"
	default:
		return "Error"
	}
}

// CandidateCard é uma das seis cartas selecionáveis da área B. O índice
// (1..6) corresponde ao slot fixo na tela e a ordem importa para os
// desempates do matcher.
type CandidateCard struct {
	Index int
	Image image.Image
	El    Element
}

// Element é um handle opaco para um elemento da página, dono do colaborador
// de viewport. O motor só o usa para capturar e clicar.
type Element interface {
	Click() error
	Capture() (image.Image, error)
}

// Viewport é a capability de browser consumida pelo motor. Os seletores são
// strings opacas (XPath ou CSS) de propriedade da camada chamadora.
type Viewport interface {
	// WaitVisible localiza o elemento e espera ele ficar visível.
	WaitVisible(selector string, timeout time.Duration) (Element, error)
	// ArmAlertWatch subscreve o próximo alert modal ANTES do gatilho e
	// retorna a função que espera por ele até o timeout. Um alert que abre
	// no instante da submissão só é observado se o watch já estava armado.
	ArmAlertWatch(timeout time.Duration) (wait func() (text string, appeared bool))
	// DismissAlert aceita o alert pendente, se houver.
	DismissAlert() error
	// HTML retorna o HTML da página atual.
	HTML() (string, error)
}

// Predictor é a capability do classificador visual pré-treinado, consumido
// como caixa-preta: imagem entra, label top-1 + confiança sai.
type Predictor interface {
	Predict(img image.Image) (ClassificationResult, error)
}

// Selectors agrupa os localizadores dos elementos do desafio. São
// configuração, não lógica do motor.
type Selectors struct {
	// ChallengeMarker é o texto que identifica a página de verificação.
	ChallengeMarker string
	// Question aponta para a imagem com o par de cartas de referência.
	Question string
	// Cards aponta para as seis cartas candidatas, na ordem dos slots.
	Cards []string
	// Confirm aponta para o botão de envio do formulário.
	Confirm string
}

// DefaultSelectors retorna os localizadores do portal PCC.
func DefaultSelectors() Selectors {
	base := "/html/body/div/div[2]/div/div/div[3]/div/div[4]/form/table[1]/tbody"
	cards := make([]string, 6)
	for i := range cards {
		cards[i] = fmt.Sprintf("%s/tr[2]/td/table/tbody/tr/td[2]/table/tbody/tr/td[%d]/label/img", base, i+1)
	}
	return Selectors{
		ChallengeMarker: "驗證碼檢核",
		Question:        base + "/tr[1]/td/table/tbody/tr/td[2]/img",
		Cards:           cards,
		Confirm:         "//input[@value='確認送出']",
	}
}

var (
	// ErrEmptyImage indica uma captura vazia ou malformada vinda do viewport.
	ErrEmptyImage = errors.New("imagem capturada vazia ou inválida")
	// ErrViewportLost indica que o viewport ficou inacessível — erro fatal,
	// propagado ao chamador em vez de consumir tentativas.
	ErrViewportLost = errors.New("viewport inacessível")
)
