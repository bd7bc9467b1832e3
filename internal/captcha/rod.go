package captcha

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// RodViewport adapta uma *rod.Page para a interface Viewport. Seletores que
// começam com "/" ou "(" são tratados como XPath, o resto como CSS.
type RodViewport struct {
	page *rod.Page
}

// NewRodViewport embrulha a página. A página deve estar navegada e estável.
func NewRodViewport(page *rod.Page) *RodViewport {
	return &RodViewport{page: page}
}

func (v *RodViewport) WaitVisible(selector string, timeout time.Duration) (Element, error) {
	page := v.page.Timeout(timeout)
	var el *rod.Element
	var err error
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") {
		el, err = page.ElementX(selector)
	} else {
		el, err = page.Element(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("elemento '%s' não encontrado: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return nil, fmt.Errorf("elemento '%s' não ficou visível: %w", selector, err)
	}
	return &rodElement{el: el}, nil
}

// ArmAlertWatch subscreve o evento de dialog do browser e devolve a função
// que espera por ele até o timeout. A subscrição acontece aqui, na chamada:
// WaitEvent só vê eventos emitidos depois dela, então o chamador tem que
// armar antes do clique que pode disparar o alert. O alert fica pendente até
// DismissAlert — a página inteira trava enquanto isso.
func (v *RodViewport) ArmAlertWatch(timeout time.Duration) func() (string, bool) {
	ctx, cancel := context.WithCancel(context.Background())

	page := v.page.Context(ctx)
	evt := proto.PageJavascriptDialogOpening{}
	wait := page.WaitEvent(&evt)

	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	return func() (string, bool) {
		defer cancel()
		select {
		case <-done:
			return evt.Message, true
		case <-time.After(timeout):
			return "", false
		}
	}
}

// DismissAlert aceita o dialog pendente. Sem dialog aberto o CDP responde
// com erro, que é inofensivo aqui.
func (v *RodViewport) DismissAlert() error {
	return proto.PageHandleJavaScriptDialog{Accept: true}.Call(v.page)
}

func (v *RodViewport) HTML() (string, error) {
	return v.page.Timeout(10 * time.Second).HTML()
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Capture() (image.Image, error) {
	bin, err := e.el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("screenshot do elemento falhou: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(bin))
	if err != nil {
		return nil, fmt.Errorf("decode da captura falhou: %w", err)
	}
	return img, nil
}
