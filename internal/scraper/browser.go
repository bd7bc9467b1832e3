// Package scraper navega o portal de compras públicas (PCC) e extrai os
// anúncios de licitação: a listagem de busca, a página de detalhe de cada
// licitação e o código interno de cada órgão.
package scraper

import (
	"fmt"
	"os"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// profilePrefix marca os diretórios de perfil temporários criados por este
// processo, para o sweeper reconhecê-los.
const profilePrefix = "pcc_profile_"

// NewBrowser cria uma instância de browser Rod com perfil descartável. Um
// perfil novo por sessão evita que o portal acumule estado contra nós entre
// execuções.
func NewBrowser(headless bool, debugPort string) (*rod.Browser, string, error) {
	path, _ := launcher.LookPath()

	stateDir, err := os.MkdirTemp("", profilePrefix)
	if err != nil {
		return nil, "", fmt.Errorf("erro criando perfil temporário: %w", err)
	}

	l := launcher.New().
		Bin(path).
		UserDataDir(stateDir).
		Leakless(false).
		Devtools(true).
		Set("use-gl", "swiftshader"). // Software rendering para containers
		Set("disable-gpu").
		Set("no-sandbox") // Necessário em containers Linux

	if headless {
		l = l.Set("headless", "new")
	} else {
		l = l.Headless(false) // Desenvolvimento/VNC
	}

	u, err := l.Launch()
	if err != nil {
		os.RemoveAll(stateDir)
		return nil, "", fmt.Errorf("erro ao iniciar browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		os.RemoveAll(stateDir)
		return nil, "", fmt.Errorf("erro conectando ao browser: %w", err)
	}

	if debugPort != "" {
		go browser.ServeMonitor(debugPort)
	}
	return browser, stateDir, nil
}

// NewStealthPage abre uma aba com as evasões anti-bot aplicadas. O portal
// PCC fecha a porta para automação óbvia.
func NewStealthPage(browser *rod.Browser) (*rod.Page, error) {
	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("erro criando página stealth: %w", err)
	}
	return page, nil
}
