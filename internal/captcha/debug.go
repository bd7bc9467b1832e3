package captcha

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DebugSink persiste as imagens intermediárias de cada tentativa (metades da
// pergunta e as seis candidatas) para inspeção pós-mortem. Toda escrita é
// best-effort: falha de I/O aqui nunca derruba o solver.
type DebugSink struct {
	dir   string
	keep  bool
	runID string
}

// NewDebugSink cria o diretório de debug. dir vazio desabilita o sink.
// keep=true preserva as imagens ao final do run em vez de limpá-las.
func NewDebugSink(dir string, keep bool) *DebugSink {
	if dir == "" {
		return &DebugSink{}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("⚠️  [Captcha] Erro criando diretório de debug '%s': %v\n", dir, err)
		return &DebugSink{}
	}
	// UUID no prefixo evita colisão entre runs concorrentes no mesmo diretório
	runID := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
	return &DebugSink{dir: dir, keep: keep, runID: runID}
}

// SaveImage grava uma imagem PNG da tentativa corrente.
func (d *DebugSink) SaveImage(attempt int, name string, img image.Image) {
	if d == nil || d.dir == "" || img == nil {
		return
	}
	path := filepath.Join(d.dir, fmt.Sprintf("%s_a%02d_%s.png", d.runID, attempt, name))
	f, err := os.Create(path)
	if err != nil {
		fmt.Printf("⚠️  [Captcha] Erro salvando imagem de debug %s: %v\n", path, err)
		return
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		fmt.Printf("⚠️  [Captcha] Erro codificando imagem de debug %s: %v\n", path, err)
	}
}

// SaveAttempt grava o conjunto completo de imagens de uma tentativa.
func (d *DebugSink) SaveAttempt(attempt int, left, right image.Image, cards []CandidateCard) {
	d.SaveImage(attempt, "left_half_question", left)
	d.SaveImage(attempt, "right_half_question", right)
	for _, c := range cards {
		d.SaveImage(attempt, fmt.Sprintf("card_%d", c.Index), c.Image)
	}
}

// Cleanup remove as imagens deste run, a menos que keep esteja ativo.
func (d *DebugSink) Cleanup() {
	if d == nil || d.dir == "" || d.keep {
		return
	}
	matches, err := filepath.Glob(filepath.Join(d.dir, d.runID+"_*.png"))
	if err != nil {
		return
	}
	for _, f := range matches {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			fmt.Printf("⚠️  [Captcha] Erro removendo %s: %v\n", f, err)
		}
	}
}

// ErrorSink registra falhas de tentativa num log append-only, uma entrada por
// erro, para triagem posterior sem precisar do terminal do run.
type ErrorSink struct {
	path string
}

// NewErrorSink cria o sink de erros. path vazio desabilita.
func NewErrorSink(path string) *ErrorSink {
	return &ErrorSink{path: path}
}

// Log anexa uma entrada datada. Best-effort, como o resto do debug.
func (e *ErrorSink) Log(attempt int, detail string) {
	if e == nil || e.path == "" {
		return
	}
	f, err := os.OpenFile(e.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Printf("⚠️  [Captcha] Erro abrindo log de erros %s: %v\n", e.path, err)
		return
	}
	defer f.Close()
	ts := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "%s - Erro no captcha (tentativa %d): %s\n---\n", ts, attempt, detail)
}
