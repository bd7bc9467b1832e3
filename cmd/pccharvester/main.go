// Package main provê o binário pccharvester: coleta de anúncios de
// licitação do portal PCC em duas fases, com resolução automática do
// desafio de verificação por cartas.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-rod/rod"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/brianshen0522/ROC-Tender-Data-Scraper/internal/captcha"
	"github.com/brianshen0522/ROC-Tender-Data-Scraper/internal/harvest"
	"github.com/brianshen0522/ROC-Tender-Data-Scraper/internal/repository"
	"github.com/brianshen0522/ROC-Tender-Data-Scraper/internal/scraper"
	"github.com/brianshen0522/ROC-Tender-Data-Scraper/internal/search"
	"github.com/brianshen0522/ROC-Tender-Data-Scraper/pkg/config"
	"github.com/brianshen0522/ROC-Tender-Data-Scraper/pkg/dedup"
	"github.com/brianshen0522/ROC-Tender-Data-Scraper/pkg/metrics"
)

const challengeInitURL = "https://web.pcc.gov.tw/tps/validate/init"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pccharvester",
		Short: "Coletor de licitações do portal de compras públicas (PCC)",
		Long: "pccharvester varre o portal PCC em duas fases (descoberta e detalhe),\n" +
			"resolve o desafio de verificação por cartas automaticamente e persiste\n" +
			"os registros em Postgres, com indexação opcional em Meilisearch.",
	}
	cmd.AddCommand(scrapeCmd())
	cmd.AddCommand(captchaTestCmd())
	cmd.AddCommand(lookupCmd())
	return cmd
}

func lookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <pk_pms_main>",
		Short: "Consulta uma licitação já indexada no Meilisearch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			if cfg.Meilisearch.Host == "" {
				return fmt.Errorf("meilisearch não configurado (meilisearch.host)")
			}
			idx := search.NewIndexer(cfg.Meilisearch.Host, cfg.Meilisearch.Key, cfg.Meilisearch.Index)
			doc, err := idx.GetDocument(args[0])
			if err != nil {
				return fmt.Errorf("documento %q não encontrado: %w", args[0], err)
			}
			fmt.Printf("Licitação %s (%s)\n", doc.TenderNo, doc.PkPmsMain)
			fmt.Printf("  Órgão:      %s\n", doc.OrgName)
			fmt.Printf("  Projeto:    %s\n", doc.ProjectName)
			fmt.Printf("  Publicação: %s | Status: %s\n", doc.PublicationDate, doc.Status)
			fmt.Printf("  URL:        %s\n", doc.URL)
			return nil
		},
	}
}

func scrapeCmd() *cobra.Command {
	var (
		query     string
		timeRange string
		pageSize  int
		headless  bool
		keepDebug bool
		phase     string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Executa a coleta de licitações",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()

			// Flags explícitas sobrescrevem o config.yaml
			if !cmd.Flags().Changed("query") {
				query = cfg.Scraper.Query
			}
			if !cmd.Flags().Changed("time-range") {
				timeRange = cfg.Scraper.TimeRange
			}
			if !cmd.Flags().Changed("page-size") {
				pageSize = cfg.Scraper.PageSize
			}
			if !cmd.Flags().Changed("headless") {
				headless = cfg.Scraper.Headless
			}
			if pageSize > 100 {
				pageSize = 100 // limite do portal
			}
			if keepDebug {
				cfg.Captcha.KeepDebug = true
			}
			if phase != "discovery" && phase != "detail" && phase != "both" {
				return fmt.Errorf("fase inválida %q (discovery|detail|both)", phase)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Println("PCC Harvester iniciando...")
			fmt.Printf("  Query: %s | Ano ROC: %s | Página: %d | Headless: %v | Fase: %s\n",
				query, timeRange, pageSize, headless, phase)

			repo, err := repository.NewTenderRepository(cfg.Database.URL)
			if err != nil {
				log.Fatal("Erro conectando ao banco:", err)
			}
			defer repo.Close(context.Background())

			svc, cleanup := buildService(ctx, cfg, repo, query, timeRange, pageSize, headless)
			defer cleanup()

			if phase == "discovery" || phase == "both" {
				if _, err := svc.DiscoveryPhase(ctx); err != nil {
					return fmt.Errorf("fase de descoberta: %w", err)
				}
			}
			if phase == "detail" || phase == "both" {
				if _, _, err := svc.DetailPhase(ctx); err != nil {
					return fmt.Errorf("fase de detalhe: %w", err)
				}
			}

			fmt.Println("✨ Coleta concluída! ✨")
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "案", "Termo de busca da listagem")
	cmd.Flags().StringVar(&timeRange, "time-range", "113", "Ano ROC da busca")
	cmd.Flags().IntVar(&pageSize, "page-size", 100, "Tamanho de página (máx 100)")
	cmd.Flags().BoolVar(&headless, "headless", false, "Browser sem interface")
	cmd.Flags().BoolVar(&keepDebug, "keep-debug", false, "Mantém as imagens de debug do captcha")
	cmd.Flags().StringVar(&phase, "phase", "both", "Fase a executar: discovery, detail ou both")
	return cmd
}

// buildService amarra browser, captcha e as saídas opcionais. O ctx é o do
// comando (sensível a SIGINT) e atravessa até o loop do solver de captcha.
func buildService(ctx context.Context, cfg *config.Config, repo *repository.TenderRepository, query, timeRange string, pageSize int, headless bool) (*harvest.Service, func()) {
	var closers []func()

	// Classificador visual: opcional — sem modelo o motor degrada para a
	// heurística de cor + sobreposição
	var predictor captcha.Predictor
	if cfg.Captcha.ModelPath != "" {
		clf, err := captcha.NewCardClassifier(cfg.Captcha.ModelPath, cfg.Captcha.LabelsPath, cfg.Captcha.RuntimeLib)
		if err != nil {
			log.Printf("⚠️ Classificador visual indisponível (%v) — usando fallback de cor/sobreposição", err)
		} else {
			predictor = clf
			closers = append(closers, clf.Close)
		}
	}

	var ded *dedup.Deduplicator
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ded = dedup.NewDeduplicator(rdb, 0)
		closers = append(closers, func() { _ = ded.Close() })
		go metrics.StartMetricsServer(cfg.Metrics.Port, rdb, metrics.HarvestMetrics)
	}

	handler := captchaHandler(ctx, cfg, predictor, ded)

	harvester, err := scraper.NewHarvester(headless, handler)
	if err != nil {
		log.Fatal("Erro iniciando browser:", err)
	}
	closers = append(closers, harvester.Close)
	go scraper.StartProfileSweeper()

	svc := harvest.NewService(harvester, repo, query, timeRange, pageSize)
	svc.Dedup = ded

	if cfg.Nats.URL != "" {
		nc, err := nats.Connect(cfg.Nats.URL)
		if err != nil {
			log.Printf("⚠️ NATS indisponível em %s: %v — eventos desligados", cfg.Nats.URL, err)
		} else {
			js, _ := nc.JetStream()
			svc.JS = js
			closers = append(closers, nc.Close)
		}
	}

	if cfg.Meilisearch.Host != "" {
		svc.Indexer = search.NewIndexer(cfg.Meilisearch.Host, cfg.Meilisearch.Key, cfg.Meilisearch.Index)
	}

	cleanup := func() {
		fmt.Println("🧹 Encerrando recursos...")
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return svc, cleanup
}

// captchaHandler constrói o handler injetado na navegação: para cada página,
// checa o desafio e resolve se preciso, contabilizando o resultado. O ctx
// recebido é o sensível a sinais, para o loop de tentativas parar no SIGINT.
func captchaHandler(ctx context.Context, cfg *config.Config, predictor captcha.Predictor, ded *dedup.Deduplicator) scraper.CaptchaHandler {
	return func(page *rod.Page) (bool, error) {
		solver := captcha.NewSolver(captcha.NewRodViewport(page), predictor, captcha.SolverConfig{
			MaxAttempts: cfg.Captcha.MaxAttempts,
			Selectors:   captcha.DefaultSelectors(),
			Debug:       captcha.NewDebugSink(cfg.Captcha.DebugDir, cfg.Captcha.KeepDebug),
			Errors:      captcha.NewErrorSink(cfg.Captcha.ErrorLog),
		})
		solved, err := solver.HandleChallenge(ctx)
		if ded != nil && err == nil {
			if solved {
				_ = ded.Incr(ctx, harvest.MetricCaptchaSolved)
			} else {
				_ = ded.Incr(ctx, harvest.MetricCaptchaExhausted)
			}
		}
		return solved, err
	}
}

func captchaTestCmd() *cobra.Command {
	var keepDebug bool

	cmd := &cobra.Command{
		Use:   "captcha-test",
		Short: "Abre a página de verificação do portal e resolve o desafio uma vez",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			if keepDebug {
				cfg.Captcha.KeepDebug = true
			}

			var predictor captcha.Predictor
			if cfg.Captcha.ModelPath != "" {
				clf, err := captcha.NewCardClassifier(cfg.Captcha.ModelPath, cfg.Captcha.LabelsPath, cfg.Captcha.RuntimeLib)
				if err != nil {
					log.Printf("⚠️ Classificador visual indisponível: %v", err)
				} else {
					predictor = clf
					defer clf.Close()
				}
			}

			harvester, err := scraper.NewHarvester(false, nil)
			if err != nil {
				return fmt.Errorf("erro iniciando browser: %w", err)
			}
			defer harvester.Close()

			if err := harvester.Navigate(challengeInitURL); err != nil {
				return err
			}

			solver := captcha.NewSolver(captcha.NewRodViewport(harvester.Page), predictor, captcha.SolverConfig{
				MaxAttempts: cfg.Captcha.MaxAttempts,
				Selectors:   captcha.DefaultSelectors(),
				Debug:       captcha.NewDebugSink(cfg.Captcha.DebugDir, cfg.Captcha.KeepDebug),
				Errors:      captcha.NewErrorSink(cfg.Captcha.ErrorLog),
			})
			solved, err := solver.HandleChallenge(cmd.Context())
			if err != nil {
				return err
			}
			if !solved {
				return fmt.Errorf("desafio não resolvido dentro do limite de tentativas")
			}
			fmt.Println("✅ Desafio resolvido com sucesso!")
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepDebug, "keep-debug", false, "Mantém as imagens de debug do captcha")
	return cmd
}
