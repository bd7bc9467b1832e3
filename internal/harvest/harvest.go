// Package harvest coordena a coleta em duas fases: descoberta (listagem de
// busca → registros básicos com status 'found') e detalhe (página de cada
// licitação → colunas completas e status 'finished'). As duas fases podem
// rodar juntas ou isoladas.
package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/brianshen0522/ROC-Tender-Data-Scraper/internal/repository"
	"github.com/brianshen0522/ROC-Tender-Data-Scraper/internal/scraper"
	"github.com/brianshen0522/ROC-Tender-Data-Scraper/internal/search"
	"github.com/brianshen0522/ROC-Tender-Data-Scraper/pkg/dedup"
	"github.com/brianshen0522/ROC-Tender-Data-Scraper/pkg/rocdate"
)

// Métricas incrementadas ao longo da coleta.
const (
	MetricTendersSaved     = "tenders_saved"
	MetricTendersFinished  = "tenders_finished"
	MetricCaptchaSolved    = "captcha_solved"
	MetricCaptchaExhausted = "captcha_exhausted"
)

// TenderEvent é o payload publicado no NATS a cada licitação salva.
type TenderEvent struct {
	TenderNo        string `json:"tender_no"`
	OrganizationID  string `json:"organization_id"`
	OrgName         string `json:"org_name"`
	ProjectName     string `json:"project_name"`
	URL             string `json:"url"`
	PkPmsMain       string `json:"pk_pms_main"`
	PublicationDate string `json:"publication_date"`
	Status          string `json:"status"`
}

// Service amarra o harvester de navegação às saídas: Postgres (obrigatório),
// Meilisearch, NATS e Redis (opcionais — nil desliga cada um).
type Service struct {
	Harvester *scraper.Harvester
	Repo      *repository.TenderRepository
	Indexer   *search.Indexer
	JS        nats.JetStreamContext
	Dedup     *dedup.Deduplicator

	Query     string
	TimeRange string
	PageSize  int

	// orgCache evita re-buscar o código de órgãos já resolvidos no run
	orgCache map[string]string
}

// NewService monta o serviço de coleta. Saídas opcionais podem vir nil.
func NewService(h *scraper.Harvester, repo *repository.TenderRepository, query, timeRange string, pageSize int) *Service {
	return &Service{
		Harvester: h,
		Repo:      repo,
		Query:     query,
		TimeRange: timeRange,
		PageSize:  pageSize,
		orgCache:  make(map[string]string),
	}
}

// DiscoveryPhase varre a listagem página a página, salvando os registros
// básicos. Retorna quantas licitações novas foram encontradas.
func (s *Service) DiscoveryPhase(ctx context.Context) (int, error) {
	fmt.Println("======================================================")
	fmt.Println("FASE 1: DESCOBERTA DE LICITAÇÕES")
	fmt.Println("======================================================")
	fmt.Printf("🔍 [Harvest] Busca: query=%q, ano=%s, página de %d\n", s.Query, s.TimeRange, s.PageSize)

	currentPage := 1
	newTenders := 0
	restarts := 0

	for {
		select {
		case <-ctx.Done():
			return newTenders, ctx.Err()
		default:
		}

		url := scraper.BuildSearchURL(s.Query, s.TimeRange, s.PageSize, currentPage)
		if currentPage > 1 {
			fmt.Printf("📄 [Harvest] Carregando página %d\n", currentPage)
		}

		rows, morePages, err := s.Harvester.LoadSearchRows(url, s.PageSize, 5)
		if err != nil {
			// Sessão possivelmente travada pelo portal: um restart de
			// browser antes de desistir
			if restarts >= 2 {
				return newTenders, fmt.Errorf("listagem inacessível após %d restarts: %w", restarts, err)
			}
			restarts++
			if rerr := s.Harvester.Restart(); rerr != nil {
				return newTenders, rerr
			}
			time.Sleep(2 * time.Second)
			continue
		}

		for i, row := range rows {
			if err := s.Repo.EnsureConnection(ctx); err != nil {
				return newTenders, fmt.Errorf("banco indisponível: %w", err)
			}

			info, err := scraper.ExtractTenderInfo(row)
			if err != nil {
				log.Printf("⚠️ Erro processando linha %d: %v", i+1, err)
				continue
			}
			if info == nil {
				continue
			}
			if info.PubDate.IsZero() {
				fmt.Printf("⚠️ [Harvest] Pulando '%s' — sem data de publicação\n", info.TenderNo)
				continue
			}

			isNew, err := s.discoverTender(ctx, info)
			if err != nil {
				log.Printf("⚠️ Erro salvando licitação '%s': %v", info.TenderNo, err)
				continue
			}
			if isNew {
				newTenders++
			}
		}

		if !morePages {
			fmt.Println("✅ [Harvest] Última página de resultados alcançada.")
			break
		}
		currentPage++
		time.Sleep(time.Second)
	}

	fmt.Printf("Descoberta concluída: %d licitações novas.\n", newTenders)
	return newTenders, nil
}

// discoverTender resolve o órgão, pula já-finalizadas e salva o básico.
func (s *Service) discoverTender(ctx context.Context, info *scraper.TenderInfo) (bool, error) {
	// Fast-path: o cache de dedup poupa uma ida ao banco para licitações
	// que acabamos de finalizar
	if s.Dedup != nil {
		if done, err := s.Dedup.CheckIfProcessed(ctx, repository.StatusFinished, info.DetailLink); err == nil && done {
			fmt.Printf("✅ [Harvest] '%s' finalizada recentemente (cache), pulando\n", info.TenderNo)
			return false, nil
		}
	}

	orgID, err := s.resolveOrgID(ctx, info.OrgName)
	if err != nil {
		fmt.Printf("⚠️ [Harvest] Pulando '%s' — órgão sem código: %v\n", info.TenderNo, err)
		return false, nil
	}

	status, err := s.Repo.CheckTenderStatus(ctx, info.DetailLink)
	if err != nil {
		return false, err
	}
	switch status {
	case repository.StatusFinished:
		fmt.Printf("✅ [Harvest] '%s' já coletada por completo, pulando\n", info.TenderNo)
		return false, nil
	case repository.StatusFound:
		fmt.Printf("📋 [Harvest] '%s' já descoberta, mantendo status\n", info.TenderNo)
	default:
		fmt.Printf("🆕 [Harvest] Nova licitação: '%s' do órgão '%s'\n", info.TenderNo, orgID)
	}

	rec := repository.TenderRecord{
		OrganizationID:  orgID,
		TenderNo:        info.TenderNo,
		ProjectName:     info.ProjectName,
		PublicationDate: info.PubDate,
		Deadline:        info.Deadline,
		URL:             info.DetailLink,
		PkPmsMain:       info.PkPmsMain,
		OrgName:         info.OrgName,
		ScrapStatus:     repository.StatusFound,
	}
	if err := s.Repo.SaveTender(ctx, rec); err != nil {
		return false, err
	}
	s.incr(ctx, MetricTendersSaved)
	s.publishEvent(rec, repository.StatusFound)
	s.indexBasic(rec)
	return status == "", nil
}

// resolveOrgID consulta cache do run, depois o banco, por fim o portal.
func (s *Service) resolveOrgID(ctx context.Context, orgName string) (string, error) {
	if id, ok := s.orgCache[orgName]; ok {
		return id, nil
	}
	id, err := s.Repo.GetOrganizationID(ctx, orgName)
	if err != nil {
		return "", err
	}
	if id == "" {
		id, err = s.Harvester.FetchOrgID(orgName, 3)
		if err != nil {
			return "", err
		}
		if err := s.Repo.SaveOrganization(ctx, id, orgName); err != nil {
			return "", err
		}
	}
	s.orgCache[orgName] = id
	return id, nil
}

// DetailPhase visita a página de detalhe de cada licitação pendente e
// completa o registro. Retorna (processadas, finalizadas com sucesso).
func (s *Service) DetailPhase(ctx context.Context) (int, int, error) {
	fmt.Println("======================================================")
	fmt.Println("FASE 2: COLETA DE DETALHES")
	fmt.Println("======================================================")

	pending, err := s.Repo.ListPendingTenders(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("erro listando pendências: %w", err)
	}
	fmt.Printf("📋 [Harvest] %d licitações aguardando detalhes.\n", len(pending))
	if len(pending) == 0 {
		return 0, 0, nil
	}

	processed := 0
	succeeded := 0
	for i, p := range pending {
		select {
		case <-ctx.Done():
			return processed, succeeded, ctx.Err()
		default:
		}

		if err := s.Repo.EnsureConnection(ctx); err != nil {
			return processed, succeeded, fmt.Errorf("banco indisponível: %w", err)
		}

		fmt.Printf("📥 [Harvest] Detalhes [%d/%d]: '%s' (órgão %s)\n", i+1, len(pending), p.TenderNo, p.OrganizationID)

		details, err := s.Harvester.FetchTenderDetails(p.PkPmsMain)
		status := repository.StatusFailed
		if err != nil {
			log.Printf("⚠️ Erro visitando detalhe de '%s': %v", p.TenderNo, err)
			details = map[string]string{}
		} else if details["tender_method"] != "" {
			// Método de licitação presente = página de detalhe real carregou
			status = repository.StatusFinished
		}

		if err := s.Repo.UpdateTenderDetails(ctx, p, details, status); err != nil {
			log.Printf("⚠️ Erro atualizando '%s': %v", p.TenderNo, err)
			continue
		}
		processed++
		if status == repository.StatusFinished {
			succeeded++
			s.incr(ctx, MetricTendersFinished)
			if s.Dedup != nil {
				if err := s.Dedup.MarkAsSeen(ctx, repository.StatusFinished, p.URL); err != nil {
					log.Printf("⚠️ Erro marcando dedup de '%s': %v", p.TenderNo, err)
				}
			}
		}
		s.indexDetail(p, details, status)

		// Aquecimento periódico: volta à listagem e resolve captcha antes
		// que o portal decida bloquear a sessão
		if i%20 == 19 {
			_ = s.Harvester.Navigate(scraper.SearchBaseURL)
			time.Sleep(2 * time.Second)
		}
		time.Sleep(500 * time.Millisecond)
	}

	fmt.Printf("Detalhes concluídos: %d/%d processadas, %d finalizadas.\n", processed, len(pending), succeeded)
	return processed, succeeded, nil
}

func (s *Service) incr(ctx context.Context, metric string) {
	if s.Dedup == nil {
		return
	}
	if err := s.Dedup.Incr(ctx, metric); err != nil {
		log.Printf("⚠️ Erro incrementando métrica %s: %v", metric, err)
	}
}

func (s *Service) publishEvent(rec repository.TenderRecord, status string) {
	if s.JS == nil {
		return
	}
	evt := TenderEvent{
		TenderNo:        rec.TenderNo,
		OrganizationID:  rec.OrganizationID,
		OrgName:         rec.OrgName,
		ProjectName:     rec.ProjectName,
		URL:             rec.URL,
		PkPmsMain:       rec.PkPmsMain,
		PublicationDate: rocdate.Format(rec.PublicationDate),
		Status:          status,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if _, err := s.JS.Publish("data.tender_saved", payload); err != nil {
		log.Printf("⚠️ Erro publicando evento no NATS: %v", err)
	}
}

func (s *Service) indexBasic(rec repository.TenderRecord) {
	if s.Indexer == nil || rec.PkPmsMain == "" {
		return
	}
	doc := map[string]interface{}{
		"pk_pms_main":      rec.PkPmsMain,
		"tender_no":        rec.TenderNo,
		"org_name":         rec.OrgName,
		"project_name":     rec.ProjectName,
		"publication_date": rocdate.Format(rec.PublicationDate),
		"url":              rec.URL,
		"status":           rec.ScrapStatus,
	}
	if err := s.Indexer.IndexTender(doc); err != nil {
		log.Printf("⚠️ Erro indexando licitação: %v", err)
	}
}

func (s *Service) indexDetail(p repository.PendingTender, details map[string]string, status string) {
	if s.Indexer == nil || p.PkPmsMain == "" {
		return
	}
	doc := map[string]interface{}{
		"pk_pms_main": p.PkPmsMain,
		"status":      status,
	}
	if title := details["tender_title"]; title != "" {
		doc["project_name"] = title
	}
	if err := s.Indexer.IndexTender(doc); err != nil {
		log.Printf("⚠️ Erro indexando detalhe: %v", err)
	}
}
