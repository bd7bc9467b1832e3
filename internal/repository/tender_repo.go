// Package repository persiste órgãos e licitações no Postgres. O schema
// espelha a página de detalhe do portal: as colunas de detalhe são texto
// livre, só a chave composta e as datas têm tipo forte.
package repository

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/brianshen0522/ROC-Tender-Data-Scraper/internal/scraper"
)

// Status de coleta de uma licitação.
const (
	StatusFound    = "found"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// TenderRecord é a porção básica salva na fase de descoberta.
type TenderRecord struct {
	OrganizationID  string
	TenderNo        string
	ProjectName     string
	PublicationDate time.Time
	Deadline        time.Time
	URL             string
	PkPmsMain       string
	OrgName         string
	ScrapStatus     string
}

// PendingTender identifica uma licitação aguardando a fase de detalhe.
type PendingTender struct {
	TenderNo        string
	OrganizationID  string
	URL             string
	PkPmsMain       string
	PublicationDate time.Time
}

type TenderRepository struct {
	db  *pgx.Conn
	url string
}

func NewTenderRepository(databaseURL string) (*TenderRepository, error) {
	conn, err := pgx.Connect(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar no postgres: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("banco não responde: %w", err)
	}

	repo := &TenderRepository{db: conn, url: databaseURL}

	if err := repo.initSchema(); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("falha ao criar tabelas: %w", err)
	}

	return repo, nil
}

func (r *TenderRepository) initSchema() error {
	detailCols := make([]string, 0, len(scraper.DetailColumns))
	for col := range scraper.DetailColumns {
		if col == "org_name" {
			continue // já é coluna base
		}
		detailCols = append(detailCols, col)
	}
	sort.Strings(detailCols)

	var b strings.Builder
	b.WriteString(`
        CREATE TABLE IF NOT EXISTS organizations (
            site_id TEXT PRIMARY KEY,
            name TEXT UNIQUE NOT NULL
        );

        CREATE TABLE IF NOT EXISTS tenders (
            -- Identidade vinda da listagem
            organization_id TEXT,
            tender_no TEXT,
            url TEXT UNIQUE,
            pk_pms_main TEXT,
            project_name TEXT,
            publication_date DATE,
            deadline DATE,
            scrap_status TEXT,
            org_name TEXT,
`)
	for _, col := range detailCols {
		fmt.Fprintf(&b, "            %s TEXT,\n", col)
	}
	b.WriteString(`            PRIMARY KEY (tender_no, organization_id, publication_date),
            FOREIGN KEY (organization_id) REFERENCES organizations(site_id)
        );

        CREATE INDEX IF NOT EXISTS idx_tenders_status ON tenders(scrap_status);
        CREATE INDEX IF NOT EXISTS idx_tenders_pub_date ON tenders(publication_date);
        `)

	_, err := r.db.Exec(context.Background(), b.String())
	if err != nil {
		log.Printf("Atenção na criação das tabelas (pode ser ignorado se já existirem): %v", err)
	} else {
		log.Println("Schema do banco verificado/criado com sucesso.")
	}
	return nil
}

// EnsureConnection testa a conexão e reconecta se necessário. O portal é
// lento: sessões longas derrubam a conexão com o banco no meio da coleta.
func (r *TenderRepository) EnsureConnection(ctx context.Context) error {
	if err := r.db.Ping(ctx); err == nil {
		return nil
	}
	fmt.Println("🔄 [DB] Conexão perdida, reconectando...")
	_ = r.db.Close(ctx)
	conn, err := pgx.Connect(ctx, r.url)
	if err != nil {
		return fmt.Errorf("reconexão falhou: %w", err)
	}
	r.db = conn
	fmt.Println("✅ [DB] Reconectado com sucesso")
	return nil
}

// SaveOrganization registra um órgão; conflito de site_id é ignorado.
func (r *TenderRepository) SaveOrganization(ctx context.Context, siteID, name string) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO organizations (site_id, name) VALUES ($1, $2) ON CONFLICT (site_id) DO NOTHING",
		siteID, name,
	)
	return err
}

// GetOrganizationID busca o código de um órgão pelo nome. Retorna vazio sem
// erro quando o órgão ainda não foi visto.
func (r *TenderRepository) GetOrganizationID(ctx context.Context, orgName string) (string, error) {
	var siteID string
	err := r.db.QueryRow(ctx,
		"SELECT site_id FROM organizations WHERE name = $1", orgName,
	).Scan(&siteID)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return siteID, nil
}

// CheckTenderStatus retorna o scrap_status da licitação com essa URL, ou
// vazio se ela nunca foi vista.
func (r *TenderRepository) CheckTenderStatus(ctx context.Context, url string) (string, error) {
	var status *string
	err := r.db.QueryRow(ctx,
		"SELECT scrap_status FROM tenders WHERE url = $1", url,
	).Scan(&status)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if status == nil {
		return "", nil
	}
	return *status, nil
}

// SaveTender grava os dados básicos da fase de descoberta. Re-descobertas
// mantêm o registro e só renovam os campos da listagem.
func (r *TenderRepository) SaveTender(ctx context.Context, t TenderRecord) error {
	if t.TenderNo == "" || t.OrganizationID == "" || t.PublicationDate.IsZero() {
		return fmt.Errorf("licitação sem chave primária completa (tender_no=%q, org=%q)", t.TenderNo, t.OrganizationID)
	}

	var deadline any
	if !t.Deadline.IsZero() {
		deadline = t.Deadline
	}

	query := `
        INSERT INTO tenders
        (organization_id, tender_no, project_name, publication_date, deadline, url, pk_pms_main, org_name, scrap_status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (tender_no, organization_id, publication_date) DO UPDATE
        SET project_name = EXCLUDED.project_name,
            deadline = EXCLUDED.deadline,
            pk_pms_main = EXCLUDED.pk_pms_main,
            org_name = EXCLUDED.org_name
    `
	_, err := r.db.Exec(ctx, query,
		t.OrganizationID, t.TenderNo, t.ProjectName, t.PublicationDate,
		deadline, t.URL, t.PkPmsMain, t.OrgName, t.ScrapStatus,
	)
	return err
}

// ListPendingTenders retorna as licitações com status 'found', mais recentes
// primeiro, para a fase de detalhe.
func (r *TenderRepository) ListPendingTenders(ctx context.Context) ([]PendingTender, error) {
	rows, err := r.db.Query(ctx, `
        SELECT tender_no, organization_id, url, COALESCE(pk_pms_main, ''), publication_date
        FROM tenders
        WHERE scrap_status = $1
        ORDER BY publication_date DESC
    `, StatusFound)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingTender
	for rows.Next() {
		var p PendingTender
		if err := rows.Scan(&p.TenderNo, &p.OrganizationID, &p.URL, &p.PkPmsMain, &p.PublicationDate); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// UpdateTenderDetails aplica os campos da página de detalhe e o novo status.
// Só colunas da whitelist entram no SET: os nomes vêm do mapeamento de
// rótulos, nunca de entrada externa crua.
func (r *TenderRepository) UpdateTenderDetails(ctx context.Context, key PendingTender, details map[string]string, status string) error {
	set := []string{"scrap_status = $1"}
	args := []any{status}
	i := 2

	cols := make([]string, 0, len(details))
	for col := range details {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if !scraper.DetailColumns[col] {
			continue
		}
		set = append(set, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, details[col])
		i++
	}

	query := fmt.Sprintf(`
        UPDATE tenders SET %s
        WHERE tender_no = $%d AND organization_id = $%d AND publication_date = $%d
    `, strings.Join(set, ", "), i, i+1, i+2)
	args = append(args, key.TenderNo, key.OrganizationID, key.PublicationDate)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("licitação %q não encontrada para atualização", key.TenderNo)
	}
	return nil
}

func (r *TenderRepository) Close(ctx context.Context) {
	r.db.Close(ctx)
}
