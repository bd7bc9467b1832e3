package scraper

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/brianshen0522/ROC-Tender-Data-Scraper/pkg/rocdate"
)

const (
	// SearchBaseURL é a listagem de anúncios de licitação.
	SearchBaseURL = "https://web.pcc.gov.tw/prkms/tender/common/bulletion/readBulletion"
	// OrgSearchURL é a busca de órgãos por nome.
	OrgSearchURL = "https://web.pcc.gov.tw/prkms/tender/common/orgName/search"
	// DetailURLFmt monta a página de detalhe a partir do pk interno.
	DetailURLFmt = "https://web.pcc.gov.tw/tps/QueryTender/query/searchTenderDetail?pkPmsMain=%s"

	pageParam = "d-3611040-p" // parâmetro de paginação do framework displaytag do portal
)

// TenderInfo é o registro extraído de uma linha da listagem de busca.
type TenderInfo struct {
	OrgName     string
	TenderNo    string
	ProjectName string
	DetailLink  string
	PkPmsMain   string
	PubDate     time.Time
	Deadline    time.Time
}

// CaptchaHandler resolve o desafio de verificação se ele estiver presente na
// página. Retorna false quando o desafio existia e não foi resolvido.
type CaptchaHandler func(page *rod.Page) (bool, error)

// Harvester encapsula a navegação do portal: uma página stealth, o browser
// que a hospeda e o handler de captcha injetado pela camada de serviço.
type Harvester struct {
	Browser  *rod.Browser
	Page     *rod.Page
	Captcha  CaptchaHandler
	Headless bool

	profileDir string
}

// NewHarvester sobe um browser com página stealth pronta para navegar.
func NewHarvester(headless bool, captcha CaptchaHandler) (*Harvester, error) {
	browser, profileDir, err := NewBrowser(headless, "")
	if err != nil {
		return nil, err
	}
	page, err := NewStealthPage(browser)
	if err != nil {
		browser.Close()
		return nil, err
	}
	return &Harvester{
		Browser:    browser,
		Page:       page,
		Captcha:    captcha,
		Headless:   headless,
		profileDir: profileDir,
	}, nil
}

// Close derruba o browser. O perfil temporário fica para o sweeper.
func (h *Harvester) Close() {
	if h.Browser != nil {
		_ = h.Browser.Close()
	}
}

// Restart descarta o browser atual e sobe um novo com perfil limpo. Usado
// quando o portal trava a sessão e nem refresh resolve.
func (h *Harvester) Restart() error {
	fmt.Println("🔄 [Scraper] Reiniciando browser com sessão limpa...")
	h.Close()
	browser, profileDir, err := NewBrowser(h.Headless, "")
	if err != nil {
		return fmt.Errorf("erro reiniciando browser: %w", err)
	}
	page, err := NewStealthPage(browser)
	if err != nil {
		browser.Close()
		return err
	}
	h.Browser = browser
	h.Page = page
	h.profileDir = profileDir
	return nil
}

// BuildSearchURL monta a URL de busca da listagem. page <= 1 retorna a URL
// base sem o parâmetro de paginação.
func BuildSearchURL(query, timeRange string, pageSize, page int) string {
	base := fmt.Sprintf(
		"%s?querySentence=%s&tenderStatusType=%%E6%%8B%%9B%%E6%%A8%%99&sortCol=TENDER_NOTICE_DATE&timeRange=%s&pageSize=%d",
		SearchBaseURL, query, timeRange, pageSize,
	)
	if page <= 1 {
		return base
	}
	return fmt.Sprintf("%s&%s=%d", base, pageParam, page)
}

// Navigate carrega uma URL na página principal e resolve captcha se houver.
func (h *Harvester) Navigate(url string) error {
	if err := h.Page.Timeout(60 * time.Second).Navigate(url); err != nil {
		return fmt.Errorf("erro navegando para %s: %w", url, err)
	}
	h.Page.Timeout(15 * time.Second).WaitLoad()
	time.Sleep(time.Second)
	if h.Captcha != nil {
		if _, err := h.Captcha(h.Page); err != nil {
			return fmt.Errorf("erro no captcha em %s: %w", url, err)
		}
	}
	return nil
}

// LoadSearchRows carrega a listagem e verifica se os dados vieram inteiros,
// com retries. Páginas parciais persistentes contam como última página; zero
// linhas após todas as tentativas encerra a paginação.
func (h *Harvester) LoadSearchRows(url string, pageSize, maxRetries int) (rows rod.Elements, morePages bool, err error) {
	if err := h.Navigate(url); err != nil {
		return nil, false, err
	}

	lastCount := 0
	consistent := 0
	morePages = true

	for retry := 0; retry < maxRetries; retry++ {
		rows, err = h.Page.Timeout(15 * time.Second).Elements("#bulletion > tbody > tr")
		if err != nil {
			rows = nil
		}
		count := len(rows)

		if count >= pageSize {
			fmt.Printf("📊 [Scraper] %d licitações na página — há mais páginas\n", count)
			return rows, true, nil
		}
		if retry == maxRetries-1 {
			fmt.Printf("📑 [Scraper] %d licitações após %d tentativas — provável última página\n", count, maxRetries)
			return rows, count > 0, nil
		}
		if count == lastCount && count > 0 {
			consistent++
			if consistent >= 3 {
				fmt.Printf("📑 [Scraper] %d licitações (contagem estável) — provável última página\n", count)
				return rows, true, nil
			}
		} else {
			consistent = 0
		}

		fmt.Printf("🔄 [Scraper] Só %d de %d licitações carregadas, recarregando (%d/%d)...\n",
			count, pageSize, retry+1, maxRetries)
		h.Page.Reload()
		time.Sleep(5 * time.Second)
		if h.Captcha != nil {
			if _, err := h.Captcha(h.Page); err != nil {
				return nil, false, err
			}
		}
		lastCount = count
	}
	return rows, morePages, nil
}

// ExtractTenderInfo lê uma linha da listagem. Linhas sem as células mínimas
// retornam nil sem erro: são separadores ou rodapés da tabela.
func ExtractTenderInfo(row *rod.Element) (*TenderInfo, error) {
	cells, err := row.Elements("td")
	if err != nil || len(cells) < 10 {
		return nil, nil
	}

	orgName, err := cellText(cells[2])
	if err != nil {
		return nil, fmt.Errorf("erro lendo órgão: %w", err)
	}
	tenderCell, err := cellText(cells[3])
	if err != nil {
		return nil, fmt.Errorf("erro lendo identificação: %w", err)
	}
	tenderNo, projectName := SplitTenderCell(tenderCell)

	link, err := cells[3].Element("a")
	if err != nil {
		return nil, fmt.Errorf("linha sem link de detalhe: %w", err)
	}
	href, err := link.Attribute("href")
	if err != nil || href == nil {
		return nil, fmt.Errorf("link de detalhe sem href")
	}

	pubText, _ := cellText(cells[4])
	deadlineText, _ := cellText(cells[6])
	pubDate, _ := rocdate.Parse(pubText)
	deadline, _ := rocdate.Parse(deadlineText)

	return &TenderInfo{
		OrgName:     orgName,
		TenderNo:    tenderNo,
		ProjectName: projectName,
		DetailLink:  *href,
		PkPmsMain:   ExtractPK(*href),
		PubDate:     pubDate,
		Deadline:    deadline,
	}, nil
}

// SplitTenderCell separa "número\nnome do projeto" da célula combinada.
func SplitTenderCell(text string) (tenderNo, projectName string) {
	parts := strings.SplitN(strings.TrimSpace(text), "\n", 2)
	tenderNo = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		projectName = strings.TrimSpace(parts[1])
	}
	return tenderNo, projectName
}

// ExtractPK extrai o identificador interno do link de detalhe.
func ExtractPK(link string) string {
	idx := strings.LastIndex(link, "pk=")
	if idx < 0 {
		return ""
	}
	pk := link[idx+len("pk="):]
	if amp := strings.Index(pk, "&"); amp >= 0 {
		pk = pk[:amp]
	}
	return pk
}

// FetchOrgID busca o código interno de um órgão pelo nome, numa aba à parte,
// com retries. Código vazio após os retries vira erro.
func (h *Harvester) FetchOrgID(orgName string, maxRetries int) (string, error) {
	page, err := NewStealthPage(h.Browser)
	if err != nil {
		return "", err
	}
	defer page.Close()

	var lastErr error
	for retry := 0; retry < maxRetries; retry++ {
		if retry > 0 {
			fmt.Printf("🔄 [Scraper] Recarregando busca de órgão (%d/%d)...\n", retry+1, maxRetries)
			time.Sleep(2 * time.Second)
		}
		orgID, err := fetchOrgIDOnce(page, orgName)
		if err == nil && orgID != "" {
			fmt.Printf("🏢 [Scraper] Código do órgão '%s': %s\n", orgName, orgID)
			return orgID, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("código do órgão '%s' não encontrado após %d tentativas: %w",
		orgName, maxRetries, lastErr)
}

func fetchOrgIDOnce(page *rod.Page, orgName string) (string, error) {
	if err := page.Timeout(30 * time.Second).Navigate(OrgSearchURL); err != nil {
		return "", err
	}
	page.Timeout(10 * time.Second).WaitLoad()

	input, err := page.Timeout(10 * time.Second).ElementX(
		"/html/body/div/div[2]/div/div[2]/div/form/table/tbody/tr/td[1]/input")
	if err != nil {
		return "", fmt.Errorf("campo de busca não encontrado: %w", err)
	}
	if err := input.SelectAllText(); err == nil {
		_ = input.Input("")
	}
	if err := input.Input(orgName); err != nil {
		return "", fmt.Errorf("erro preenchendo busca: %w", err)
	}

	form, err := page.ElementX("/html/body/div/div[2]/div/div[2]/div/form")
	if err != nil {
		return "", fmt.Errorf("formulário de busca não encontrado: %w", err)
	}
	if _, err := form.Eval("() => this.submit()"); err != nil {
		return "", fmt.Errorf("erro submetendo busca: %w", err)
	}

	cell, err := page.Timeout(10 * time.Second).ElementX(
		"/html/body/div/div[2]/div/div[2]/div/table/tbody/tr[2]/td[1]")
	if err != nil {
		return "", fmt.Errorf("resultado da busca de órgão não apareceu: %w", err)
	}
	return cellText(cell)
}

// FetchTenderDetails abre a página de detalhe numa aba à parte e colhe os
// campos mapeados. A tabela intercala rótulo e valor em células adjacentes.
func (h *Harvester) FetchTenderDetails(pkPmsMain string) (map[string]string, error) {
	page, err := NewStealthPage(h.Browser)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	url := fmt.Sprintf(DetailURLFmt, pkPmsMain)
	if err := page.Timeout(60 * time.Second).Navigate(url); err != nil {
		return nil, fmt.Errorf("erro navegando para detalhe %s: %w", pkPmsMain, err)
	}
	page.Timeout(15 * time.Second).WaitLoad()
	time.Sleep(time.Second)

	if h.Captcha != nil {
		if _, err := h.Captcha(page); err != nil {
			return nil, fmt.Errorf("erro no captcha do detalhe %s: %w", pkPmsMain, err)
		}
	}

	cells, err := page.Timeout(15 * time.Second).ElementsX("//table//td")
	if err != nil {
		return nil, fmt.Errorf("tabela de detalhe não encontrada: %w", err)
	}

	details := make(map[string]string)
	for i, cell := range cells {
		label, err := cellText(cell)
		if err != nil {
			continue
		}
		col, ok := FieldsMapping[label]
		if !ok {
			continue
		}
		value := ""
		if i+1 < len(cells) {
			value, _ = cellText(cells[i+1])
		}
		details[col] = value
	}
	return details, nil
}

func cellText(el *rod.Element) (string, error) {
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
