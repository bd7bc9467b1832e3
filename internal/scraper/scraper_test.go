package scraper

import (
	"strings"
	"testing"
)

func TestBuildSearchURL(t *testing.T) {
	url := BuildSearchURL("案", "113", 100, 1)
	if !strings.HasPrefix(url, SearchBaseURL+"?") {
		t.Errorf("URL base errada: %s", url)
	}
	for _, want := range []string{
		"querySentence=案",
		"tenderStatusType=%E6%8B%9B%E6%A8%99",
		"sortCol=TENDER_NOTICE_DATE",
		"timeRange=113",
		"pageSize=100",
	} {
		if !strings.Contains(url, want) {
			t.Errorf("URL sem o parâmetro %q: %s", want, url)
		}
	}
	if strings.Contains(url, pageParam) {
		t.Errorf("primeira página não leva parâmetro de paginação: %s", url)
	}
}

func TestBuildSearchURLPaginada(t *testing.T) {
	url := BuildSearchURL("案", "113", 100, 3)
	if !strings.Contains(url, "d-3611040-p=3") {
		t.Errorf("página 3 deveria carregar o parâmetro de paginação: %s", url)
	}
}

func TestSplitTenderCell(t *testing.T) {
	no, name := SplitTenderCell("1130301-A\n道路修繕工程")
	if no != "1130301-A" {
		t.Errorf("número errado: %q", no)
	}
	if name != "道路修繕工程" {
		t.Errorf("nome errado: %q", name)
	}

	// Célula sem quebra: só o número
	no, name = SplitTenderCell("  1130301-B  ")
	if no != "1130301-B" || name != "" {
		t.Errorf("célula de uma linha: (%q, %q)", no, name)
	}
}

func TestExtractPK(t *testing.T) {
	cases := map[string]string{
		"https://web.pcc.gov.tw/tps/tpam/main/tps/tpam/tpam_tender_detail.do?searchMode=common&scope=F&primaryKey=123&pk=60123456": "60123456",
		"https://web.pcc.gov.tw/detalhe?pk=ABC123&other=x":                                                                         "ABC123",
		"https://web.pcc.gov.tw/detalhe-sem-pk":                                                                                    "",
	}
	for link, want := range cases {
		if got := ExtractPK(link); got != want {
			t.Errorf("ExtractPK(%q) = %q, esperava %q", link, got, want)
		}
	}
}

func TestFieldsMappingCobreColunasDeDetalhe(t *testing.T) {
	if len(FieldsMapping) < 50 {
		t.Errorf("mapeamento de campos incompleto: %d entradas", len(FieldsMapping))
	}
	if FieldsMapping["招標方式"] != "tender_method" {
		t.Error("campo de método de licitação ausente — a fase de detalhe depende dele para marcar 'finished'")
	}
	for label, col := range FieldsMapping {
		if !DetailColumns[col] {
			t.Errorf("coluna %q (rótulo %q) fora da whitelist", col, label)
		}
	}
}
