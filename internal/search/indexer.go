// Package search publica as licitações coletadas num índice Meilisearch,
// para busca textual fora do Postgres.
package search

import (
	"fmt"
	"log"

	"github.com/meilisearch/meilisearch-go"
)

// TenderDoc define a estrutura do documento no Meilisearch.
type TenderDoc struct {
	PkPmsMain       string `json:"pk_pms_main"`
	TenderNo        string `json:"tender_no"`
	OrgName         string `json:"org_name"`
	ProjectName     string `json:"project_name"`
	PublicationDate string `json:"publication_date,omitempty"`
	URL             string `json:"url"`
	Status          string `json:"status,omitempty"`
}

// Indexer guarda a conexão aberta com o Meilisearch.
type Indexer struct {
	client    meilisearch.ServiceManager
	indexName string
}

// NewIndexer cria a conexão e garante que o índice existe. A chave primária
// é o identificador interno do portal, estável entre re-coletas.
func NewIndexer(host, apiKey, indexName string) *Indexer {
	client := meilisearch.New(host, meilisearch.WithAPIKey(apiKey))

	_, err := client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        indexName,
		PrimaryKey: "pk_pms_main",
	})
	if err != nil {
		log.Printf("Aviso Meilisearch: %v", err)
	}

	client.Index(indexName).UpdateSearchableAttributes(&[]string{
		"tender_no",
		"org_name",
		"project_name",
	})

	client.Index(indexName).UpdateSortableAttributes(&[]string{
		"publication_date",
	})

	filterableAttrs := []interface{}{"status", "org_name"}
	client.Index(indexName).UpdateFilterableAttributes(&filterableAttrs)

	fmt.Println("Conectado ao Meilisearch!")

	return &Indexer{
		client:    client,
		indexName: indexName,
	}
}

// IndexTender faz upsert parcial do documento. Upsert parcial para que a
// fase de detalhe não apague o que a descoberta já indexou.
func (i *Indexer) IndexTender(doc map[string]interface{}) error {
	pk := "pk_pms_main"
	task, err := i.client.Index(i.indexName).UpdateDocuments([]map[string]interface{}{doc}, &meilisearch.DocumentOptions{PrimaryKey: &pk})
	if err != nil {
		return fmt.Errorf("erro ao indexar licitação: %w", err)
	}

	fmt.Printf("Enviado para Meilisearch (Task UID: %d, PK: %v)\n", task.TaskUID, doc["pk_pms_main"])
	return nil
}

// GetDocument busca um documento específico no índice.
func (i *Indexer) GetDocument(pk string) (*TenderDoc, error) {
	var doc TenderDoc
	err := i.client.Index(i.indexName).GetDocument(pk, &meilisearch.DocumentQuery{}, &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
