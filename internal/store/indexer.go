package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Indexer ships documents to a search index.
type Indexer interface {
	Index(ctx context.Context, id string, doc interface{}) error
}

// ESIndexer writes documents to one Elasticsearch index.
type ESIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewESIndexer(client *elasticsearch.Client, index string) *ESIndexer {
	return &ESIndexer{client: client, index: index}
}

func (i *ESIndexer) Index(ctx context.Context, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	opts := []func(*esapi.IndexRequest){
		i.client.Index.WithContext(ctx),
	}
	if id != "" {
		opts = append(opts, i.client.Index.WithDocumentID(id))
	}

	res, err := i.client.Index(i.index, bytes.NewReader(body), opts...)
	if err != nil {
		return fmt.Errorf("elasticsearch index failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch index error: %s", res.Status())
	}
	return nil
}
