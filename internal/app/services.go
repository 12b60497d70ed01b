package app

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/archivist/internal/assertion"
	"horse.fit/archivist/internal/cas"
	"horse.fit/archivist/internal/config"
	"horse.fit/archivist/internal/db"
	"horse.fit/archivist/internal/extract"
	"horse.fit/archivist/internal/objectstore"
	"horse.fit/archivist/internal/pipeline"
	"horse.fit/archivist/internal/search"
)

// services bundles the wired collaborators a command needs.
type services struct {
	content *cas.Service
	records *db.RecordStore
	indexer pipeline.Indexer
	ingest  *pipeline.Service
}

// buildServices wires the pipeline against the configured external systems.
// Without an IPFS API URL blobs live in process memory; without an
// Elasticsearch URL index writes are dropped. Both substitutions are for
// local runs only.
func buildServices(cfg *config.Config, pool *db.Pool, logger zerolog.Logger) (*services, error) {
	var blobs cas.Blobstore
	if cfg.IPFSAPIURL != "" {
		blobs = cas.NewIPFSBlobstore(cfg.IPFSAPIURL)
	} else {
		logger.Warn().Msg("no IPFS API configured, using in-memory blob storage")
		blobs = cas.NewMemoryBlobstore()
	}
	content := cas.New(blobs, cfg.MaxPayloadBytes)

	var indexer pipeline.Indexer
	if cfg.ElasticURL != "" {
		elastic, err := search.NewElasticIndexer(cfg.ElasticURL, cfg.SearchIndex)
		if err != nil {
			return nil, fmt.Errorf("building search indexer: %w", err)
		}
		indexer = elastic
	} else {
		logger.Warn().Msg("no Elasticsearch configured, search indexing disabled")
		indexer = search.DisabledIndexer{}
	}

	records := db.NewRecordStore(pool)
	ingest := pipeline.New(pipeline.Options{
		Content: content,
		Extract: extract.NewTikaClient(cfg.TikaURL),
		Fetcher: objectstore.NewHTTPFetcher(cfg.ObjectStoreOrigin),
		Records: records,
		Indexer: indexer,
		Builder: assertion.Builder{
			GatewayBase:     cfg.GatewayBaseURL,
			DocumentURIBase: cfg.DocumentURIBase,
			DocumentURLBase: cfg.DocumentURLBase,
		},
		NewID:  uuid.NewString,
		Logger: logger,
	})

	return &services{
		content: content,
		records: records,
		indexer: indexer,
		ingest:  ingest,
	}, nil
}
