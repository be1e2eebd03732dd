package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ElasticsearchLogger ships entries to Elasticsearch through the bulk API.
// Entries are buffered and flushed when the batch fills or the flush
// interval elapses. Shipping failures are dropped silently; log shipping
// must never interfere with delivery work.
type ElasticsearchLogger struct {
	config    *Config
	client    *http.Client
	buffer    chan *Entry
	closeChan chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewElasticsearchLogger creates the Elasticsearch tier
func NewElasticsearchLogger(config *Config) *ElasticsearchLogger {
	el := &ElasticsearchLogger{
		config:    config,
		client:    &http.Client{Timeout: 10 * time.Second},
		buffer:    make(chan *Entry, config.Elasticsearch.BulkSize*4),
		closeChan: make(chan struct{}),
	}

	el.wg.Add(1)
	go el.bulkShipper()

	return el
}

func (el *ElasticsearchLogger) log(entry *Entry) {
	select {
	case el.buffer <- entry:
	default:
	}
}

func (el *ElasticsearchLogger) bulkShipper() {
	defer el.wg.Done()

	batch := make([]*Entry, 0, el.config.Elasticsearch.BulkSize)
	ticker := time.NewTicker(el.config.Elasticsearch.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-el.buffer:
			batch = append(batch, entry)
			if len(batch) >= el.config.Elasticsearch.BulkSize {
				el.ship(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				el.ship(batch)
				batch = batch[:0]
			}
		case <-el.closeChan:
			for {
				select {
				case entry := <-el.buffer:
					batch = append(batch, entry)
				default:
					if len(batch) > 0 {
						el.ship(batch)
					}
					return
				}
			}
		}
	}
}

func (el *ElasticsearchLogger) ship(batch []*Entry) {
	index := fmt.Sprintf("%s-%s", el.config.Elasticsearch.IndexPrefix, time.Now().Format("2006.01.02"))

	var body bytes.Buffer
	for _, entry := range batch {
		meta, _ := json.Marshal(map[string]interface{}{"index": map[string]string{"_index": index}})
		doc, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		body.Write(meta)
		body.WriteByte('\n')
		body.Write(doc)
		body.WriteByte('\n')
	}

	url := el.config.Elasticsearch.Addresses[0] + "/_bulk"
	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if el.config.Elasticsearch.Username != "" {
		req.SetBasicAuth(el.config.Elasticsearch.Username, el.config.Elasticsearch.Password)
	}

	resp, err := el.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// Close flushes buffered entries and stops the shipper
func (el *ElasticsearchLogger) Close() error {
	el.closeOnce.Do(func() {
		close(el.closeChan)
	})
	el.wg.Wait()
	return nil
}
