package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"arena-duel/server/logging"
)

// HTTPBatch forwards events in batches to a telemetry collector. Delivery is
// fire-and-forget: failed posts are logged and the batch is discarded.
type HTTPBatch struct {
	url      string
	client   *http.Client
	maxBatch int
	logger   *log.Logger

	mu       sync.Mutex
	pending  []logging.Event
	inFlight sync.WaitGroup

	stop      chan struct{}
	closeOnce sync.Once
}

type httpBatchBody struct {
	Records []httpRecord `json:"records"`
}

type httpRecord struct {
	Type    logging.EventType `json:"type"`
	Frame   uint64            `json:"frame"`
	Time    time.Time         `json:"time"`
	MatchID string            `json:"matchId,omitempty"`
	Payload any               `json:"payload,omitempty"`
}

func NewHTTPBatch(cfg logging.HTTPConfig, logger *log.Logger) *HTTPBatch {
	if logger == nil {
		logger = log.Default()
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 32
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	sink := &HTTPBatch{
		url:      cfg.URL,
		client:   &http.Client{Timeout: timeout},
		maxBatch: maxBatch,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	if cfg.FlushInterval > 0 {
		go sink.periodicFlush(cfg.FlushInterval)
	}
	return sink
}

func (s *HTTPBatch) Write(event logging.Event) error {
	s.mu.Lock()
	s.pending = append(s.pending, event)
	var batch []logging.Event
	if len(s.pending) >= s.maxBatch {
		batch = s.pending
		s.pending = nil
	}
	s.mu.Unlock()
	if batch != nil {
		s.inFlight.Add(1)
		go func() {
			defer s.inFlight.Done()
			s.post(batch)
		}()
	}
	return nil
}

// Flush posts whatever is pending and waits for in-flight posts.
func (s *HTTPBatch) Flush() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(batch) > 0 {
		s.post(batch)
	}
	s.inFlight.Wait()
}

func (s *HTTPBatch) Close(context.Context) error {
	s.closeOnce.Do(func() { close(s.stop) })
	s.Flush()
	return nil
}

func (s *HTTPBatch) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

func (s *HTTPBatch) post(batch []logging.Event) {
	if s.url == "" {
		return
	}
	body := httpBatchBody{Records: make([]httpRecord, 0, len(batch))}
	for _, event := range batch {
		body.Records = append(body.Records, httpRecord{
			Type:    event.Type,
			Frame:   event.Frame,
			Time:    event.Time,
			MatchID: event.MatchID,
			Payload: event.Payload,
		})
	}
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Printf("telemetry batch encode failed: %v", err)
		return
	}
	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(data))
	if err != nil {
		s.logger.Printf("telemetry batch post failed: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.logger.Printf("telemetry batch rejected: %s", resp.Status)
	}
}
