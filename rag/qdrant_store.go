package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/docflow/types"
	"go.uber.org/zap"
)

// QdrantConfig configures the Qdrant VectorStore implementation.
//
// Notes:
// - DocFlow's query path is read-only; collections are created and populated
//   by the offline indexing service.
// - Chunk content/metadata are recovered from point payload fields.
type QdrantConfig struct {
	Host    string        `json:"host" yaml:"host"`
	Port    int           `json:"port" yaml:"port"`
	BaseURL string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey  string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	PayloadContentField    string `json:"payload_content_field" yaml:"payload_content_field"`       // default "content"
	PayloadDocIDField      string `json:"payload_doc_id_field" yaml:"payload_doc_id_field"`         // default "document_id"
	PayloadChunkIndexField string `json:"payload_chunk_index_field" yaml:"payload_chunk_index_field"` // default "chunk_index"
	PayloadUpdatedAtField  string `json:"payload_updated_at_field" yaml:"payload_updated_at_field"` // default "updated_at"
}

// QdrantStore implements VectorStore using Qdrant's REST API.
type QdrantStore struct {
	cfg QdrantConfig

	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewQdrantStore creates a Qdrant-backed VectorStore.
func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) *QdrantStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PayloadContentField == "" {
		cfg.PayloadContentField = "content"
	}
	if cfg.PayloadDocIDField == "" {
		cfg.PayloadDocIDField = "document_id"
	}
	if cfg.PayloadChunkIndexField == "" {
		cfg.PayloadChunkIndexField = "chunk_index"
	}
	if cfg.PayloadUpdatedAtField == "" {
		cfg.PayloadUpdatedAtField = "updated_at"
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}

	return &QdrantStore{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With(zap.String("component", "qdrant_store")),
	}
}

func (s *QdrantStore) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(s.cfg.APIKey) != "" {
		// Qdrant convention.
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

// unavailable 将传输层失败统一映射为终止性的检索不可用错误。
func unavailable(msg string, cause error) error {
	e := types.NewError(types.ErrRetrievalUnavailable, msg)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

func (s *QdrantStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	endpoint := s.baseURL + path

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return types.NewError(types.ErrRequestCancelled, "qdrant request cancelled").WithCause(ctx.Err())
		}
		return unavailable("qdrant unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return unavailable(fmt.Sprintf("qdrant request failed: method=%s path=%s status=%d body=%s",
			method, path, resp.StatusCode, string(raw)), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return unavailable("qdrant response decode failed", err)
	}
	return nil
}

// Search 实现 VectorStore。
func (s *QdrantStore) Search(ctx context.Context, collection string, queryVector []float64, topK int) ([]SearchHit, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "qdrant collection is required")
	}
	if topK <= 0 {
		return []SearchHit{}, nil
	}
	if len(queryVector) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "query vector is required")
	}

	req := struct {
		Vector      []float64 `json:"vector"`
		Limit       int       `json:"limit"`
		WithPayload bool      `json:"with_payload"`
		WithVector  bool      `json:"with_vector"`
	}{
		Vector:      queryVector,
		Limit:       topK,
		WithPayload: true,
		WithVector:  false,
	}

	type qdrantResult struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	}
	var resp struct {
		Result []qdrantResult `json:"result"`
		Status string         `json:"status"`
	}

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(collection))
	if err := s.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	out := make([]SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hit := SearchHit{
			ChunkID: fmt.Sprint(r.ID),
			Score:   r.Score,
		}
		if r.Payload != nil {
			if v, ok := r.Payload[s.cfg.PayloadContentField].(string); ok {
				hit.Content = v
			}
			if v, ok := r.Payload[s.cfg.PayloadDocIDField].(string); ok {
				hit.DocumentID = v
			}
			if v, ok := r.Payload[s.cfg.PayloadChunkIndexField].(float64); ok {
				hit.ChunkIndex = int(v)
			}
			if v, ok := r.Payload[s.cfg.PayloadUpdatedAtField].(string); ok {
				if ts, err := time.Parse(time.RFC3339, v); err == nil {
					hit.UpdatedAt = ts
				}
			}
		}
		out = append(out, hit)
	}

	s.logger.Debug("qdrant search completed",
		zap.String("collection", collection),
		zap.Int("hits", len(out)))

	return out, nil
}
