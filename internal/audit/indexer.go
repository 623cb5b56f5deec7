package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/fintrack/auth-service/internal/logging"
)

const DefaultIndex = "auth-audit"

// Entry is one security-relevant auth event, indexed for analytics. It only
// carries audit-safe fields, never token material.
type Entry struct {
	Event     string    `json:"event"`
	UserID    string    `json:"user_id"`
	JTI       string    `json:"jti,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Outcome   string    `json:"outcome"`
	At        time.Time `json:"at"`
}

func NewClient(url, user, password string) (*elasticsearch.Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, err
	}

	res, err := client.Info()
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch: %s: %s", res.Status(), body)
	}

	return client, nil
}

// Indexer writes audit entries fire-and-forget. A nil Indexer drops them.
type Indexer struct {
	Client *elasticsearch.Client
	Index  string
}

func NewIndexer(client *elasticsearch.Client) *Indexer {
	if client == nil {
		return nil
	}
	return &Indexer{Client: client, Index: DefaultIndex}
}

func (ix *Indexer) Record(ctx context.Context, e Entry) {
	if ix == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		logging.FromContext(ctx).Error("audit_index_error", "error", err)
		return
	}

	res, err := ix.Client.Index(ix.Index, bytes.NewReader(data), ix.Client.Index.WithContext(ctx))
	if err != nil {
		logging.FromContext(ctx).Error("audit_index_error", "error", err)
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		logging.FromContext(ctx).Error("audit_index_error", "status", res.Status())
	}
}
