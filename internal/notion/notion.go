package notion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"learntracker/internal/domain"
	"learntracker/internal/store"

	"github.com/jomei/notionapi"
)

const (
	apiVersion     = "2022-06-28"
	requestTimeout = 30 * time.Second

	// HashTagPrefix marks records without a URL so that Exists can find them.
	HashTagPrefix = "repo-hash:"
	// URLTagPrefix marks link records with a digest of their normalized URL.
	URLTagPrefix = "repo-url:"
)

// Store writes records as pages of an existing Notion database.
type Store struct {
	client     *notionapi.Client
	token      string
	databaseID notionapi.DatabaseID
	log        *slog.Logger
}

func New(token string, databaseID string, log *slog.Logger) *Store {
	return NewWithClient(&http.Client{Timeout: requestTimeout}, token, databaseID, log)
}

// NewWithClient builds a store on top of httpClient. The client's own 429
// retries are limited to a single request; the Dedup Gate owns retries.
func NewWithClient(httpClient *http.Client, token string, databaseID string, log *slog.Logger) *Store {
	return &Store{
		client: notionapi.NewClient(notionapi.Token(token),
			notionapi.WithHTTPClient(httpClient),
			notionapi.WithVersion(apiVersion),
			notionapi.WithRetry(1)),
		token:      token,
		databaseID: notionapi.DatabaseID(databaseID),
		log:        log,
	}
}

func (s *Store) Name() string {
	return "notion"
}

// Exists looks the identity up by its tag. Link and text records both carry
// one, so a single multi_select condition covers every identity.
func (s *Store) Exists(ctx context.Context, identity string) (bool, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return false, nil
	}

	resp, err := s.client.Database.Query(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{
		Filter: &notionapi.PropertyFilter{
			Property:    "Tags",
			MultiSelect: &notionapi.MultiSelectFilterCondition{Contains: identityTag(identity)},
		},
		PageSize: 1,
	})
	if err != nil {
		return false, storeError(store.OpExists, fmt.Errorf("query database: %w", err))
	}

	return len(resp.Results) > 0, nil
}

func (s *Store) Write(ctx context.Context, record domain.SummaryRecord) error {
	created, err := s.client.Page.Create(ctx, s.page(record))
	if err != nil {
		return storeError(store.OpWrite, fmt.Errorf("create page: %w", err))
	}

	s.log.DebugContext(ctx, "Notion page is created",
		"identity", record.Identity,
		"pageID", string(created.ID),
		"pageURL", created.URL)

	return nil
}

// storeError marks rate limits, 5xx responses, network failures and
// deadlines as retryable. The gate retries only existence checks.
func storeError(op store.Op, err error) *store.Error {
	return &store.Error{Op: op, Retryable: retryable(err), Err: err}
}

func retryable(err error) bool {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	}

	var rateLimited *notionapi.RateLimitedError
	if errors.As(err, &rateLimited) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func isURL(identity string) bool {
	return strings.HasPrefix(identity, "http://") || strings.HasPrefix(identity, "https://")
}

// identityTag is the tag stored on the page for identity. Text identities
// ("sha256:<hex>") keep their digest; URLs are hashed to fit the
// 100-character option name limit.
func identityTag(identity string) string {
	if isURL(identity) {
		sum := sha256.Sum256([]byte(identity))
		return URLTagPrefix + hex.EncodeToString(sum[:])[:16]
	}

	_, hash, ok := strings.Cut(identity, ":")
	if !ok {
		hash = identity
	}
	return HashTagPrefix + hash
}

// Check reports configuration problems before the first request.
func (s *Store) Check() error {
	if strings.TrimSpace(string(s.databaseID)) == "" {
		return errors.New("notion database id is empty")
	}
	if strings.TrimSpace(s.token) == "" {
		return errors.New("notion token is empty")
	}
	return nil
}
