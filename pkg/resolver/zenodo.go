package resolver

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/glorpus-work/onboard/internal/logger"
	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/model"
	"github.com/glorpus-work/onboard/pkg/validate"
)

const (
	// ZenodoProvider is the provider name of the Zenodo resolver.
	ZenodoProvider = "zenodo"
	// DefaultZenodoBaseURL is the public Zenodo REST API.
	DefaultZenodoBaseURL = "https://zenodo.org/api"

	maxRecordBytes = 32 << 20
)

//go:embed schema/zenodo_search.json
var zenodoSearchSchema []byte

var zenodoSchema = validate.MustCompile("zenodo_search.json", zenodoSearchSchema)

// Zenodo resolves Zenodo DOIs through the records search API.
type Zenodo struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

// NewZenodo creates a Zenodo resolver. An empty baseURL selects the public
// API.
func NewZenodo(baseURL string, timeout time.Duration, userAgent string) *Zenodo {
	if baseURL == "" {
		baseURL = DefaultZenodoBaseURL
	}
	if userAgent == "" {
		userAgent = "onboard/1.0"
	}
	return &Zenodo{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Provider returns "zenodo".
func (z *Zenodo) Provider() string { return ZenodoProvider }

type zenodoSearch struct {
	Hits struct {
		Hits []json.RawMessage `json:"hits"`
	} `json:"hits"`
}

type zenodoRecord struct {
	DOI      string `json:"doi"`
	Metadata struct {
		Title   string `json:"title"`
		Version string `json:"version"`
	} `json:"metadata"`
	Files []struct {
		Key      string `json:"key"`
		Checksum string `json:"checksum"`
		Size     int64  `json:"size"`
		Links    struct {
			Self string `json:"self"`
		} `json:"links"`
	} `json:"files"`
}

// Resolve finds the record for a DOI (or bare record number) and returns
// the first search hit.
func (z *Zenodo) Resolve(ctx context.Context, id string) (*model.Record, error) {
	doi := NormalizeDOI(id)
	query := url.Values{"q": {fmt.Sprintf("doi:%q", doi)}}
	endpoint := z.baseURL + "/records?" + query.Encode()

	body, err := z.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if err := zenodoSchema.ValidateJSON(body); err != nil {
		return nil, fmt.Errorf("zenodo record %s: %w: %v", doi, onboarderrors.ErrInvalidRecord, err)
	}

	var search zenodoSearch
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("zenodo record %s: %w: %v", doi, onboarderrors.ErrInvalidRecord, err)
	}
	if len(search.Hits.Hits) == 0 {
		return nil, fmt.Errorf("no zenodo record for doi %s: %w", doi, onboarderrors.ErrNotFound)
	}
	raw := search.Hits.Hits[0]

	var rec zenodoRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("zenodo record %s: %w: %v", doi, onboarderrors.ErrInvalidRecord, err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("zenodo record %s: %w: %v", doi, onboarderrors.ErrInvalidRecord, err)
	}

	record := &model.Record{
		Provider: ZenodoProvider,
		ID:       doi,
		Version:  rec.Metadata.Version,
		Data:     data,
	}
	for _, f := range rec.Files {
		record.Files = append(record.Files, model.RemoteFile{
			Key:      f.Key,
			URL:      f.Links.Self,
			Checksum: f.Checksum,
			Size:     f.Size,
		})
	}
	logger.Debug("resolved zenodo record", logger.Fields{"doi": doi, "title": rec.Metadata.Title, "files": len(record.Files), "version": record.Version})
	return record, nil
}

func (z *Zenodo) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, &onboarderrors.FetchError{URL: endpoint, Err: err}
	}
	req.Header.Set("User-Agent", z.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := z.client.Do(req)
	if err != nil {
		return nil, &onboarderrors.FetchError{URL: endpoint, Err: err, Timeout: isTimeout(err)}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, &onboarderrors.FetchError{URL: endpoint, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordBytes))
	if err != nil {
		return nil, &onboarderrors.FetchError{URL: endpoint, Err: err, Timeout: isTimeout(err)}
	}
	return body, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}
