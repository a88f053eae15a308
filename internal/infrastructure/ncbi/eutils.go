// Package ncbi queries the NCBI e-utilities for dbSNP identifiers and
// ClinVar clinical significance.
package ncbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/domain"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/httpx"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/ports"
)

const defaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// EUtilsClient talks to esearch/esummary. NCBI requires a contact email on
// every call; when it is unconfigured both lookups report "no data" instead
// of failing the variant.
type EUtilsClient struct {
	http    *httpx.Client
	limiter *httpx.Limiter
	baseURL string
	email   string
	apiKey  string
}

var _ ports.IdentifierSource = (*EUtilsClient)(nil)
var _ ports.ClinicalSource = (*EUtilsClient)(nil)

// NewEUtilsClient wires the shared request executor and the NCBI permit pool.
func NewEUtilsClient(httpClient *httpx.Client, limiter *httpx.Limiter, baseURL, email, apiKey string) *EUtilsClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &EUtilsClient{http: httpClient, limiter: limiter, baseURL: baseURL, email: email, apiKey: apiKey}
}

type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// FindRSID searches dbSNP by chromosome and position and returns the first
// matching record's identifier, or "" when nothing matched.
func (c *EUtilsClient) FindRSID(ctx context.Context, chromosome string, position int64) (string, error) {
	if c.email == "" {
		return "", nil
	}

	chrom := strings.TrimPrefix(chromosome, "chr")
	params := c.baseParams()
	params.Set("db", "snp")
	params.Set("term", fmt.Sprintf("%s[CHR] AND %d[CHRPOS]", chrom, position))

	ids, err := c.esearch(ctx, params)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	return "rs" + ids[0], nil
}

// Significance resolves clinical significance for a known rsID via the
// two-step ClinVar protocol: esearch for the internal record id, then
// esummary for its significance text, normalized to the canonical enum.
func (c *EUtilsClient) Significance(ctx context.Context, rsID string) (string, error) {
	if c.email == "" {
		return "", nil
	}

	params := c.baseParams()
	params.Set("db", "clinvar")
	params.Set("term", rsID)

	ids, err := c.esearch(ctx, params)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}

	raw, err := c.clinvarSummary(ctx, ids[0])
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", nil
	}
	return domain.NormalizeSignificance(raw), nil
}

func (c *EUtilsClient) esearch(ctx context.Context, params url.Values) ([]string, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/esearch.fcgi", params, nil, c.limiter)
	if err != nil {
		return nil, err
	}

	var parsed esearchResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("parse esearch response: %w", err)
	}
	return parsed.Result.IDList, nil
}

func (c *EUtilsClient) clinvarSummary(ctx context.Context, recordID string) (string, error) {
	params := c.baseParams()
	params.Set("db", "clinvar")
	params.Set("id", recordID)

	resp, err := c.http.Get(ctx, c.baseURL+"/esummary.fcgi", params, nil, c.limiter)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", fmt.Errorf("parse esummary response: %w", err)
	}

	entry, ok := parsed.Result[recordID]
	if !ok {
		return "", nil
	}

	var record struct {
		ClinicalSignificance json.RawMessage `json:"clinical_significance"`
		Legacy               json.RawMessage `json:"clinicalsignificance"`
	}
	if err := json.Unmarshal(entry, &record); err != nil {
		return "", fmt.Errorf("parse clinvar record: %w", err)
	}

	raw := record.ClinicalSignificance
	if len(raw) == 0 {
		raw = record.Legacy
	}
	return significanceText(raw), nil
}

// significanceText accepts both payload shapes ClinVar has used: an object
// with a description field, or a bare string. An object without a
// description still names a record, so it reads as uncertain significance
// rather than no data.
func significanceText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}

	if trimmed[0] == '{' {
		var object struct {
			Description string `json:"description"`
		}
		if err := json.Unmarshal(trimmed, &object); err != nil {
			return ""
		}
		if object.Description == "" {
			return domain.SignificanceUncertain
		}
		return object.Description
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text
	}
	return ""
}

func (c *EUtilsClient) baseParams() url.Values {
	params := url.Values{}
	params.Set("retmode", "json")
	params.Set("email", c.email)
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	return params
}
