// Package blast submits nucleotide queries to the NCBI BLAST URL API and
// interprets the XML report into alignment hits.
package blast

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/domain"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/httpx"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/ports"
)

const defaultBaseURL = "https://blast.ncbi.nlm.nih.gov/Blast.cgi"

var (
	chromosomeWordExpr = regexp.MustCompile(`(?i)chromosome\s+(\d+|X|Y)`)
	chromosomeAbbrExpr = regexp.MustCompile(`(?i)chr(\d+|X|Y)`)
	accessionExpr      = regexp.MustCompile(`NC_0000(\d{2})`)
	qblastInfoExpr     = regexp.MustCompile(`QBlastInfoBegin(?s:(.*?))QBlastInfoEnd`)
)

// Options tunes the submit/poll cycle.
type Options struct {
	BaseURL      string
	Email        string
	APIKey       string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Client drives one blastn search per call against the human nt database.
// All traffic goes through the shared retry client under the NCBI limiter.
type Client struct {
	http         *httpx.Client
	limiter      *httpx.Limiter
	baseURL      string
	email        string
	apiKey       string
	pollInterval time.Duration
	timeout      time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *slog.Logger
}

var _ ports.Aligner = (*Client)(nil)

// NewClient wires the shared request executor and the NCBI permit pool.
func NewClient(httpClient *httpx.Client, limiter *httpx.Limiter, opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:         httpClient,
		limiter:      limiter,
		baseURL:      opts.BaseURL,
		email:        opts.Email,
		apiKey:       opts.APIKey,
		pollInterval: opts.PollInterval,
		timeout:      opts.Timeout,
		sleep:        sleepContext,
		logger:       logger,
	}
}

// Align runs a full submit/poll/fetch cycle and returns the parsed hits,
// sorted ascending by e-value. A missing NCBI email fails before any network
// call; every upstream failure propagates to the job layer.
func (c *Client) Align(ctx context.Context, sequence string) (domain.AlignmentResult, error) {
	if c.email == "" {
		return domain.AlignmentResult{}, &httpx.ConfigError{Setting: "NCBI_EMAIL", Reason: "is required for BLAST searches"}
	}

	c.logger.Info("submitting BLAST search", "sequence_length", len(sequence))

	rid, err := c.submit(ctx, sequence)
	if err != nil {
		return domain.AlignmentResult{}, fmt.Errorf("submit search: %w", err)
	}

	if err := c.waitReady(ctx, rid); err != nil {
		return domain.AlignmentResult{}, fmt.Errorf("wait for %s: %w", rid, err)
	}

	report, err := c.fetchReport(ctx, rid)
	if err != nil {
		return domain.AlignmentResult{}, fmt.Errorf("fetch report %s: %w", rid, err)
	}

	result := interpretReport(report, len(sequence))

	best := result.BestHit()
	if best != nil {
		c.logger.Info("BLAST search completed",
			"rid", rid,
			"total_hits", len(result.Hits),
			"best_chromosome", best.Chromosome,
			"best_identity", best.Identity)
	} else {
		c.logger.Info("BLAST search completed without hits", "rid", rid)
	}

	return result, nil
}

// submit posts the search with the fixed blastn parameters and extracts the
// request id from the returned page.
func (c *Client) submit(ctx context.Context, sequence string) (string, error) {
	form := url.Values{}
	form.Set("CMD", "Put")
	form.Set("PROGRAM", "blastn")
	form.Set("DATABASE", "nt")
	form.Set("ENTREZ_QUERY", "Homo sapiens[organism]")
	form.Set("HITLIST_SIZE", "10")
	form.Set("EXPECT", "0.001")
	form.Set("WORD_SIZE", "11")
	form.Set("MEGABLAST", "on")
	form.Set("QUERY", sequence)
	form.Set("EMAIL", c.email)
	if c.apiKey != "" {
		form.Set("API_KEY", c.apiKey)
	}

	resp, err := c.http.PostForm(ctx, c.baseURL, form, c.limiter)
	if err != nil {
		return "", err
	}

	rid := extractRID(resp.Body)
	if rid == "" {
		return "", fmt.Errorf("no RID in submit response")
	}
	return rid, nil
}

// waitReady polls the search status until READY, giving up at the configured
// deadline or when the upstream reports the RID as unknown.
func (c *Client) waitReady(ctx context.Context, rid string) error {
	deadline := time.Now().Add(c.timeout)

	for {
		params := url.Values{}
		params.Set("CMD", "Get")
		params.Set("FORMAT_OBJECT", "SearchInfo")
		params.Set("RID", rid)

		resp, err := c.http.Get(ctx, c.baseURL, params, nil, c.limiter)
		if err != nil {
			return err
		}

		switch searchStatus(resp.Body) {
		case "READY":
			return nil
		case "UNKNOWN":
			return fmt.Errorf("search expired or unknown")
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("search not ready after %s", c.timeout)
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return err
		}
	}
}

func (c *Client) fetchReport(ctx context.Context, rid string) (*blastOutput, error) {
	params := url.Values{}
	params.Set("CMD", "Get")
	params.Set("FORMAT_TYPE", "XML")
	params.Set("RID", rid)

	resp, err := c.http.Get(ctx, c.baseURL, params, nil, c.limiter)
	if err != nil {
		return nil, err
	}

	var report blastOutput
	if err := xml.Unmarshal(resp.Body, &report); err != nil {
		return nil, fmt.Errorf("parse report XML: %w", err)
	}
	return &report, nil
}

// blastOutput mirrors the subset of the NCBI BLAST XML DTD the interpreter
// consumes.
type blastOutput struct {
	Iterations []xmlIteration `xml:"BlastOutput_iterations>Iteration"`
}

type xmlIteration struct {
	Hits []xmlHit `xml:"Iteration_hits>Hit"`
}

type xmlHit struct {
	Def  string   `xml:"Hit_def"`
	HSPs []xmlHSP `xml:"Hit_hsps>Hsp"`
}

type xmlHSP struct {
	EValue     float64 `xml:"Hsp_evalue"`
	Identity   int     `xml:"Hsp_identity"`
	AlignLen   int     `xml:"Hsp_align-len"`
	HitFrom    int64   `xml:"Hsp_hit-from"`
	HitTo      int64   `xml:"Hsp_hit-to"`
	QuerySeq   string  `xml:"Hsp_qseq"`
	SubjectSeq string  `xml:"Hsp_hseq"`
}

// interpretReport flattens every hit/HSP pair into an AlignmentHit and sorts
// ascending by e-value, keeping report order for ties.
func interpretReport(report *blastOutput, queryLength int) domain.AlignmentResult {
	var hits []domain.AlignmentHit

	for _, iteration := range report.Iterations {
		for _, hit := range iteration.Hits {
			chromosome := ExtractChromosome(hit.Def)
			for _, hsp := range hit.HSPs {
				identity := 0.0
				if hsp.AlignLen > 0 {
					identity = float64(hsp.Identity) / float64(hsp.AlignLen) * 100
				}
				hits = append(hits, domain.AlignmentHit{
					Chromosome: chromosome,
					Start:      hsp.HitFrom,
					End:        hsp.HitTo,
					Identity:   identity,
					EValue:     hsp.EValue,
					QuerySeq:   hsp.QuerySeq,
					SubjectSeq: hsp.SubjectSeq,
					Length:     hsp.AlignLen,
				})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].EValue < hits[j].EValue
	})

	return domain.AlignmentResult{Hits: hits, QueryLength: queryLength}
}

// ExtractChromosome derives the chromosome label from a hit's free-text
// title: explicit "chromosome N" wording first, then an abbreviated "chrN",
// then a human NC_ accession number. Anything else is "unknown". The
// textual paths keep the title's case for X and Y.
func ExtractChromosome(title string) string {
	if m := chromosomeWordExpr.FindStringSubmatch(title); m != nil {
		return "chr" + m[1]
	}

	if m := chromosomeAbbrExpr.FindStringSubmatch(title); m != nil {
		return "chr" + m[1]
	}

	if m := accessionExpr.FindStringSubmatch(title); m != nil {
		switch num := m[1]; {
		case num == "23":
			return "chrX"
		case num == "24":
			return "chrY"
		case num <= "22":
			return "chr" + strings.TrimPrefix(num, "0")
		}
	}

	return "unknown"
}

// extractRID pulls the request id out of the submit response page, first from
// the hidden form input, then from the QBlastInfo comment block.
func extractRID(page []byte) string {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page))); err == nil {
		if rid, ok := doc.Find(`input[name="RID"]`).First().Attr("value"); ok && rid != "" {
			return rid
		}
	}

	return qblastInfoField(page, "RID")
}

func searchStatus(page []byte) string {
	return qblastInfoField(page, "Status")
}

func qblastInfoField(page []byte, key string) string {
	block := qblastInfoExpr.FindSubmatch(page)
	if block == nil {
		return ""
	}

	for _, line := range strings.Split(string(block[1]), "\n") {
		name, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if found && strings.TrimSpace(name) == key {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
