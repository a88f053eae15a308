// Package storage persists analysis jobs and called variants in Postgres.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/domain"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/httpx"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/ports"
)

const (
	jobTable     = `"AnalysisJob"`
	variantTable = `"Variant"`
)

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository implements the job store over database/sql. The pool is
// constructed and pinged up front; a bad DSN is a configuration error, not a
// first-use surprise.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.JobStore = (*PostgresRepository)(nil)

// Open builds the connection pool and verifies it is reachable.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*PostgresRepository, error) {
	if dsn == "" {
		return nil, &httpx.ConfigError{Setting: "DATABASE_DSN", Reason: "is required for the job store"}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return NewPostgresRepository(db), nil
}

// NewPostgresRepository wires an existing sql.DB.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// GetJob fetches a job by id, returning (nil, nil) when no row exists.
func (r *PostgresRepository) GetJob(ctx context.Context, id string) (*domain.AnalysisJob, error) {
	query, args, err := buildGetJob(id)
	if err != nil {
		return nil, fmt.Errorf("build get job: %w", err)
	}

	var job domain.AnalysisJob
	var status string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&job.ID,
		&job.SequenceName,
		&job.Sequence,
		&status,
		&job.ErrorMessage,
		&job.BlastEvalue,
		&job.BlastIdentity,
		&job.Chromosome,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	job.Status = domain.JobStatus(status)
	return &job, nil
}

// UpdateStatus moves a job to the given status, stamping updatedAt and, on
// COMPLETED, completedAt. Last writer wins.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMsg *string) error {
	query, args, err := buildUpdateStatus(id, status, errMsg, r.now())
	if err != nil {
		return fmt.Errorf("build update status: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update status %s to %s: %w", id, status, err)
	}
	return nil
}

// UpdateAlignmentSummary persists the best hit's headline numbers on the job.
func (r *PostgresRepository) UpdateAlignmentSummary(ctx context.Context, id string, evalue, identity float64, chromosome string) error {
	query, args, err := buildUpdateAlignmentSummary(id, evalue, identity, chromosome, r.now())
	if err != nil {
		return fmt.Errorf("build update alignment summary: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update alignment summary %s: %w", id, err)
	}
	return nil
}

// SaveVariants appends one row per annotated variant. Reprocessing a job
// appends again; deduplication is left to the reader.
func (r *PostgresRepository) SaveVariants(ctx context.Context, id string, variants []domain.AnnotatedVariant) error {
	if len(variants) == 0 {
		return nil
	}

	query, args, err := buildInsertVariants(id, variants, r.now())
	if err != nil {
		return fmt.Errorf("build insert variants: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save %d variants for %s: %w", len(variants), id, err)
	}
	return nil
}

func buildGetJob(id string) (string, []any, error) {
	return builder.
		Select("id", `"sequenceName"`, "sequence", "status", `"errorMessage"`,
			`"blastEvalue"`, `"blastIdentity"`, "chromosome",
			`"createdAt"`, `"updatedAt"`, `"completedAt"`).
		From(jobTable).
		Where(sq.Eq{"id": id}).
		ToSql()
}

func buildUpdateStatus(id string, status domain.JobStatus, errMsg *string, now time.Time) (string, []any, error) {
	update := builder.Update(jobTable).
		Set("status", string(status)).
		Set(`"updatedAt"`, now).
		Set(`"errorMessage"`, errMsg).
		Where(sq.Eq{"id": id})
	if status == domain.StatusCompleted {
		update = update.Set(`"completedAt"`, now)
	}
	return update.ToSql()
}

func buildUpdateAlignmentSummary(id string, evalue, identity float64, chromosome string, now time.Time) (string, []any, error) {
	return builder.Update(jobTable).
		Set(`"blastEvalue"`, evalue).
		Set(`"blastIdentity"`, identity).
		Set("chromosome", chromosome).
		Set(`"updatedAt"`, now).
		Where(sq.Eq{"id": id}).
		ToSql()
}

func buildInsertVariants(id string, variants []domain.AnnotatedVariant, now time.Time) (string, []any, error) {
	insert := builder.Insert(variantTable).Columns(
		`"jobId"`, "chromosome", "position", `"referenceAllele"`, `"alternateAllele"`,
		`"variantType"`, `"rsId"`, `"hgvsNotation"`, `"geneSymbol"`, "consequence",
		`"clinicalSignificance"`, `"populationFrequency"`, `"revelScore"`,
		`"caddScore"`, `"siftPrediction"`, `"polyphenPrediction"`, `"createdAt"`,
	)
	for _, v := range variants {
		insert = insert.Values(
			id, v.Chromosome, v.Position, v.ReferenceAllele, v.AlternateAllele,
			string(v.Type), v.RSID, v.HGVSNotation, v.GeneSymbol, v.Consequence,
			v.ClinicalSignificance, v.PopulationFrequency, v.RevelScore,
			v.CaddScore, v.SiftPrediction, v.PolyphenPrediction, now,
		)
	}
	return insert.ToSql()
}
