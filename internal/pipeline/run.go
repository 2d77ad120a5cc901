// Package pipeline turns a raw table into cluster-labeled top-scoring rows
// and a comparison summary. Stages run strictly in order:
// Encode, SelectRows, Prepare, kmeans.Cluster, kmeans.Relabel, report.Build.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/riskcluster-cli/internal/dataset"
	"github.com/KaramelBytes/riskcluster-cli/internal/kmeans"
	"github.com/KaramelBytes/riskcluster-cli/internal/report"
)

// Request is one clustering job.
type Request struct {
	Roles
	Clusters  int
	Selection Selection
	Scale     bool
}

// Config carries the run settings that used to be process-wide state.
type Config struct {
	KMeans            kmeans.Options
	TopLabel          string
	PopulationLabel   string
	IncludePopulation bool
	Logger            logrus.FieldLogger
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		KMeans:            kmeans.DefaultOptions(),
		TopLabel:          report.DefaultTopLabel,
		PopulationLabel:   report.DefaultPopulationLabel,
		IncludePopulation: true,
	}
}

// Result is the output of Run.
type Result struct {
	RunID string
	// Labeled is the selected subset, ordered by score, with a cluster column.
	Labeled  *dataset.Dataset
	Summary  *report.Summary
	Encoding Encoding
	Groups   []kmeans.Group
	WithinSS float64
}

// Run executes the pipeline on ds. ds itself is never modified.
func Run(ctx context.Context, ds *dataset.Dataset, req Request, cfg Config) (*Result, error) {
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	runID := uuid.NewString()
	log = log.WithField("run_id", runID)

	rs, err := validate(ds, req)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"rows":       ds.NumRows(),
		"clustering": rs.clustering.Len(),
		"display":    rs.display.Len(),
		"k":          req.Clusters,
	}).Info("clustering run started")

	encoded, enc, err := encode(ds, rs)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"stage": "encode", "features": len(enc.Features), "treat": len(enc.Treat)}).Debug("encoded categorical variables")

	subset, sorted, err := SelectRows(encoded, rs.score, req.Selection)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"stage": "select", "rows": subset.NumRows()}).Debug("selected top-scoring rows")

	prep, err := Prepare(subset, enc.Features, req.Scale)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"stage": "prepare", "scaled": req.Scale}).Debug("prepared feature matrix")

	km, err := kmeans.Cluster(ctx, prep.Matrix, req.Clusters, cfg.KMeans)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	labels, groups := kmeans.Relabel(km.Raw)
	log.WithFields(logrus.Fields{
		"stage":      "cluster",
		"iterations": km.Iterations,
		"restart":    km.Restart,
		"within_ss":  km.WithinSS,
		"groups":     len(groups),
	}).Debug("k-means converged")

	labeled, err := prep.Data.With(dataset.NewCategorical(report.ClusterColumn, labels, nil))
	if err != nil {
		return nil, err
	}

	in := report.Input{
		Labeled:         labeled,
		Variables:       enc.Treat,
		Clustering:      enc.Features,
		TopLabel:        cfg.TopLabel,
		PopulationLabel: cfg.PopulationLabel,
	}
	if cfg.IncludePopulation {
		in.Population = sorted
	}
	sum, err := report.Build(in)
	if err != nil {
		return nil, fmt.Errorf("build summary: %w", err)
	}
	log.WithField("groups", len(sum.Groups)).Info("clustering run finished")

	return &Result{
		RunID:    runID,
		Labeled:  labeled,
		Summary:  sum,
		Encoding: enc,
		Groups:   groups,
		WithinSS: km.WithinSS,
	}, nil
}

// validate checks every request parameter against ds before any stage runs.
func validate(ds *dataset.Dataset, req Request) (roleSets, error) {
	if err := req.Selection.validate(); err != nil {
		return roleSets{}, err
	}
	rs, err := resolveRoles(ds, req.Roles)
	if err != nil {
		return rs, err
	}
	if rs.clustering.Len() == 0 {
		return rs, invalid("at least one clustering variable is required")
	}
	if _, err := scoreColumn(ds, rs.score); err != nil {
		return rs, err
	}
	if rs.all.Contains(report.ClusterColumn) {
		return rs, invalid("%q is reserved for cluster labels and cannot be a clustering or display variable", report.ClusterColumn)
	}
	n := req.Selection.Size(ds.NumRows())
	if req.Clusters < 1 || req.Clusters > n {
		return rs, invalid("requested %d clusters but %d of %d rows are selected; need 1 <= k <= selected rows", req.Clusters, n, ds.NumRows())
	}
	return rs, nil
}
