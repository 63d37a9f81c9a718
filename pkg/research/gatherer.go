package research

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

const localSourceName = "local"

// GathererOptions sets per-adapter caps and the sub-question fan-out.
type GathererOptions struct {
	WebMaxResults      int
	AcademicMaxResults int
	Concurrency        int
	Logger             *slog.Logger
}

// Gatherer fans one sub-question out to the web and academic adapters and
// merges their output with the preloaded documents.
type Gatherer struct {
	web         Adapter
	academic    Adapter
	webMax      int
	academicMax int
	concurrency int
	logger      *slog.Logger
}

// NewGatherer accepts nil adapters; a missing adapter contributes nothing.
func NewGatherer(web, academic Adapter, opts GathererOptions) *Gatherer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Gatherer{
		web:         web,
		academic:    academic,
		webMax:      opts.WebMaxResults,
		academicMax: opts.AcademicMaxResults,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
}

// Gather returns web results, then academic results, then preloaded records.
// The order does not depend on which adapter finishes first.
func (g *Gatherer) Gather(ctx context.Context, subquestion string, preloaded []EvidenceRecord) []EvidenceRecord {
	var webRecs, academicRecs []EvidenceRecord

	var eg errgroup.Group
	eg.Go(func() error {
		webRecs = g.fetch(ctx, g.web, subquestion, g.webMax)
		return nil
	})
	eg.Go(func() error {
		academicRecs = g.fetch(ctx, g.academic, subquestion, g.academicMax)
		return nil
	})
	_ = eg.Wait()

	out := make([]EvidenceRecord, 0, len(webRecs)+len(academicRecs)+len(preloaded))
	out = append(out, webRecs...)
	out = append(out, academicRecs...)
	out = append(out, normalizeRecords(preloaded, localSourceName)...)

	g.logger.Info("Gathered evidence",
		"subquestion", subquestion,
		"web", len(webRecs),
		"academic", len(academicRecs),
		"local", len(preloaded),
	)
	return out
}

// GatherAll gathers every sub-question with bounded concurrency. Slot i of the
// result belongs to subquestions[i].
func (g *Gatherer) GatherAll(ctx context.Context, subquestions []string, preloaded []EvidenceRecord) [][]EvidenceRecord {
	results := make([][]EvidenceRecord, len(subquestions))

	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i, subq := range subquestions {
		eg.Go(func() error {
			results[i] = g.Gather(ctx, subq, preloaded)
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

func (g *Gatherer) fetch(ctx context.Context, a Adapter, query string, max int) []EvidenceRecord {
	if a == nil || max <= 0 {
		return nil
	}
	return normalizeRecords(a.Fetch(ctx, query, max), a.Name())
}

// normalizeRecords drops empty content and fills a missing SourceID with the
// provider name.
func normalizeRecords(records []EvidenceRecord, fallback string) []EvidenceRecord {
	out := make([]EvidenceRecord, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		if strings.TrimSpace(r.SourceID) == "" {
			r.SourceID = fallback
		}
		out = append(out, r)
	}
	return out
}
