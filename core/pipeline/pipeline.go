// Package pipeline wires the stages together:
// docx → metadata + normalize → shell → rasterize → decorate → storage.
// Stages for one document run strictly in order; nothing is persisted
// unless the whole PDF was produced.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gaurav-prasanna/policypipe/core"
	"github.com/gaurav-prasanna/policypipe/core/diff"
	"github.com/gaurav-prasanna/policypipe/core/extract"
	"github.com/gaurav-prasanna/policypipe/core/normalize"
	"github.com/gaurav-prasanna/policypipe/core/output"
	"github.com/gaurav-prasanna/policypipe/core/render"
	"github.com/gaurav-prasanna/policypipe/core/storage"
	"github.com/gaurav-prasanna/policypipe/internal/logger"
	"github.com/gaurav-prasanna/policypipe/internal/metrics"
)

// PolicyRepository is the slice of the relational store the pipeline uses.
type PolicyRepository interface {
	CreatePolicy(ctx context.Context, p *core.PolicyDocument) error
	GetPolicy(ctx context.Context, id string) (*core.PolicyDocument, error)
	InsertVersion(ctx context.Context, v *core.PolicyVersion) error
	SetCurrentVersion(ctx context.Context, policyID, versionID string) error
	GetVersion(ctx context.Context, id string) (*core.PolicyVersion, error)
}

// Config holds the pipeline's collaborators. Blobs and Store may be nil
// for conversion-only use.
type Config struct {
	Converter  core.Converter
	Normalizer *normalize.HTMLNormalizer
	Shell      *render.Shell
	Composer   render.Composer
	Chrome     core.Chrome // department, logo, classification
	Blobs      storage.BlobStore
	Store      PolicyRepository
	SignedTTL  time.Duration
	Diff       diff.Options
	Log        *logger.Logger
	Metrics    *metrics.Metrics
}

// Pipeline runs conversions, publications and comparisons.
type Pipeline struct {
	converter  core.Converter
	normalizer *normalize.HTMLNormalizer
	pdf        *render.PDFRenderer
	preview    *render.HTMLRenderer
	blobs      storage.BlobStore
	store      PolicyRepository
	signedTTL  time.Duration
	diffOpts   diff.Options
	log        *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Converter == nil {
		cfg.Converter = extract.NewDocxConverter()
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = normalize.New()
	}
	if cfg.Shell == nil {
		cfg.Shell = render.NewShell(core.DefaultLayout())
	}
	if cfg.Log == nil {
		cfg.Log = logger.Nop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.SignedTTL <= 0 {
		cfg.SignedTTL = 15 * time.Minute
	}
	return &Pipeline{
		converter:  cfg.Converter,
		normalizer: cfg.Normalizer,
		pdf:        render.NewPDFRenderer(cfg.Shell, cfg.Composer, cfg.Chrome),
		preview:    render.NewHTMLRenderer(cfg.Shell, cfg.Chrome),
		blobs:      cfg.Blobs,
		store:      cfg.Store,
		signedTTL:  cfg.SignedTTL,
		diffOpts:   cfg.Diff,
		log:        cfg.Log,
		metrics:    cfg.Metrics,
		now:        time.Now,
	}
}

// Prepared is an upload taken as far as the normalized body.
type Prepared struct {
	Source   *core.SourceDocument
	Document core.Document
	Report   normalize.Report
}

// Result is a finished conversion.
type Result struct {
	Prepared
	PDF       []byte
	PageCount int
	FileName  string // output name derived from the metadata
}

// Prepare converts the upload, extracts its metadata and normalizes the
// body. Files without the .docx extension are rejected before any work.
func (p *Pipeline) Prepare(ctx context.Context, fileName string, data []byte) (*Prepared, error) {
	if !extract.IsDocx(fileName) {
		return nil, fmt.Errorf("%q: %w", fileName, core.ErrUnsupportedFile)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	src, err := p.converter.Convert(fileName, data)
	if err != nil {
		return nil, core.Stage(core.StageConvert, err)
	}
	p.metrics.ObserveStage(core.StageConvert, start)

	start = time.Now()
	meta := extract.ExtractMetadata(src.RawText)
	p.metrics.ObserveStage(core.StageExtract, start)

	start = time.Now()
	body, report, err := p.normalizer.NormalizeReport(src.HTML)
	if err != nil {
		return nil, core.Stage(core.StageNormalize, err)
	}
	p.metrics.ObserveStage(core.StageNormalize, start)

	return &Prepared{
		Source:   src,
		Document: core.Document{SourceName: fileName, Meta: meta, BodyHTML: body},
		Report:   report,
	}, nil
}

// Convert runs the full conversion to PDF.
func (p *Pipeline) Convert(ctx context.Context, fileName string, data []byte) (*Result, error) {
	start := time.Now()
	res, err := p.convert(ctx, fileName, data)
	p.metrics.RecordConversion(err, pageCount(res))
	if err != nil {
		p.log.LogStageFailure(stageOf(err), fileName, "", err)
		return nil, err
	}
	p.log.LogConversion(fileName, res.PageCount, len(res.PDF), time.Since(start))
	return res, nil
}

func (p *Pipeline) convert(ctx context.Context, fileName string, data []byte) (*Result, error) {
	if p.pdf == nil {
		return nil, errors.New("pipeline has no composer")
	}
	prep, err := p.Prepare(ctx, fileName, data)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	composed, err := p.pdf.RenderResult(ctx, prep.Document)
	if err != nil {
		return nil, err
	}
	p.metrics.ObserveStage(core.StageRender, start)
	if len(composed.PDF) == 0 {
		return nil, core.Stage(core.StageDecorate, core.ErrEmptyDocument)
	}

	return &Result{
		Prepared:  *prep,
		PDF:       composed.PDF,
		PageCount: composed.PageCount,
		FileName:  output.PDFFilename(prep.Document.Meta, fileName),
	}, nil
}

// Preview returns the preview-mode document for an upload.
func (p *Pipeline) Preview(ctx context.Context, fileName string, data []byte) (string, *Prepared, error) {
	prep, err := p.Prepare(ctx, fileName, data)
	if err != nil {
		p.log.LogStageFailure(stageOf(err), fileName, "", err)
		return "", nil, err
	}
	out, err := p.preview.Render(ctx, prep.Document)
	if err != nil {
		err = core.Stage(core.StageRender, err)
		p.log.LogStageFailure(core.StageRender, fileName, "", err)
		return "", nil, err
	}
	return string(out), prep, nil
}

func pageCount(r *Result) int {
	if r == nil {
		return 0
	}
	return r.PageCount
}

func stageOf(err error) string {
	var se *core.StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	if errors.Is(err, core.ErrUnsupportedFile) {
		return "input"
	}
	return core.StageConvert
}

func defaultNewID() string { return uuid.Must(uuid.NewV7()).String() }

// newID is swapped in tests.
var newID = defaultNewID

// PublishRequest is an upload destined to become a policy version.
type PublishRequest struct {
	PolicyID      string // empty creates a new policy
	FileName      string
	Data          []byte
	ChangeSummary string
}

// Publication is the outcome of Publish.
type Publication struct {
	Policy    *core.PolicyDocument `json:"policy"`
	Version   *core.PolicyVersion  `json:"version"`
	SignedURL string               `json:"signed_url"`
	PageCount int                  `json:"page_count"`
}

// Publish converts the upload, uploads the PDF and records it as the
// policy's current version. Nothing is stored unless conversion produced
// a non-empty PDF. A failure after the upload leaves the blob in place.
func (p *Pipeline) Publish(ctx context.Context, req PublishRequest) (*Publication, error) {
	if p.blobs == nil || p.store == nil {
		return nil, errors.New("pipeline has no storage")
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: file", core.ErrMissingField)
	}

	var policy *core.PolicyDocument
	if req.PolicyID != "" {
		existing, err := p.store.GetPolicy(ctx, req.PolicyID)
		if err != nil {
			return nil, err
		}
		policy = existing
	}

	res, err := p.Convert(ctx, req.FileName, req.Data)
	if err != nil {
		return nil, err
	}

	isNew := policy == nil
	if isNew {
		meta := res.Document.Meta
		policy = &core.PolicyDocument{
			ID:      newID(),
			Title:   policyTitle(meta, req.FileName),
			Section: meta.Section,
			Number:  meta.Number,
			Subject: meta.Subject,
		}
	}

	now := p.now()
	blobPath := storage.BlobPath(policy.ID, res.FileName, now)
	start := time.Now()
	if err := p.blobs.Upload(ctx, blobPath, res.PDF, "application/pdf"); err != nil {
		err = core.Stage(core.StageUpload, err)
		p.log.LogStageFailure(core.StageUpload, req.FileName, policy.ID, err)
		return nil, err
	}
	p.metrics.ObserveStage(core.StageUpload, start)

	start = time.Now()
	version := &core.PolicyVersion{
		PolicyID:      policy.ID,
		RenditionRef:  blobPath,
		FileName:      res.FileName,
		FileSizeBytes: int64(len(res.PDF)),
		ChangeSummary: req.ChangeSummary,
		PublishedAt:   &now,
		CreatedAt:     now,
	}
	if err := p.persist(ctx, policy, version, isNew); err != nil {
		err = core.Stage(core.StagePersist, err)
		p.log.LogStageFailure(core.StagePersist, req.FileName, policy.ID, err)
		return nil, err
	}
	p.metrics.ObserveStage(core.StagePersist, start)
	p.metrics.PublishedVersions.Inc()

	url, err := p.blobs.SignedURL(ctx, blobPath, p.signedTTL)
	if err != nil {
		return nil, fmt.Errorf("signing rendition url: %w", err)
	}
	return &Publication{Policy: policy, Version: version, SignedURL: url, PageCount: res.PageCount}, nil
}

func (p *Pipeline) persist(ctx context.Context, policy *core.PolicyDocument, version *core.PolicyVersion, isNew bool) error {
	if isNew {
		if err := p.store.CreatePolicy(ctx, policy); err != nil {
			return err
		}
	}
	if err := p.store.InsertVersion(ctx, version); err != nil {
		return err
	}
	if err := p.store.SetCurrentVersion(ctx, policy.ID, version.ID); err != nil {
		return err
	}
	policy.CurrentVersionID = version.ID
	return nil
}

func policyTitle(meta core.Metadata, fileName string) string {
	switch {
	case meta.Number != "" && meta.Subject != "":
		return meta.Number + " " + meta.Subject
	case meta.Subject != "":
		return meta.Subject
	case meta.Number != "":
		return meta.Number
	}
	return output.Stem(fileName)
}

// VersionURL signs a URL for a stored rendition.
func (p *Pipeline) VersionURL(ctx context.Context, versionID string) (string, error) {
	if p.blobs == nil || p.store == nil {
		return "", errors.New("pipeline has no storage")
	}
	v, err := p.store.GetVersion(ctx, versionID)
	if err != nil {
		return "", err
	}
	return p.blobs.SignedURL(ctx, v.RenditionRef, p.signedTTL)
}

// CompareVersions diffs two stored renditions page by page. Both are
// downloaded concurrently.
func (p *Pipeline) CompareVersions(ctx context.Context, oldID, newID string, opts diff.Options) ([]diff.PageDiff, error) {
	if p.blobs == nil || p.store == nil {
		return nil, errors.New("pipeline has no storage")
	}
	if opts == (diff.Options{}) {
		opts = p.diffOpts
	}

	var oldPDF, newPDF []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := p.download(gctx, oldID)
		oldPDF = data
		return err
	})
	g.Go(func() error {
		data, err := p.download(gctx, newID)
		newPDF = data
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, core.Stage(core.StageDiff, err)
	}
	return p.ComparePDFs(ctx, oldPDF, newPDF, opts)
}

// ComparePDFs diffs two composed PDFs.
func (p *Pipeline) ComparePDFs(ctx context.Context, oldPDF, newPDF []byte, opts diff.Options) ([]diff.PageDiff, error) {
	start := time.Now()
	diffs, err := diff.Compare(ctx, &diff.PDFSource{Data: oldPDF}, &diff.PDFSource{Data: newPDF}, opts)
	if err != nil {
		p.log.LogStageFailure(core.StageDiff, "", "", err)
		return nil, err
	}
	p.metrics.ObserveStage(core.StageDiff, start)
	total := 0
	for _, d := range diffs {
		total += d.Highlighted()
	}
	p.metrics.DiffBlocksHighlighted.Add(float64(total))
	return diffs, nil
}

func (p *Pipeline) download(ctx context.Context, versionID string) ([]byte, error) {
	v, err := p.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return p.blobs.Download(ctx, v.RenditionRef)
}
