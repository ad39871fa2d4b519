package bib

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/racepix/bibscan/internal/detection"
	"github.com/racepix/bibscan/internal/imaging"
	"github.com/racepix/bibscan/internal/ocr"
)

// Acceptance thresholds for the two recognition stages. A cloud token above
// cloudAcceptThreshold short-circuits the local pipeline entirely; the
// local stage needs only localAcceptThreshold because its base confidence
// already reflects per-glyph recognition quality.
const (
	cloudAcceptThreshold = 0.45
	localAcceptThreshold = 0.4
)

// ErrInvalidLabel is returned by ManualLabel for tokens that are neither
// Unknown nor a valid bib number.
var ErrInvalidLabel = errors.New("invalid manual label")

// Options configures a Detector.
type Options struct {
	// Cloud is the injected cloud text-detection capability. Nil is
	// allowed and skips the cloud stage entirely.
	Cloud ocr.CloudTextDetector

	// Local is the injected digit-recognition capability. Required.
	Local ocr.DigitRecognizer

	// Cache receives one result per processed photo. Required; callers
	// typically share one cache per processing session.
	Cache *ResultCache

	// Tenant scopes every cache write, preventing cross-tenant reads in
	// shared processes. Empty is a valid single-tenant key.
	Tenant string

	// Debug enables verbose stage diagnostics on the standard logger. It
	// never changes behavior.
	Debug bool
}

// Detector orchestrates the two-stage bib detection pipeline.
//
// The flow per photo is a small state machine:
//
//	Start -> CloudAttempt -> {Accepted | LocalPipeline} -> {Accepted | Unknown}
//
// The cloud stage runs first on the whole image; a confident hit returns
// immediately and the local stages never execute. A cloud error or a
// below-threshold result falls through to the local pipeline (preprocess,
// region proposal, enhancement, multi-scale recognition). When neither
// stage produces a convincing token the photo is classified Unknown, which
// is a valid terminal result rather than an error.
//
// Detection is a pure function of the image bytes and the injected
// capabilities; the only shared state is the result cache, written once
// per call. A Detector is safe for concurrent use across distinct photos.
type Detector struct {
	cloud  ocr.CloudTextDetector
	local  ocr.DigitRecognizer
	cache  *ResultCache
	tenant string
	debug  bool
}

// NewDetector constructs a Detector from its injected capabilities.
func NewDetector(opts Options) (*Detector, error) {
	if opts.Local == nil {
		return nil, errors.New("a digit recognizer is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("a result cache is required")
	}
	return &Detector{
		cloud:  opts.Cloud,
		local:  opts.Local,
		cache:  opts.Cache,
		tenant: opts.Tenant,
		debug:  opts.Debug,
	}, nil
}

// Process runs the full detection pipeline on one photo and caches the
// result under photoID.
//
// The returned error is non-nil only for undecodable input (wrapping
// imaging.ErrInvalidImage); recognition failures inside either stage are
// recoverable and at worst yield an Unknown result. Repeated calls with
// identical bytes and identical capability responses produce identical
// results.
func (d *Detector) Process(ctx context.Context, photoID string, data []byte) (Result, error) {
	raw, err := imaging.Decode(data)
	if err != nil {
		return Result{}, fmt.Errorf("photo %s: %w", photoID, err)
	}

	// CloudAttempt: whole-image text detection, short-circuit on success.
	if d.cloud != nil {
		candidates, err := recognizeCloud(ctx, d.cloud, raw)
		if err != nil {
			log.Printf("photo %s: %v; falling back to local pipeline", photoID, err)
		} else if best := bestCandidate(candidates); best != nil && best.Score > cloudAcceptThreshold {
			result := d.accept(*best)
			d.cache.Put(d.tenant, photoID, result)
			return result, nil
		} else if d.debug {
			log.Printf("photo %s: cloud stage below threshold (%d candidates)", photoID, len(candidates))
		}
	}

	// LocalPipeline: preprocess, propose, enhance, recognize.
	preprocessed := imaging.Preprocess(raw.Gray)
	regions := detection.ProposeRegions(preprocessed)
	if d.debug {
		log.Printf("photo %s: %d candidate regions", photoID, len(regions))
	}

	candidates := recognizeLocal(d.local, raw, preprocessed, regions)
	if best := bestCandidate(candidates); best != nil && best.Score > localAcceptThreshold {
		result := d.accept(*best)
		d.cache.Put(d.tenant, photoID, result)
		return result, nil
	}

	result := unknownResult()
	d.cache.Put(d.tenant, photoID, result)
	return result, nil
}

// accept converts the winning candidate into the terminal result, capping
// the reported confidence.
func (d *Detector) accept(c Candidate) Result {
	bounds := c.Bounds
	return Result{
		BibNumber:  c.Token,
		Confidence: CapConfidence(c.Score),
		Bounds:     &bounds,
		Method:     c.Source,
	}
}

// ManualLabel writes a human-supplied label for a photo, bypassing the
// pipeline entirely. It is available from any state, including after a
// terminal result, and always wins.
//
// A valid bib token is stored with confidence 1.0 and no bounding box; the
// Unknown label is stored with confidence 0.0. Any other token returns
// ErrInvalidLabel.
func (d *Detector) ManualLabel(photoID, token string) (Result, error) {
	var result Result
	switch {
	case token == Unknown:
		result = Result{BibNumber: Unknown, Confidence: 0.0, Method: MethodManual}
	case IsValidBibNumber(token):
		result = Result{BibNumber: token, Confidence: 1.0, Method: MethodManual}
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidLabel, token)
	}
	d.cache.Put(d.tenant, photoID, result)
	return result, nil
}

// Result returns the cached result for a photo, if one exists.
func (d *Detector) Result(photoID string) (Result, bool) {
	return d.cache.Get(d.tenant, photoID)
}
