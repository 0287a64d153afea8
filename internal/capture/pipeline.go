// Package capture drives one badge capture at a time from photo to a
// durably recorded, delivered-or-queued lead.
package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/metrics"
	"github.com/sells-group/leadscan/internal/model"
	"github.com/sells-group/leadscan/internal/ocr"
	"github.com/sells-group/leadscan/internal/sink"
	"github.com/sells-group/leadscan/internal/store"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// pipeline's current state.
	ErrInvalidState = eris.New("capture: invalid state")
	// ErrCancelled is returned by Extract when the capture was cancelled
	// while the image was being read.
	ErrCancelled = eris.New("capture: cancelled")
	// ErrIdentityRequired is returned by Submit when no staff identity is set.
	ErrIdentityRequired = eris.New("capture: staff identity is not set")
)

// maxStampAttempts bounds how often Submit moves a lead's timestamp forward
// when another pipeline on the same store already used it.
const maxStampAttempts = 100

// State is a step of the capture flow.
type State int

const (
	Idle State = iota
	Capturing
	Extracting
	Reviewing
	Submitted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Extracting:
		return "extracting"
	case Reviewing:
		return "reviewing"
	case Submitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Store is the persistence the pipeline writes through.
type Store interface {
	LoadIdentity(ctx context.Context) (string, error)
	AppendHistory(ctx context.Context, lead model.Lead) error
	MarkDelivered(ctx context.Context, timestamp string) error
}

// Enqueuer takes ownership of leads whose delivery failed.
type Enqueuer interface {
	Enqueue(ctx context.Context, lead model.Lead) error
}

// Extraction is what the review step starts from.
type Extraction struct {
	Fields model.Fields
	// Lines are the usable OCR lines, for picking fields by hand.
	Lines []string
	// Fallback is set when the image could not be read or recognized; Fields
	// are blank and Warning says why.
	Fallback bool
	Warning  string
}

// SubmitResult reports a submitted lead and whether it went out.
type SubmitResult struct {
	Lead      model.Lead
	Delivered bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source used for lead timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithCrop sets the badge region as fractions of the frame.
func WithCrop(width, height float64) Option {
	return func(p *Pipeline) {
		if width > 0 && height > 0 {
			p.cropW, p.cropH = width, height
		}
	}
}

// WithMetrics records capture results on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// Pipeline is the capture state machine. It is safe for concurrent use but
// holds a single in-flight capture.
type Pipeline struct {
	store      Store
	sink       sink.Submitter
	queue      Enqueuer
	recognizer ocr.Recognizer
	metrics    *metrics.Metrics
	now        func() time.Time
	cropW      float64
	cropH      float64

	mu      sync.Mutex
	state   State
	session string
	src     ImageSource
	abort   context.CancelFunc
	fields  model.Fields
	last    time.Time
}

// New creates a Pipeline. rec may be nil, in which case every extraction
// falls back to blank fields.
func New(st Store, s sink.Submitter, q Enqueuer, rec ocr.Recognizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      st,
		sink:       s,
		queue:      q,
		recognizer: rec,
		now:        time.Now,
		cropW:      DefaultCropWidth,
		cropH:      DefaultCropHeight,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current step.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Fields returns the fields under review.
func (p *Pipeline) Fields() model.Fields {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fields
}

// Begin takes hold of src and starts a capture.
func (p *Pipeline) Begin(src ImageSource) error {
	if src == nil {
		return eris.New("capture: nil image source")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Idle {
		return eris.Wrapf(ErrInvalidState, "begin from %s", p.state)
	}
	p.session = uuid.NewString()
	p.src = src
	p.fields = model.Fields{}
	p.state = Capturing
	zap.L().Debug("capture started",
		zap.String("component", "capture"),
		zap.String("session", p.session),
	)
	return nil
}

// Extract reads the held image, releases the source and pre-fills the
// review fields from OCR. Failures to read or recognize the image fall back
// to blank fields; the pipeline always ends up Reviewing unless the capture
// was cancelled meanwhile.
func (p *Pipeline) Extract(ctx context.Context) (Extraction, error) {
	p.mu.Lock()
	if p.state != Capturing {
		st := p.state
		p.mu.Unlock()
		return Extraction{}, eris.Wrapf(ErrInvalidState, "extract from %s", st)
	}
	ectx, cancel := context.WithCancel(ctx)
	p.abort = cancel
	p.state = Extracting
	session, src := p.session, p.src
	p.mu.Unlock()
	defer cancel()

	log := zap.L().With(zap.String("component", "capture"), zap.String("session", session))

	text, err := p.recognize(ectx, src)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Extracting || p.session != session {
		return Extraction{}, ErrCancelled
	}
	p.src = nil
	p.abort = nil
	p.state = Reviewing

	if err != nil {
		log.Warn("could not read badge text, falling back to manual entry", zap.Error(err))
		p.metrics.ObserveCapture("fallback")
		return Extraction{Fallback: true, Warning: "Could not read badge text. Please type manually."}, nil
	}

	name, company := ParseBadge(text)
	p.fields = model.Fields{Name: name, Company: company}
	p.metrics.ObserveCapture("extracted")
	log.Debug("badge parsed", zap.Bool("name_found", name != ""), zap.Bool("company_found", company != ""))

	return Extraction{Fields: p.fields, Lines: CandidateLines(text)}, nil
}

func (p *Pipeline) recognize(ctx context.Context, src ImageSource) (string, error) {
	img, err := src.Capture(ctx)
	if cerr := src.Close(); cerr != nil {
		zap.L().Debug("release image source", zap.String("component", "capture"), zap.Error(cerr))
	}
	if err != nil {
		return "", err
	}
	if p.recognizer == nil {
		return "", eris.New("capture: no OCR engine configured")
	}
	res, err := p.recognizer.Recognize(ctx, Preprocess(img, p.cropW, p.cropH))
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Review enters the review step directly with fields, skipping the photo.
func (p *Pipeline) Review(fields model.Fields) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Idle {
		return eris.Wrapf(ErrInvalidState, "review from %s", p.state)
	}
	p.session = uuid.NewString()
	p.fields = fields
	p.state = Reviewing
	return nil
}

// Edit replaces the fields under review.
func (p *Pipeline) Edit(fields model.Fields) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Reviewing {
		return eris.Wrapf(ErrInvalidState, "edit from %s", p.state)
	}
	p.fields = fields
	return nil
}

// Submit turns the reviewed fields into a lead. The lead is written to
// history before any delivery attempt; on success it is marked delivered,
// otherwise it is queued. Validation errors leave the pipeline Reviewing
// with nothing written.
func (p *Pipeline) Submit(ctx context.Context) (SubmitResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Reviewing {
		return SubmitResult{}, eris.Wrapf(ErrInvalidState, "submit from %s", p.state)
	}
	if err := p.fields.Validate(); err != nil {
		return SubmitResult{}, err
	}

	staff, err := p.store.LoadIdentity(ctx)
	if err != nil {
		return SubmitResult{}, eris.Wrap(err, "capture: load identity")
	}
	if strings.TrimSpace(staff) == "" {
		return SubmitResult{}, ErrIdentityRequired
	}

	lead, err := model.NewLead(p.fields, staff, p.nextStamp())
	if err != nil {
		return SubmitResult{}, err
	}

	for attempt := 1; ; attempt++ {
		err := p.store.AppendHistory(ctx, lead)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateTimestamp) || attempt >= maxStampAttempts {
			return SubmitResult{}, eris.Wrap(err, "capture: record lead")
		}
		lead.Timestamp = model.FormatTimestamp(p.nextStamp())
	}

	log := zap.L().With(
		zap.String("component", "capture"),
		zap.String("session", p.session),
		zap.String("timestamp", lead.Timestamp),
	)

	p.state = Submitted
	defer p.reset()

	// Once the lead is in history, marking or queueing it ignores caller
	// cancellation.
	persistCtx := context.WithoutCancel(ctx)

	res := SubmitResult{Lead: lead}
	if p.sink.Submit(ctx, lead) == sink.Delivered {
		res.Delivered = true
		if err := p.store.MarkDelivered(persistCtx, lead.Timestamp); err != nil {
			return res, eris.Wrap(err, "capture: mark delivered")
		}
		log.Info("lead submitted")
	} else {
		if err := p.queue.Enqueue(persistCtx, lead); err != nil {
			return res, eris.Wrap(err, "capture: enqueue")
		}
		log.Info("lead saved offline, will send when back online")
	}
	p.metrics.ObserveCapture("submitted")
	return res, nil
}

// Cancel abandons the current capture and releases the image source. It
// writes nothing and is a no-op when Idle.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case Capturing, Extracting, Reviewing:
	default:
		return
	}
	if p.abort != nil {
		p.abort()
	}
	// While Extracting, Extract owns the source and releases it itself.
	if p.state == Capturing && p.src != nil {
		if err := p.src.Close(); err != nil {
			zap.L().Debug("release image source", zap.String("component", "capture"), zap.Error(err))
		}
	}
	p.metrics.ObserveCapture("cancelled")
	p.reset()
}

func (p *Pipeline) reset() {
	p.state = Idle
	p.session = ""
	p.src = nil
	p.abort = nil
	p.fields = model.Fields{}
}

// nextStamp returns a millisecond timestamp strictly after the previous one.
func (p *Pipeline) nextStamp() time.Time {
	at := p.now().UTC().Truncate(time.Millisecond)
	if !at.After(p.last) {
		at = p.last.Add(time.Millisecond)
	}
	p.last = at
	return at
}
