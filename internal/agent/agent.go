// Package agent provides the request orchestrator.
//
// A submitted request moves pending -> processing -> completed | failed.
// Moderation blocks are completed requests carrying a refusal, not
// failures; only infrastructure problems fail a request.
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bizchat-ai/bizchat/internal/action"
	"github.com/bizchat-ai/bizchat/internal/bizdata"
	apperr "github.com/bizchat-ai/bizchat/internal/errors"
	"github.com/bizchat-ai/bizchat/internal/extract"
	"github.com/bizchat-ai/bizchat/internal/fileproc"
	"github.com/bizchat-ai/bizchat/internal/llm"
	"github.com/bizchat-ai/bizchat/internal/metrics"
	"github.com/bizchat-ai/bizchat/internal/moderation"
	"github.com/bizchat-ai/bizchat/internal/prompt"
	"github.com/bizchat-ai/bizchat/internal/resolver"
	"github.com/bizchat-ai/bizchat/internal/store"
)

// defaultProcessTimeout bounds one full request pipeline.
const defaultProcessTimeout = 150 * time.Second

// storeWriteTimeout bounds the terminal store writes that record an
// outcome after the pipeline deadline may already have expired.
const storeWriteTimeout = 10 * time.Second

// Attachment is one user-supplied file, still base64-encoded.
type Attachment struct {
	Name    string
	MIME    string
	Content string
}

// Submission is an accepted request handed back to the caller immediately.
type Submission struct {
	RequestID string
	Status    store.Status
}

// Agent orchestrates the chat pipeline.
type Agent struct {
	store     *store.Store
	model     llm.Model
	builder   *prompt.Builder
	moderator *moderation.Moderator
	metrics   *metrics.Collector
	log       *zap.Logger

	timeout    time.Duration
	actionOpts action.Options
}

// Config configures the Agent.
type Config struct {
	Store     *store.Store
	Model     llm.Model
	Builder   *prompt.Builder
	Moderator *moderation.Moderator
	Metrics   *metrics.Collector
	Logger    *zap.Logger

	// ProcessTimeout overrides the pipeline deadline; zero keeps the default.
	ProcessTimeout time.Duration

	KeywordRatio      float64
	LastEventFallback bool
}

// New creates an Agent.
func New(cfg Config) *Agent {
	builder := cfg.Builder
	if builder == nil {
		builder = prompt.NewBuilder()
	}
	mod := cfg.Moderator
	if mod == nil {
		mod = moderation.New()
	}
	coll := cfg.Metrics
	if coll == nil {
		coll = metrics.NewCollector()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	timeout := cfg.ProcessTimeout
	if timeout <= 0 {
		timeout = defaultProcessTimeout
	}

	opts := action.DefaultOptions()
	opts.LastEventFallback = cfg.LastEventFallback
	if cfg.KeywordRatio > 0 {
		opts.Resolver = resolver.Options{KeywordRatio: cfg.KeywordRatio}
	}

	return &Agent{
		store:      cfg.Store,
		model:      cfg.Model,
		builder:    builder,
		moderator:  mod,
		metrics:    coll,
		log:        log,
		timeout:    timeout,
		actionOpts: opts,
	}
}

// Metrics exposes the collector for the HTTP surface.
func (a *Agent) Metrics() *metrics.Collector { return a.metrics }

// Submit validates and persists a request, then processes it in the
// background. The returned Submission carries the id the caller polls.
func (a *Agent) Submit(ctx context.Context, message string, bc *bizdata.Context, files []Attachment) (*Submission, error) {
	message = a.moderator.Sanitize(message)
	if message == "" {
		return nil, apperr.User(apperr.CodeInvalidInput, "message must not be empty").WithStatus(400)
	}

	id := uuid.NewString()
	if err := a.store.CreateRequest(ctx, id, message); err != nil {
		return nil, err
	}
	a.metrics.RecordRequest()

	go a.process(id, message, bc, files)

	return &Submission{RequestID: id, Status: store.StatusPending}, nil
}

// process runs the pipeline for one request. It never returns an error;
// every outcome lands in the store.
func (a *Agent) process(id, message string, bc *bizdata.Context, files []Attachment) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	start := time.Now()
	log := a.log.With(zap.String("request_id", id))

	if err := a.store.SetStatus(ctx, id, store.StatusProcessing); err != nil {
		log.Error("cannot mark request processing", zap.Error(err))
		return
	}

	reply, act, err := a.run(ctx, log, message, bc, files)
	elapsed := time.Since(start)

	// Terminal writes must land even when the pipeline deadline has
	// expired, or the request would sit in processing forever.
	writeCtx, writeCancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer writeCancel()

	if err != nil {
		log.Error("request failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		a.metrics.RecordFailed(elapsed)
		if ferr := a.store.Fail(writeCtx, id, apperr.UserMessage(err), elapsed); ferr != nil {
			log.Error("cannot mark request failed", zap.Error(ferr))
		}
		return
	}

	actionJSON := ""
	if act != nil {
		actionJSON, err = store.MarshalAction(act)
		if err != nil {
			log.Error("cannot encode action", zap.Error(err))
			actionJSON = ""
		}
	}

	if err := a.store.Complete(writeCtx, id, reply, actionJSON, elapsed); err != nil {
		log.Error("cannot mark request completed", zap.Error(err))
		return
	}
	if err := a.store.SaveHistory(writeCtx, id, message, reply, actionJSON); err != nil {
		log.Error("cannot save history", zap.Error(err))
	}

	a.metrics.RecordCompleted(elapsed, act != nil)
	log.Info("request completed",
		zap.Duration("elapsed", elapsed),
		zap.Bool("action", act != nil))
}

// run produces the reply and optional action for one request.
func (a *Agent) run(ctx context.Context, log *zap.Logger, message string, bc *bizdata.Context, files []Attachment) (string, *action.Action, error) {
	// Inbound moderation. A block is a normal outcome with a refusal reply.
	if verdict := a.moderator.CheckMessage(message); !verdict.Allowed {
		log.Info("message blocked", zap.String("reason", verdict.Reason))
		a.metrics.RecordBlocked()
		return moderation.RefusalMessage, nil, nil
	}

	processed, err := a.processFiles(log, files)
	if err != nil {
		return "", nil, err
	}

	history, err := a.store.RecentHistory(ctx, a.builder.MaxHistoryTurns)
	if err != nil {
		// History is an enrichment; a read failure should not kill the request.
		log.Warn("cannot load history", zap.Error(err))
		history = nil
	}

	messages := a.builder.Build(bc, history, processed, message)

	reply, err := a.model.Complete(ctx, messages)
	if err != nil {
		return "", nil, err
	}

	// Outbound moderation before any command parsing.
	if verdict := a.moderator.CheckReply(reply); !verdict.Allowed {
		log.Info("reply blocked", zap.String("reason", verdict.Reason))
		a.metrics.RecordBlocked()
		return moderation.RefusalMessage, nil, nil
	}

	result := extract.Extract(reply)
	act := action.Reconcile(result.Command, bc, a.actionOpts)
	if result.Span != "" {
		reply = extract.CleanReply(reply, result.Span)
	}

	return reply, act, nil
}

// processFiles decodes attachments. A single undecodable file fails the
// request; office placeholders and images pass through.
func (a *Agent) processFiles(log *zap.Logger, files []Attachment) ([]fileproc.Result, error) {
	var out []fileproc.Result
	for _, f := range files {
		res, err := fileproc.Process(f.Name, f.MIME, f.Content)
		if err != nil {
			log.Warn("attachment rejected", zap.String("name", f.Name), zap.Error(err))
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Status returns the current lifecycle state plus results when terminal.
func (a *Agent) Status(ctx context.Context, id string) (*store.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.User(apperr.CodeRequestMalformed, "request id must be a UUID").WithStatus(400)
	}
	return a.store.GetRequest(ctx, id)
}

// History returns recent exchanges, newest first.
func (a *Agent) History(ctx context.Context, limit int) ([]store.HistoryEntry, error) {
	return a.store.RecentHistory(ctx, limit)
}

// HistoryByRequest returns one saved exchange.
func (a *Agent) HistoryByRequest(ctx context.Context, id string) (*store.HistoryEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.User(apperr.CodeRequestMalformed, "request id must be a UUID").WithStatus(400)
	}
	return a.store.HistoryByRequest(ctx, id)
}

// Health probes the model endpoint.
func (a *Agent) Health(ctx context.Context) error {
	return a.model.Health(ctx)
}
