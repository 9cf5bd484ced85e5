// Package pipeline ties the fetcher, extractor, assembler and record
// resolvers together into the onboarding flows.
package pipeline

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/glorpus-work/onboard/internal/logger"
	"github.com/glorpus-work/onboard/pkg/download"
	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/fsutil"
	"github.com/glorpus-work/onboard/pkg/hooks"
	"github.com/glorpus-work/onboard/pkg/model"
	"github.com/glorpus-work/onboard/pkg/resolver"
)

// Orchestrator ties Download, Archive and Bundle managers together for
// onboarding. It holds no state across invocations.
type Orchestrator struct {
	DL        download.Manager
	Archive   Extractor
	Assembler Assembler
	Resolvers *resolver.Registry
	Scripts   HookRunner
	Hooks     Hooks // Hooks for progress and event notifications
	// ScratchDir is where temporary files and result storage are created;
	// empty means os.TempDir().
	ScratchDir string
	// Concurrency bounds parallel downloads of record bundles.
	Concurrency int
}

// New constructs an Orchestrator from existing managers. Helper for wiring.
func New(dl download.Manager, ex Extractor, asm Assembler, resolvers *resolver.Registry, h Hooks) *Orchestrator {
	return &Orchestrator{
		DL:        dl,
		Archive:   ex,
		Assembler: asm,
		Resolvers: resolvers,
		Hooks:     h,
	}
}

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

// run is the per-invocation state: an id for events and logs, and the
// scratch registry every temporary path is tracked in.
type run struct {
	o       *Orchestrator
	id      string
	source  string
	scratch *fsutil.Scratch
}

func (o *Orchestrator) begin(source string) (*run, error) {
	scratch, err := fsutil.NewScratch(o.ScratchDir)
	if err != nil {
		return nil, err
	}
	return &run{o: o, id: uuid.NewString(), source: source, scratch: scratch}, nil
}

func (r *run) emit(phase, msg string) {
	logger.Debug("onboarding stage", logger.Fields{"run": r.id, "stage": phase, "source": r.source, "msg": msg})
	emit(r.o.Hooks, Event{Phase: phase, ID: r.id, Msg: msg})
}

// finish releases every scratch path not handed to a result and reports
// the terminal event. It returns err unchanged.
func (r *run) finish(err error) error {
	if cerr := r.scratch.Cleanup(); cerr != nil {
		logger.Warn("failed to clean up scratch space", logger.Fields{"run": r.id, "error": cerr.Error()})
	}
	if err != nil {
		logger.Debug("onboarding failed", logger.Fields{"run": r.id, "source": r.source, "kind": onboarderrors.Kind(err), "error": err.Error()})
		emit(r.o.Hooks, Event{Phase: PhaseFailed, ID: r.id, Msg: err.Error()})
		return err
	}
	r.emit(PhaseDone, r.source)
	return nil
}

func (r *run) hook(ctx context.Context, ht hooks.HookType, stage string, hctx hooks.HookContext) error {
	if r.o.Scripts == nil {
		return nil
	}
	hctx.RunID = r.id
	hctx.Source = r.source
	hctx.Stage = stage
	return r.o.Scripts.Execute(ctx, ht, hctx)
}

// workDir allocates a fresh directory for intermediate files of this run.
func (r *run) workDir() (string, error) {
	return r.scratch.TempDir("onboard-" + r.id[:8] + "-*")
}

func (r *run) resolve(ctx context.Context, provider, id, constraint string) (*model.Record, error) {
	if r.o.Resolvers == nil {
		return nil, fmt.Errorf("record resolver: %w", onboarderrors.ErrNotConfigured)
	}
	res, err := r.o.Resolvers.Get(provider)
	if err != nil {
		return nil, err
	}
	r.emit(PhaseResolving, provider+":"+id)
	rec, err := res.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := rec.MatchVersion(constraint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s record '%s' has version %q, want %s: %w", provider, rec.ID, rec.Version, constraint, onboarderrors.ErrVersionConstraint)
	}
	return rec, nil
}

func (o *Orchestrator) checkConfigured(needArchive, needAssembler bool) error {
	if o.DL == nil {
		return fmt.Errorf("download manager: %w", onboarderrors.ErrNotConfigured)
	}
	if needArchive && o.Archive == nil {
		return fmt.Errorf("archive extractor: %w", onboarderrors.ErrNotConfigured)
	}
	if needAssembler && o.Assembler == nil {
		return fmt.Errorf("bundle assembler: %w", onboarderrors.ErrNotConfigured)
	}
	return nil
}

func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &onboarderrors.FetchError{URL: raw, Err: onboarderrors.ErrInvalidURL}
	}
	return u, nil
}
