package discovery

import (
	"context"
	"time"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/logger"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/warehouse"
)

// Result carries the snapshot together with the human-readable account of how
// it was obtained.
type Result struct {
	Snapshot *Snapshot
	Report   *Report
}

// Engine runs tiered schema discovery against one warehouse handle.
type Engine struct {
	db           warehouse.DB
	queryTimeout time.Duration
	log          *logger.Logger
}

// NewEngine wires an engine to an open handle. queryTimeout bounds each tier
// query separately; zero disables the per-tier bound.
func NewEngine(db warehouse.DB, queryTimeout time.Duration, log *logger.Logger) *Engine {
	return &Engine{db: db, queryTimeout: queryTimeout, log: log}
}

// Discover runs the tier sequence for scope and assembles the result.
//
// Connectivity and authentication failures abort the run on any tier, as does
// a timeout on the mandatory column tier. Every other tier failure is
// absorbed: it is recorded as an outcome, degrades the capability level, and
// never surfaces as an error. A non-fatal failure of the column tier switches
// the run to the minimal fallback instead of attempting the constraint tiers.
func (e *Engine) Discover(ctx context.Context, scope Scope) (*Result, error) {
	asm := newAssembler(scope)
	var outcomes []TierOutcome

	cols, err := e.runColumns(ctx, scope)
	if err != nil {
		if errs.IsFatal(err) {
			return nil, err
		}
		e.log.With().Str("scope", scope.String()).Str("reason", errs.Kind(err).String()).Logger().
			Warn("discovery: column metadata unavailable, falling back to basic listing")
		outcomes = append(outcomes, failedOutcome(TierColumns, err))
		return e.fallback(ctx, scope, asm, outcomes)
	}
	asm.addColumns(cols, false)
	outcomes = append(outcomes, TierOutcome{Tier: TierColumns, Succeeded: true, Rows: len(cols)})

	outcome, err := e.runPrimaryKeys(ctx, scope, asm)
	if err != nil {
		return nil, err
	}
	outcomes = append(outcomes, outcome)

	outcome, err = e.runForeignKeys(ctx, scope, asm)
	if err != nil {
		return nil, err
	}
	outcomes = append(outcomes, outcome)

	return e.finish(scope, asm, outcomes), nil
}

func (e *Engine) runColumns(ctx context.Context, scope Scope) ([]columnRow, error) {
	tierCtx, cancel := e.tierContext(ctx)
	defer cancel()
	return fetchColumns(tierCtx, e.db, scope)
}

// runPrimaryKeys attempts tier 2. A returned error is always fatal; absorbed
// failures come back inside the outcome.
func (e *Engine) runPrimaryKeys(ctx context.Context, scope Scope, asm *assembler) (TierOutcome, error) {
	if err := ctx.Err(); err != nil {
		return TierOutcome{}, errs.Wrap(errs.ErrKindTimeout, "discovery canceled", err)
	}

	tierCtx, cancel := e.tierContext(ctx)
	defer cancel()

	keys, err := fetchPrimaryKeys(tierCtx, e.db, scope)
	if err != nil {
		if fatal := e.absorb(TierPrimaryKeys, scope, err); fatal != nil {
			return TierOutcome{}, fatal
		}
		return failedOutcome(TierPrimaryKeys, err), nil
	}
	asm.addPrimaryKeys(keys)
	return TierOutcome{Tier: TierPrimaryKeys, Succeeded: true, Rows: len(keys)}, nil
}

func (e *Engine) runForeignKeys(ctx context.Context, scope Scope, asm *assembler) (TierOutcome, error) {
	if err := ctx.Err(); err != nil {
		return TierOutcome{}, errs.Wrap(errs.ErrKindTimeout, "discovery canceled", err)
	}

	tierCtx, cancel := e.tierContext(ctx)
	defer cancel()

	refs, err := fetchForeignKeys(tierCtx, e.db, scope)
	if err != nil {
		if fatal := e.absorb(TierForeignKeys, scope, err); fatal != nil {
			return TierOutcome{}, fatal
		}
		return failedOutcome(TierForeignKeys, err), nil
	}
	asm.addForeignKeys(refs)
	return TierOutcome{Tier: TierForeignKeys, Succeeded: true, Rows: len(refs)}, nil
}

// fallback runs the minimal column listing after the full column tier failed.
func (e *Engine) fallback(ctx context.Context, scope Scope, asm *assembler, outcomes []TierOutcome) (*Result, error) {
	tierCtx, cancel := e.tierContext(ctx)
	defer cancel()

	cols, err := fetchColumnsMinimal(tierCtx, e.db, scope)
	if err != nil {
		if fatal := e.absorb(TierColumnsMinimal, scope, err); fatal != nil {
			return nil, fatal
		}
		outcomes = append(outcomes, failedOutcome(TierColumnsMinimal, err))
		return e.finish(scope, asm, outcomes), nil
	}
	asm.addColumns(cols, true)
	outcomes = append(outcomes, TierOutcome{Tier: TierColumnsMinimal, Succeeded: true, Rows: len(cols)})
	return e.finish(scope, asm, outcomes), nil
}

func (e *Engine) finish(scope Scope, asm *assembler, outcomes []TierOutcome) *Result {
	snap := asm.finish(outcomes)
	report := buildReport(outcomes)

	e.log.With().
		Str("scope", scope.String()).
		Str("capability", string(snap.Capability)).
		Int("tables", len(snap.Tables)).
		Logger().
		Info("discovery: run complete")
	return &Result{Snapshot: snap, Report: report}
}

// absorb decides whether a best-effort tier failure ends the run. Loss of the
// connection or of authentication always does; anything else, including a
// timeout on a best-effort tier, is only recorded.
func (e *Engine) absorb(tier Tier, scope Scope, err error) error {
	kind := errs.Kind(err)
	if kind == errs.ErrKindConnectionFailed || kind == errs.ErrKindAuthFailed {
		return err
	}
	e.log.With().
		Str("scope", scope.String()).
		Str("tier", string(tier)).
		Str("reason", kind.String()).
		Logger().
		Warn("discovery: tier unavailable, continuing")
	return nil
}

func (e *Engine) tierContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.queryTimeout)
}

func failedOutcome(tier Tier, err error) TierOutcome {
	return TierOutcome{Tier: tier, ErrKind: errs.Kind(err)}
}
