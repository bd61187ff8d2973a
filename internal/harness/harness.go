package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/blockcfg/internal/blocktypes"
	"github.com/roach88/blockcfg/internal/engine"
	"github.com/roach88/blockcfg/internal/ir"
	"github.com/roach88/blockcfg/internal/projectconfig"
	"github.com/roach88/blockcfg/internal/resolver"
	"github.com/roach88/blockcfg/internal/store"
	"github.com/roach88/blockcfg/internal/testutil"
)

// Completion cases.
const (
	CaseOK                   = "ok"
	CaseVetoed               = "vetoed"
	CaseNotFound             = "not_found"
	CaseValidation           = "validation"
	CaseReferentialIntegrity = "referential_integrity"
	CaseTransactionFailed    = "transaction_failed"
	CaseRejected             = "rejected"
	CaseError                = "error"
)

var validCases = map[string]bool{
	CaseOK: true, CaseVetoed: true, CaseNotFound: true, CaseValidation: true,
	CaseReferentialIntegrity: true, CaseTransactionFailed: true,
	CaseRejected: true, CaseError: true,
}

// Harness holds the components one scenario runs against.
type Harness struct {
	store    *store.Store
	config   *projectconfig.Store
	engine   *engine.Engine
	service  *blocktypes.Service
	resolver *resolver.Resolver
	seq      *testutil.Sequence
	logger   *slog.Logger

	// refs names blocks created by blocks.create so later steps can use
	// them as parents.
	refs map[string]int64

	// groupRefs maps refs given to groups.save to the generated uids.
	groupRefs map[string]string

	// vetoes holds the handles whose saves the before-save listener rejects.
	vetoes mapset.Set[string]
}

// Run executes a scenario against a fresh database and returns the result.
// A returned error means the scenario could not run; expectation and
// assertion failures are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "blockcfg-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	h := newHarness(st, scenario)
	ctx := context.Background()
	result := NewResult()

	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	h.executeFlow(ctx, scenario.Flow, result)

	state, err := h.captureState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture state: %w", err)
	}
	result.State = state

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(st *store.Store, scenario *Scenario) *Harness {
	namespace := scenario.Namespace
	if namespace == "" {
		namespace = engine.DefaultNamespace
	}
	seed := scenario.UIDSeed
	if seed == "" {
		seed = scenario.Name
	}

	pc := projectconfig.New()
	e := engine.New(st, engine.WithNamespace(namespace))
	e.Register(pc)

	h := &Harness{
		store:     st,
		config:    pc,
		engine:    e,
		resolver:  resolver.New(st),
		seq:       testutil.NewSequence(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		refs:      make(map[string]int64),
		groupRefs: make(map[string]string),
		vetoes:    mapset.NewSet[string](),
	}
	h.service = blocktypes.New(st, e, pc,
		blocktypes.WithUIDGenerator(testutil.NewUIDGenerator(seed).Generate))
	e.OnBeforeSave(func(ctx context.Context, ev engine.BlockTypeEvent) error {
		if h.vetoes.Contains(ev.BlockType.Handle) {
			return engine.ErrVetoed
		}
		return nil
	})
	return h
}

// executeSetup runs the setup steps. Any failure aborts the scenario.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		result.AddInvocationTrace(step.Action, step.Args, h.seq.Next())
		res, err := actions[step.Action](ctx, h, step.Args)
		outcome := classify(err)
		result.AddCompletionTrace(outcome, res, h.seq.Next())
		if err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
		h.logger.Info("setup step completed", "step", i, "action", step.Action)
	}
	return nil
}

// executeFlow runs the flow steps and checks their expect clauses. Step
// errors are outcomes, not failures: only a mismatch with the expect clause
// fails the result.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		result.AddInvocationTrace(step.Invoke, step.Args, h.seq.Next())
		res, err := actions[step.Invoke](ctx, h, step.Args)
		outcome := classify(err)
		result.AddCompletionTrace(outcome, res, h.seq.Next())

		h.logger.Info("flow step completed",
			"step", i,
			"action", step.Invoke,
			"case", outcome,
			"error", err,
		)

		if step.Expect == nil {
			continue
		}
		if step.Expect.Case != outcome {
			msg := fmt.Sprintf("flow[%d] %s: expected case %q, got %q", i, step.Invoke, step.Expect.Case, outcome)
			if err != nil {
				msg += ": " + err.Error()
			}
			result.AddError(msg)
			continue
		}
		for key, want := range step.Expect.Result {
			got, ok := res[key]
			if !ok {
				result.AddError(fmt.Sprintf("flow[%d] %s: result has no %q", i, step.Invoke, key))
				continue
			}
			if !ir.CanonicalEqual(got, want) {
				result.AddError(fmt.Sprintf("flow[%d] %s: result %q = %v, expected %v", i, step.Invoke, key, got, want))
			}
		}
	}
}

// classify maps a step error to its completion case.
func classify(err error) string {
	switch {
	case err == nil:
		return CaseOK
	case errors.Is(err, engine.ErrVetoed):
		return CaseVetoed
	case engine.IsNotFound(err):
		return CaseNotFound
	case engine.IsValidation(err):
		return CaseValidation
	case engine.IsReferentialIntegrity(err):
		return CaseReferentialIntegrity
	case engine.IsTransactionFailure(err):
		return CaseTransactionFailed
	case errors.Is(err, blocktypes.ErrNotTopLevel),
		errors.Is(err, blocktypes.ErrChildNotAllowed),
		errors.Is(err, blocktypes.ErrTooManyChildren),
		errors.Is(err, blocktypes.ErrFieldMismatch),
		errors.Is(err, blocktypes.ErrParentInOtherTree):
		return CaseRejected
	default:
		return CaseError
	}
}
