package agent

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Yash-Prakash1/connector/internal/device"
	"github.com/Yash-Prakash1/connector/internal/envscan"
	"github.com/Yash-Prakash1/connector/internal/model"
	"github.com/Yash-Prakash1/connector/internal/pool"
	"github.com/Yash-Prakash1/connector/internal/store"
)

// scriptedOracle replays a fixed decision script, repeating the last action
// once the script runs out.
type scriptedOracle struct {
	script []model.ActionCall
	err    error
	turns  []TurnContext
}

func (o *scriptedOracle) NextAction(ctx context.Context, turn TurnContext) (model.ActionCall, error) {
	o.turns = append(o.turns, turn)
	if o.err != nil {
		return model.ActionCall{}, o.err
	}
	i := len(o.turns) - 1
	if i >= len(o.script) {
		i = len(o.script) - 1
	}
	return o.script[i], nil
}

// fakeExec resolves terminal actions itself and answers everything else from
// a canned result table, defaulting to success.
type fakeExec struct {
	results  map[string]model.ActionResult
	verifyOK bool
	calls    []model.ActionCall
}

func (e *fakeExec) Execute(ctx context.Context, call model.ActionCall) model.ActionResult {
	e.calls = append(e.calls, call)
	switch call.Name {
	case model.ActionComplete:
		return model.ActionResult{Success: true, Terminal: true, Stdout: call.StringParam("summary")}
	case model.ActionGiveUp:
		return model.ActionResult{Terminal: true, Error: call.StringParam("reason")}
	}
	if r, ok := e.results[call.Name]; ok {
		return r
	}
	return model.ActionResult{Success: true}
}

func (e *fakeExec) Verify(ctx context.Context) (bool, string) {
	return e.verifyOK, "RIGOL TECHNOLOGIES,DS1054Z"
}

func bareScanner() *envscan.Scanner {
	// Every probe fails: a minimal but deterministic environment.
	return envscan.New(func(ctx context.Context, name string, args ...string) (string, error) {
		return "", errors.New(name + ": command not found")
	}, nil)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newOrchestrator(s store.Store, o Oracle, e *fakeExec) *Orchestrator {
	return &Orchestrator{
		Store:   s,
		Pool:    pool.New("", "", s, zap.NewNop()),
		Oracle:  o,
		Scanner: bareScanner(),
		NewExecutor: func(env model.Environment, profile device.Profile) Executor {
			return e
		},
		Confirm: func(string) bool { return true },
		Log:     zap.NewNop(),
	}
}

func call(name string, params map[string]any) model.ActionCall {
	return model.ActionCall{Name: name, Params: params}
}

func testProfile() device.Profile {
	return device.Default().Lookup("rigol_ds1054z")
}

func TestRunSuccess(t *testing.T) {
	s := newTestStore(t)
	oracle := &scriptedOracle{script: []model.ActionCall{
		call(model.ActionPipInstall, map[string]any{"packages": []any{"pyvisa", "pyvisa-py"}}),
		call(model.ActionCheckDevice, nil),
		call(model.ActionComplete, map[string]any{"summary": "instrument responding"}),
	}}
	exec := &fakeExec{verifyOK: true}

	res := newOrchestrator(s, oracle, exec).Run(context.Background(), testProfile())
	if !res.Success {
		t.Fatalf("Run failed: %+v", res)
	}
	if res.Steps != 3 || res.Summary != "instrument responding" {
		t.Errorf("result = %+v", res)
	}

	ctx := context.Background()
	steps, err := s.ListSteps(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	if len(steps) != 3 {
		t.Errorf("logged %d steps, want 3", len(steps))
	}

	// The successful recipe must be learned.
	patterns, err := s.CachedPatterns(ctx, "rigol_ds1054z", envscan.HostOS())
	if err != nil {
		t.Fatalf("CachedPatterns: %v", err)
	}
	if len(patterns) != 1 || patterns[0].Stats.SuccessCount != 1 {
		t.Errorf("learned patterns = %+v", patterns)
	}

	// Offline pool: the contribution lands in the upload queue.
	pending, err := s.PendingUploads(ctx)
	if err != nil {
		t.Fatalf("PendingUploads: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("got %d queued contributions, want 1", len(pending))
	}

	st, err := s.SessionStats(ctx)
	if err != nil {
		t.Fatalf("SessionStats: %v", err)
	}
	if st.Successes != 1 {
		t.Errorf("stats = %+v, want one success", st)
	}
}

func TestRunGiveUp(t *testing.T) {
	s := newTestStore(t)
	oracle := &scriptedOracle{script: []model.ActionCall{
		call(model.ActionGiveUp, map[string]any{"reason": "device not present"}),
	}}

	res := newOrchestrator(s, oracle, &fakeExec{}).Run(context.Background(), testProfile())
	if res.Success {
		t.Fatal("give_up session reported success")
	}
	if res.Err != "device not present" {
		t.Errorf("err = %q", res.Err)
	}
}

func TestRunOracleErrorFatal(t *testing.T) {
	s := newTestStore(t)
	oracle := &scriptedOracle{err: errors.New("connection refused")}

	res := newOrchestrator(s, oracle, &fakeExec{}).Run(context.Background(), testProfile())
	if res.Success {
		t.Fatal("oracle failure reported success")
	}
	if res.Err != "oracle error: connection refused" {
		t.Errorf("err = %q", res.Err)
	}
	if res.Steps != 0 {
		t.Errorf("steps = %d, want 0", res.Steps)
	}
}

func TestRunMaxIterations(t *testing.T) {
	s := newTestStore(t)
	// The oracle never terminates; every action succeeds but nothing ends
	// the session.
	oracle := &scriptedOracle{script: []model.ActionCall{
		call(model.ActionListUSB, nil),
	}}
	orch := newOrchestrator(s, oracle, &fakeExec{})
	orch.MaxIterations = 5

	res := orch.Run(context.Background(), testProfile())
	if res.Success {
		t.Fatal("endless session reported success")
	}
	if res.Err != "max iterations reached" {
		t.Errorf("err = %q", res.Err)
	}
	if res.Steps != 5 {
		t.Errorf("steps = %d, want the iteration cap", res.Steps)
	}
}

func TestRunLoopBreakerAdvice(t *testing.T) {
	s := newTestStore(t)
	oracle := &scriptedOracle{script: []model.ActionCall{
		call(model.ActionBash, map[string]any{"command": "lsusb"}),
	}}
	exec := &fakeExec{results: map[string]model.ActionResult{
		model.ActionBash: {Success: false, Stderr: "lsusb: command not found"},
	}}
	orch := newOrchestrator(s, oracle, exec)
	orch.MaxIterations = 4

	orch.Run(context.Background(), testProfile())

	if len(oracle.turns) != 4 {
		t.Fatalf("oracle consulted %d times, want 4", len(oracle.turns))
	}
	if oracle.turns[0].Advice != "" || oracle.turns[1].Advice != "" {
		t.Error("advice present before the loop threshold")
	}
	// The second identical failure crosses the threshold, so turn 3
	// carries the breaker.
	if oracle.turns[2].Advice == "" {
		t.Error("no advice after repeated identical failures")
	}
}

// seedReplayable records the same successful recipe n times so its local
// statistics accumulate.
func seedReplayable(t *testing.T, s store.Store, n int) {
	t.Helper()
	p := model.ResolutionPattern{
		Goal: "rigol_ds1054z",
		OS:   envscan.HostOS(),
		Steps: []model.NormalizedStep{
			{Action: model.StepPipInstall, Detail: map[string]any{"packages": []any{"pyvisa", "pyvisa-py"}}},
		},
		Outcome: "success",
	}
	for i := 0; i < n; i++ {
		if err := s.RecordLearnedOutcome(context.Background(), p, true); err != nil {
			t.Fatalf("RecordLearnedOutcome: %v", err)
		}
	}
}

func TestRunReplaysProvenPattern(t *testing.T) {
	s := newTestStore(t)
	seedReplayable(t, s, 5)

	oracle := &scriptedOracle{script: []model.ActionCall{call(model.ActionGiveUp, nil)}}
	exec := &fakeExec{verifyOK: true}

	res := newOrchestrator(s, oracle, exec).Run(context.Background(), testProfile())
	if !res.Success {
		t.Fatalf("replay run failed: %+v", res)
	}
	if len(oracle.turns) != 0 {
		t.Errorf("oracle consulted %d times during replay, want 0", len(oracle.turns))
	}
	if len(exec.calls) != 1 || exec.calls[0].Name != model.ActionPipInstall {
		t.Errorf("replay executed %+v", exec.calls)
	}
	if res.Steps != 1 {
		t.Errorf("steps = %d, want 1", res.Steps)
	}
}

func TestRunBelowThresholdUsesOracle(t *testing.T) {
	s := newTestStore(t)
	seedReplayable(t, s, 4)

	oracle := &scriptedOracle{script: []model.ActionCall{
		call(model.ActionComplete, map[string]any{"summary": "done"}),
	}}

	res := newOrchestrator(s, oracle, &fakeExec{verifyOK: true}).Run(context.Background(), testProfile())
	if !res.Success {
		t.Fatalf("run failed: %+v", res)
	}
	if len(oracle.turns) == 0 {
		t.Error("oracle never consulted despite pattern below replay threshold")
	}
}

func TestRunFailedReplayFallsBack(t *testing.T) {
	s := newTestStore(t)
	seedReplayable(t, s, 5)

	oracle := &scriptedOracle{script: []model.ActionCall{
		call(model.ActionComplete, map[string]any{"summary": "fixed by hand"}),
	}}
	// Replay steps run fine but the end state never verifies.
	exec := &fakeExec{verifyOK: false}

	res := newOrchestrator(s, oracle, exec).Run(context.Background(), testProfile())
	if !res.Success {
		t.Fatalf("fallback run failed: %+v", res)
	}
	if len(oracle.turns) == 0 {
		t.Error("oracle never consulted after failed replay")
	}
}
