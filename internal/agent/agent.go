// Package agent orchestrates one connection session: scan, knowledge pull,
// replay attempt, the oracle-driven action loop, post-session analysis, and
// the pool contribution. Everything around the loop is best effort; only the
// oracle itself is load-bearing.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Yash-Prakash1/connector/internal/analyze"
	"github.com/Yash-Prakash1/connector/internal/device"
	"github.com/Yash-Prakash1/connector/internal/envscan"
	"github.com/Yash-Prakash1/connector/internal/fingerprint"
	"github.com/Yash-Prakash1/connector/internal/loop"
	"github.com/Yash-Prakash1/connector/internal/model"
	"github.com/Yash-Prakash1/connector/internal/pool"
	"github.com/Yash-Prakash1/connector/internal/replay"
	"github.com/Yash-Prakash1/connector/internal/store"
)

// DefaultMaxIterations bounds the oracle loop.
const DefaultMaxIterations = 20

// Oracle decides the next action given the session so far.
type Oracle interface {
	NextAction(ctx context.Context, turn TurnContext) (model.ActionCall, error)
}

// Executor runs actions and verifies the end state. Satisfied by
// exec.Executor.
type Executor interface {
	Execute(ctx context.Context, call model.ActionCall) model.ActionResult
	Verify(ctx context.Context) (bool, string)
}

// TurnContext is everything the oracle sees when picking the next action.
// Advice carries a one-shot loop-breaker hint and is empty on most turns.
type TurnContext struct {
	Goal          string                  `json:"goal"`
	Profile       device.Profile          `json:"profile"`
	Environment   model.Environment       `json:"environment"`
	History       []model.Step            `json:"history,omitempty"`
	Knowledge     *pool.Knowledge         `json:"knowledge,omitempty"`
	Resolutions   []model.ErrorResolution `json:"resolutions,omitempty"`
	Advice        string                  `json:"advice,omitempty"`
	Iteration     int                     `json:"iteration"`
	MaxIterations int                     `json:"max_iterations"`
}

// Orchestrator wires the session pieces together. NewExecutor builds the
// action executor once the environment is known.
type Orchestrator struct {
	Store         store.Store
	Pool          *pool.Client
	Oracle        Oracle
	Scanner       *envscan.Scanner
	NewExecutor   func(env model.Environment, profile device.Profile) Executor
	Confirm       replay.ConfirmFunc
	Log           *zap.Logger
	MaxIterations int
	Version       string
}

// Run drives one session to completion. The returned result always carries a
// session id; Err is set on failure, including a fatal oracle error.
func (o *Orchestrator) Run(ctx context.Context, profile device.Profile) model.SessionResult {
	start := time.Now()
	log := o.Log
	if log == nil {
		log = zap.NewNop()
	}
	maxIter := o.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	env := o.Scanner.Scan(ctx)
	fp := fingerprint.State(env, profile)
	goal := profile.ID

	sessionID := uuid.NewString()
	session := model.Session{
		ID:          sessionID,
		Goal:        goal,
		GoalName:    profile.Name,
		OS:          env.OS,
		OSVersion:   env.OSVersion,
		Fingerprint: fp,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.Store.CreateSession(ctx, session); err != nil {
		log.Warn("create session record", zap.Error(err))
	}
	log.Info("session started",
		zap.String("session", sessionID),
		zap.String("goal", goal),
		zap.String("fingerprint", fp))

	// Retry earlier stranded contributions before pulling fresh knowledge.
	o.Pool.FlushQueue(ctx)
	knowledge := o.Pool.Pull(ctx, goal, env.OS)

	exec := o.NewExecutor(env, profile)

	var steps []model.Step
	totalSteps := 0
	success := false
	replayed := false
	summary := ""
	failure := ""

	if candidate := o.findReplay(ctx, goal, env.OS, fp, log); candidate != nil {
		res := replay.Execute(ctx, *candidate, profile, env.OS, exec, exec, o.Confirm)
		if res.Success {
			success = true
			replayed = true
			totalSteps = res.StepsExecuted
			summary = fmt.Sprintf("replayed known pattern in %d steps", res.StepsExecuted)
			log.Info("replay succeeded",
				zap.String("pattern", candidate.ID),
				zap.Int("steps", res.StepsExecuted))
		} else {
			log.Info("replay failed, falling back to oracle",
				zap.String("pattern", candidate.ID),
				zap.Int("failed_at", res.FailedAtStep),
				zap.String("error", res.Err))
		}
	}

	if !success {
		steps, success, summary, failure = o.oracleLoop(ctx, oracleLoopInput{
			goal:      goal,
			profile:   profile,
			env:       env,
			exec:      exec,
			knowledge: knowledge,
			sessionID: sessionID,
			maxIter:   maxIter,
			log:       log,
		})
		totalSteps = len(steps)
	}

	outcome := "failed"
	if success {
		outcome = "success"
		if replayed {
			outcome = "replayed_success"
		}
	}

	analysis := analyze.Session(steps, analyze.Context{
		Goal:        goal,
		OS:          env.OS,
		OSVersion:   env.OSVersion,
		Fingerprint: fp,
		Outcome:     outcome,
		Packages:    env.PackageVersions,
	})
	o.persistLearning(ctx, analysis, goal, env.OS, success, log)

	contribution := pool.Contribution{
		Goal:           goal,
		OS:             env.OS,
		OSVersion:      env.OSVersion,
		Fingerprint:    fp,
		Outcome:        outcome,
		Success:        success,
		TotalSteps:     totalSteps,
		ErrorSequences: analysis.ErrorSequences,
		WorkingConfig:  analysis.WorkingConfig,
		AgentVersion:   o.Version,
	}
	if analysis.Pattern != nil {
		contribution.Steps = analysis.Pattern.Steps
	}
	o.Pool.Push(ctx, contribution)

	result := model.SessionResult{
		Success:   success,
		SessionID: sessionID,
		Steps:     totalSteps,
		Duration:  time.Since(start),
		Summary:   summary,
		Err:       failure,
	}
	if err := o.Store.CompleteSession(ctx, sessionID, result); err != nil {
		log.Warn("complete session record", zap.Error(err))
	}
	return result
}

func (o *Orchestrator) findReplay(ctx context.Context, goal string, os model.OS, fp string, log *zap.Logger) *model.ResolutionPattern {
	candidate, err := replay.FindCandidate(ctx, o.Store, goal, os, fp)
	if err != nil {
		log.Warn("replay candidate lookup failed", zap.Error(err))
		return nil
	}
	return candidate
}

type oracleLoopInput struct {
	goal      string
	profile   device.Profile
	env       model.Environment
	exec      Executor
	knowledge *pool.Knowledge
	sessionID string
	maxIter   int
	log       *zap.Logger
}

// oracleLoop runs the bounded decide/execute loop. It returns the executed
// steps, whether the session succeeded, and the success summary or failure
// reason.
func (o *Orchestrator) oracleLoop(ctx context.Context, in oracleLoopInput) (steps []model.Step, success bool, summary, failure string) {
	resolutions, err := o.Store.CachedErrorResolutions(ctx, in.goal, in.env.OS)
	if err != nil {
		in.log.Warn("load cached error resolutions", zap.Error(err))
	}

	detector := loop.New(0, 0)
	advice := ""

	for i := 0; i < in.maxIter; i++ {
		turn := TurnContext{
			Goal:          in.goal,
			Profile:       in.profile,
			Environment:   in.env,
			History:       steps,
			Knowledge:     in.knowledge,
			Resolutions:   resolutions,
			Advice:        advice,
			Iteration:     i + 1,
			MaxIterations: in.maxIter,
		}
		advice = ""

		call, err := o.Oracle.NextAction(ctx, turn)
		if err != nil {
			return steps, false, "", "oracle error: " + err.Error()
		}

		began := time.Now()
		result := in.exec.Execute(ctx, call)
		step := model.Step{
			Number:    len(steps) + 1,
			Timestamp: began.UTC(),
			Call:      call,
			Result:    result,
			Duration:  time.Since(began),
		}
		steps = append(steps, step)
		if err := o.Store.LogStep(ctx, in.sessionID, step); err != nil {
			in.log.Warn("log step", zap.Error(err))
		}
		in.log.Debug("step executed",
			zap.Int("number", step.Number),
			zap.String("action", call.Name),
			zap.Bool("success", result.Success))

		if result.Terminal {
			if result.Success {
				return steps, true, result.Stdout, ""
			}
			return steps, false, "", result.Error
		}

		if w := detector.Check(call, result); w.IsLoop {
			in.log.Warn("repeated failure detected", zap.String("detail", w.Message))
			advice = detector.BreakerMessage()
		}
	}
	return steps, false, "", "max iterations reached"
}

// persistLearning writes the analyzer's output into the local store. All of
// it is best effort.
func (o *Orchestrator) persistLearning(ctx context.Context, analysis model.SessionAnalysis, goal string, os model.OS, success bool, log *zap.Logger) {
	if analysis.Pattern != nil {
		p := *analysis.Pattern
		p.ID = store.PatternID(p.Goal, p.OS, p.Steps)
		if err := o.Store.RecordLearnedOutcome(ctx, p, success); err != nil {
			log.Warn("record learned pattern", zap.Error(err))
		}
	}
	for _, er := range analysis.ErrorResolutions {
		er.Goal = goal
		er.OS = os
		er.ID = store.ResolutionID(er.ErrorFingerprint, er.Action)
		if err := o.Store.RecordErrorResolution(ctx, er); err != nil {
			log.Warn("record error resolution", zap.Error(err))
		}
	}
}
