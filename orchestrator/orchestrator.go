// Package orchestrator implements the Request Orchestrator: the per-turn
// sequence that ties the Session Store, the Workflow Engine, and the Event
// Projector together for one client turn.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/events"
	"github.com/medassist-ai/core/observability"
	"github.com/medassist-ai/core/session"
	"github.com/medassist-ai/core/state"
	"github.com/medassist-ai/core/workflow"
)

// ErrUnknownSession is returned when a turn names a session id the store
// does not recognise; the HTTP surface maps it to 404.
var ErrUnknownSession = session.ErrSessionNotFound

// TurnRequest is one client turn.
type TurnRequest struct {
	// SessionID is empty for a new conversation, or an existing session's id.
	SessionID            string
	UserID               string
	Input                string
	TeamRoster           []string
	DeepThinking         bool
	SearchBeforePlanning bool
	Debug                bool
}

// Orchestrator drives the seven-step per-turn sequence.
type Orchestrator struct {
	sessions   *session.Store
	engine     *workflow.Engine
	agents     *agent.Registry
	runTimeout time.Duration
	// release is invoked once at the end of every turn, successful or not,
	// to return per-run resources (notably an active browser session) to
	// their pools.
	release func(ctx context.Context)
	tracer  trace.Tracer
}

// New builds an Orchestrator. runTimeout is the global per-run soft
// timeout (§5); release, if non-nil, is called once at the end of every
// turn to return held resources.
func New(sessions *session.Store, engine *workflow.Engine, agents *agent.Registry, runTimeout time.Duration, release func(ctx context.Context)) *Orchestrator {
	if release == nil {
		release = func(context.Context) {}
	}
	return &Orchestrator{sessions: sessions, engine: engine, agents: agents, runTimeout: runTimeout, release: release, tracer: observability.Tracer("orchestrator")}
}

// RunTurn executes the full per-turn sequence, emitting events to sink as it
// goes. It returns ErrUnknownSession if req.SessionID names a session that
// does not exist, a validation error if req.TeamRoster is invalid, or an
// I/O error from the Session Store. A failed or malformed-output run inside
// the engine is not returned as an error here: it is folded into the
// session's message history as a sanitised assistant error message and the
// turn still completes normally, per the propagation policy. Only client
// disconnect or the per-run timeout short-circuits without persisting.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest, sink workflow.Sink) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.run_turn", trace.WithAttributes(attribute.String("session_id", req.SessionID)))
	defer span.End()
	defer o.release(ctx)

	if err := o.agents.ValidateRoster(req.TeamRoster); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	sess, err := o.resolveSession(ctx, req)
	if err != nil {
		return err
	}

	if _, err := o.sessions.AppendMessage(ctx, sess.ID, state.RoleUser, state.MessageTypeText, req.Input); err != nil {
		return fmt.Errorf("orchestrator: appending user message: %w", err)
	}

	sink(events.NewSessionID(sess.ID))

	history, err := o.sessions.ListMessages(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("orchestrator: loading session history: %w", err)
	}
	loadedCount := len(history)

	workflowID := uuid.NewString()

	st := &state.WorkflowState{
		TeamRoster:           req.TeamRoster,
		DeepThinking:         req.DeepThinking,
		SearchBeforePlanning: req.SearchBeforePlanning,
		Debug:                req.Debug,
		Messages:             history,
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if o.runTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.runTimeout)
		defer cancel()
	}

	runErr := o.engine.Run(runCtx, workflowID, st, sink)

	if isCancellation(runErr) {
		slog.Info("run cancelled, not persisting partial turn", "session_id", sess.ID, "workflow_id", workflowID)
		return nil
	}

	if runErr != nil {
		span.RecordError(runErr)
		slog.Error("workflow run failed", "session_id", sess.ID, "workflow_id", workflowID, "error", runErr)
		st.Messages = append(st.Messages, state.Message{
			Role:    state.RoleAssistant,
			Type:    state.MessageTypeText,
			Content: "I ran into a problem completing this request. Please try again.",
		})
	}

	newMessages := st.Messages[loadedCount:]
	for _, m := range newMessages {
		if _, err := o.sessions.AppendMessage(ctx, sess.ID, m.Role, m.Type, m.Content); err != nil {
			return fmt.Errorf("orchestrator: persisting assistant message: %w", err)
		}
	}

	snapshot, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("orchestrator: marshaling final state: %w", err)
	}
	if err := o.sessions.UpdateState(ctx, sess.ID, snapshot); err != nil {
		return fmt.Errorf("orchestrator: persisting final state: %w", err)
	}

	all, err := o.sessions.ListMessages(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("orchestrator: loading final message list: %w", err)
	}
	client := session.FormatForClient(all)
	clientAny := make([]any, len(client))
	for i, m := range client {
		clientAny[i] = m
	}

	sink(events.NewFinalSessionState(clientAny))
	sink(events.NewEndOfWorkflow(workflowID, clientAny))
	return nil
}

// ValidateTurn checks req without running it: an invalid team roster or an
// unknown session id are both failures the HTTP surface must surface as a
// synchronous 4xx, before it commits to a streaming response (§7). A new
// conversation (empty SessionID) always passes the session check since
// RunTurn creates it.
func (o *Orchestrator) ValidateTurn(ctx context.Context, req TurnRequest) error {
	if err := o.agents.ValidateRoster(req.TeamRoster); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if req.SessionID == "" {
		return nil
	}
	_, err := o.sessions.GetSession(ctx, req.SessionID)
	return err
}

func (o *Orchestrator) resolveSession(ctx context.Context, req TurnRequest) (state.Session, error) {
	if req.SessionID == "" {
		return o.sessions.CreateSession(ctx, "", req.UserID)
	}
	sess, err := o.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return state.Session{}, err
	}
	return sess, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
