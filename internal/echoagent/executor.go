package echoagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
)

// executor echoes the text parts of the incoming message. A non-streaming
// agent answers with a single message; a streaming one runs the echo as a
// task: submitted, working, the echo as an artifact, then completed.
type executor struct {
	cfg    Config
	logger *slog.Logger
}

func (e *executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	if reqCtx.Message == nil {
		return errors.New("message is required")
	}
	text := echoText(reqCtx.Message)
	e.logger.Debug("Echoing message", "task", string(reqCtx.TaskID), "streaming", e.cfg.Streaming)

	if !e.cfg.Streaming {
		if err := e.wait(ctx); err != nil {
			return err
		}
		reply := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: text})
		reply.ContextID = reqCtx.ContextID
		return queue.Write(ctx, reply)
	}

	if reqCtx.StoredTask == nil {
		submitted := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateSubmitted, nil)
		if err := queue.Write(ctx, submitted); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	if err := e.wait(ctx); err != nil {
		return err
	}
	if err := queue.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)); err != nil {
		return err
	}

	if err := e.wait(ctx); err != nil {
		return err
	}
	artifact := a2a.NewArtifactEvent(reqCtx, a2a.TextPart{Text: text})
	artifact.LastChunk = true
	if err := queue.Write(ctx, artifact); err != nil {
		return err
	}

	reply := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: text})
	reply.TaskID = reqCtx.TaskID
	reply.ContextID = reqCtx.ContextID
	done := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, reply)
	done.Final = true
	return queue.Write(ctx, done)
}

func (e *executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	event.Final = true
	return queue.Write(ctx, event)
}

// wait applies the configured response delay, returning early when ctx is done.
func (e *executor) wait(ctx context.Context) error {
	if e.cfg.ResponseDelay <= 0 {
		return nil
	}
	t := time.NewTimer(e.cfg.ResponseDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func echoText(msg *a2a.Message) string {
	var texts []string
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case a2a.TextPart:
			texts = append(texts, p.Text)
		case *a2a.TextPart:
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

var _ a2asrv.AgentExecutor = (*executor)(nil)
