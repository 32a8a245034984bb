package pronto

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/tanpawarit/pronto-relay/agent/contract"
	toolx "github.com/tanpawarit/pronto-relay/agent/tool"
)

const (
	defaultMaxStep    = 25
	defaultRunTimeout = 120 * time.Second
)

type Config struct {
	MaxStep    int           `envconfig:"MAX_STEP" split_words:"true" default:"25"`
	RunTimeout time.Duration `envconfig:"RUN_TIMEOUT" split_words:"true" default:"120s"`
}

// generator is the part of *react.Agent the runtime drives.
type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...agent.AgentOption) (*schema.Message, error)
}

type iterStep struct {
	msg  *schema.Message
	done bool
	err  error
}

// Agent is a ReAct loop over the ERP tool registry. It is compiled once and
// shared by all requests.
type Agent struct {
	runner       generator
	systemPrompt string
	runTimeout   time.Duration
	logger       zerolog.Logger
}

var _ contractx.Runtime = (*Agent)(nil)

func New(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	registry *toolx.Registry,
	systemPrompt string,
	cfg Config,
) (*Agent, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}

	maxStep := cfg.MaxStep
	if maxStep <= 0 {
		maxStep = defaultMaxStep
	}
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}

	a := &Agent{
		systemPrompt: strings.TrimSpace(systemPrompt),
		runTimeout:   runTimeout,
		logger:       log.Logger.With().Str("component", "agent").Logger(),
	}

	runner, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: registry.BaseTools(),
		},
		MessageModifier: a.withSystemPrompt,
		MaxStep:         maxStep,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: compile react agent: %v", contractx.ErrModelInvoke, err)
	}
	a.runner = runner

	return a, nil
}

func (a *Agent) withSystemPrompt(_ context.Context, input []*schema.Message) []*schema.Message {
	if a.systemPrompt == "" {
		return input
	}
	out := make([]*schema.Message, 0, len(input)+1)
	out = append(out, schema.SystemMessage(a.systemPrompt))
	return append(out, input...)
}

// Run starts one conversation. Messages produced by the model and by tool
// calls are delivered in order on the returned channel.
func (a *Agent) Run(ctx context.Context, msgs []contractx.Message) (<-chan contractx.Event, error) {
	if a == nil || a.runner == nil {
		return nil, fmt.Errorf("%w: agent is not initialised", contractx.ErrModelInvoke)
	}
	input, err := toSchemaMessages(msgs)
	if err != nil {
		return nil, err
	}

	events := make(chan contractx.Event)
	go a.run(ctx, input, events)
	return events, nil
}

func (a *Agent) run(ctx context.Context, input []*schema.Message, events chan<- contractx.Event) {
	defer close(events)

	runCtx, cancel := context.WithTimeout(ctx, a.runTimeout)
	defer cancel()

	start := time.Now()
	opt, future := react.WithMessageFuture()
	produced := 0

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		_, err := a.runner.Generate(gctx, input, opt)
		return err
	})
	g.Go(func() error {
		pump := make(chan iterStep)
		go drain(gctx, future, pump)

		for {
			var step iterStep
			select {
			case step = <-pump:
			case <-gctx.Done():
				return gctx.Err()
			}
			if step.err != nil {
				return step.err
			}
			if step.done {
				return nil
			}
			if step.msg == nil {
				continue
			}
			select {
			case events <- contractx.MessageEvent(fromSchemaMessage(step.msg)):
				produced++
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	err := g.Wait()
	if err == nil {
		a.logger.Info().Int("messages", produced).Dur("duration", time.Since(start)).Msg("agent run finished")
		return
	}

	a.logger.Warn().Err(err).Int("messages", produced).Dur("duration", time.Since(start)).Msg("agent run failed")
	select {
	case events <- contractx.ErrorEvent(fmt.Errorf("%w: %v", contractx.ErrRunFailed, err)):
	case <-ctx.Done():
	}
}

// drain copies the message future into pump. The future's iterator does not
// observe ctx, so this goroutine only exits early through the send select.
func drain(ctx context.Context, future react.MessageFuture, pump chan<- iterStep) {
	iter := future.GetMessages()
	for {
		msg, hasNext, err := iter.Next()
		step := iterStep{msg: msg, done: !hasNext, err: err}
		select {
		case pump <- step:
		case <-ctx.Done():
			return
		}
		if step.err != nil || step.done {
			return
		}
	}
}

func toSchemaMessages(msgs []contractx.Message) ([]*schema.Message, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: conversation is empty", contractx.ErrValidation)
	}
	if msgs[len(msgs)-1].Role != contractx.RoleUser {
		return nil, fmt.Errorf("%w: last message must come from the user", contractx.ErrValidation)
	}

	out := make([]*schema.Message, 0, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case contractx.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case contractx.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		case contractx.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		default:
			return nil, fmt.Errorf("%w: message %d has unsupported role %q", contractx.ErrValidation, i, m.Role)
		}
	}
	return out, nil
}

func fromSchemaMessage(msg *schema.Message) contractx.Message {
	return contractx.Message{
		Role:    contractx.Role(msg.Role),
		Content: msg.Content,
	}
}
