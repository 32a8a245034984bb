package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	prontoagent "github.com/tanpawarit/pronto-relay/agent/agents/pronto"
	promptx "github.com/tanpawarit/pronto-relay/agent/prompt"
	toolx "github.com/tanpawarit/pronto-relay/agent/tool"
	"github.com/tanpawarit/pronto-relay/pkg/chatmodel"
	configx "github.com/tanpawarit/pronto-relay/pkg/config"
	logx "github.com/tanpawarit/pronto-relay/pkg/logger"
	_ "github.com/tanpawarit/pronto-relay/pkg/logger/autoload"
	prontox "github.com/tanpawarit/pronto-relay/pkg/pronto"
	"github.com/tanpawarit/pronto-relay/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pronto-relay",
		Short:         "Chat relay between HTTP clients and a Pronto ERP agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newServeCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("pronto-relay failed")
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	var (
		envFile string
		addr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /chat as a server-sent event stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				configx.SetEnvFile(envFile)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "path to a .env file (defaults to $ENV_FILE or ./.env)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides APP_ADDR")

	return cmd
}

func serve(ctx context.Context, addr string) error {
	// LOG_* may live in the env file, which is only readable now.
	logCfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		return err
	}
	logx.Init(*logCfg)

	appCfg, err := configx.New[server.Config]("APP")
	if err != nil {
		return err
	}
	if addr != "" {
		appCfg.Addr = addr
	}
	llmCfg, err := configx.New[chatmodel.Config]("LLM")
	if err != nil {
		return err
	}
	prontoCfg, err := configx.New[prontox.Config]("PRONTO")
	if err != nil {
		return err
	}
	agentCfg, err := configx.New[prontoagent.Config]("AGENT")
	if err != nil {
		return err
	}

	erp, err := prontox.NewClient(*prontoCfg)
	if err != nil {
		return fmt.Errorf("pronto client: %w", err)
	}
	registry, err := toolx.BuildForERP(erp)
	if err != nil {
		return err
	}

	chatModel, err := llmCfg.New(ctx)
	if err != nil {
		return err
	}

	prompts := promptx.LoadPromptSet()
	runtime, err := prontoagent.New(ctx, chatModel, registry, prompts.System, *agentCfg)
	if err != nil {
		return err
	}

	srv, err := server.New(runtime, chatmodel.NewProbe(*llmCfg), *appCfg)
	if err != nil {
		return err
	}

	log.Info().
		Str("model", llmCfg.Model).
		Strs("tools", registry.Names()).
		Msg("pronto relay ready")

	return srv.ListenAndServe(ctx)
}
