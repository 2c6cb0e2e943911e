// Command turncore is the operational surface over the execution core:
// inspect and replay session journals, query the session index, and list
// discovered sub-agent definitions. Driving an actual model provider is
// the embedding application's job; this binary works entirely from local
// state.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/agentcore/turncore/internal/config"
	"github.com/agentcore/turncore/internal/entity"
	"github.com/agentcore/turncore/internal/journal"
	"github.com/agentcore/turncore/internal/sessionindex"
	"github.com/agentcore/turncore/internal/subagent"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "0.1.0"

var (
	configPath string
	cfg        config.Config
	logger     *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "turncore",
		Short:         "Coding-agent execution core utilities",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err = buildLogger(cfg.Log)
			return err
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a turncore.yaml config file")

	root.AddCommand(replayCmd(), sessionsCmd(), agentsCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildLogger(lc config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if lc.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(lc.Level)); err == nil {
		zcfg.Level = level
	}
	return zcfg.Build()
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <session.jsonl>",
		Short: "Replay a session journal and print its reconstructed context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := journal.Open(args[0])
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.ReadAll()
			if err != nil {
				return err
			}
			built, err := journal.BuildContext(entries)
			if err != nil {
				return err
			}

			fmt.Printf("%d entries, %d messages in context\n", len(entries), len(built.Messages))
			if built.Model != nil {
				fmt.Printf("model: %s/%s\n", built.Model.Provider, built.Model.Model)
			}
			if built.ThinkingLevel != "" {
				fmt.Printf("thinking: %s\n", built.ThinkingLevel)
			}
			for _, m := range built.Messages {
				fmt.Printf("--- [%s] %s\n", m.Role(), m.ID())
				fmt.Println(messageText(m))
			}
			return nil
		},
	}
}

func messageText(m entity.Message) string {
	switch msg := m.(type) {
	case *entity.UserMessage:
		return msg.Text
	case *entity.AssistantMessage:
		text := msg.Text()
		for _, call := range msg.ToolCalls() {
			text += fmt.Sprintf("\n[tool call %s -> %s]", call.ToolCallID, call.ToolName)
		}
		return text
	case *entity.ToolResultMessage:
		return fmt.Sprintf("(%s) %s", msg.ToolName, msg.Text())
	case *entity.BashExecutionMessage:
		return fmt.Sprintf("$ %s\n%s", msg.Command, msg.Output)
	case *entity.CompactionSummaryMessage:
		return fmt.Sprintf("[compacted, %d tokens before]\n%s", msg.TokensBefore, msg.Summary)
	case *entity.BranchSummaryMessage:
		return msg.Summary
	default:
		return ""
	}
}

func sessionsCmd() *cobra.Command {
	var rebuild bool
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List indexed sessions (requires sessions.index_dsn in config)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Sessions.IndexDSN == "" {
				return fmt.Errorf("sessions.index_dsn is not configured")
			}
			db, err := sessionindex.Open(cfg.Sessions.IndexDB, cfg.Sessions.IndexDSN)
			if err != nil {
				return err
			}
			ix := sessionindex.New(db, logger)
			ctx := context.Background()

			if rebuild {
				n, err := ix.Rebuild(ctx, cfg.Sessions.Dir)
				if err != nil {
					return err
				}
				fmt.Printf("indexed %d journals from %s\n", n, cfg.Sessions.Dir)
			}

			rows, err := ix.List(ctx, limit)
			if err != nil {
				return err
			}
			for _, row := range rows {
				line := fmt.Sprintf("%s  entries=%d  %s", row.ID, row.EntryCount, row.UpdatedAt.Format("2006-01-02 15:04"))
				if row.ParentSessionID != "" {
					line += fmt.Sprintf("  (child of %s, task %s)", row.ParentSessionID, row.TaskID)
				}
				if row.FirstUserText != "" {
					line += "  " + row.FirstUserText
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "rescan the sessions directory before listing")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum sessions to list, 0 for all")
	return cmd
}

func agentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List discovered sub-agent definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := subagent.NewInMemoryDefinitionRegistry()
			subagent.Discover(reg, cfg.SubAgents.ProjectDir, cfg.SubAgents.UserDir, nil, logger)
			names := reg.Names()
			if len(names) == 0 {
				fmt.Println("no sub-agent definitions found")
				return nil
			}
			for _, name := range names {
				def, _ := reg.Lookup(name)
				structured := ""
				if len(def.OutputSchema) > 0 {
					structured = "  [structured output]"
				}
				fmt.Printf("%s (%s)  %s%s\n", def.Name, def.Source, def.Description, structured)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the turncore version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("turncore v%s\n", version)
		},
	}
}
