package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fanqie-tracker/internal/config"
	"fanqie-tracker/internal/extract"
	"fanqie-tracker/internal/fetch"
	"fanqie-tracker/internal/history"
	"fanqie-tracker/internal/ledger"
	"fanqie-tracker/internal/logx"
	"fanqie-tracker/internal/metrics"
	"fanqie-tracker/internal/model"
	"fanqie-tracker/internal/reconcile"
	"fanqie-tracker/internal/rules"
	"fanqie-tracker/internal/store"
)

const (
	defaultConfigPath = "settings.yaml"
	defaultRulesPath  = "rules.yaml"
)

// app 保存命令间共享的配置。
type app struct {
	configPath string
	rulesPath  string
	cfg        *config.Config
	rules      *rules.Rules
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "fanqie-tracker",
		Short:         "Track serialized novels on fanqie and the wiki",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath, "path to settings.yaml")
	root.PersistentFlags().StringVar(&a.rulesPath, "rules", defaultRulesPath, "path to rules.yaml (optional)")

	root.AddCommand(newScrapeCommand(a))
	root.AddCommand(newStatusCommand(a))
	root.AddCommand(newLedgerCommand(a))
	root.AddCommand(newValidateCommand(a))
	root.AddCommand(newHistoryCommand(a))
	return root
}

// load 读取配置与规则；默认路径的文件可以不存在。
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, !cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	a.cfg = cfg
	logx.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogLocale, cfg.LogColor)

	a.rules = rules.Default()
	if a.rulesPath != "" {
		r, err := rules.Load(a.rulesPath)
		switch {
		case err == nil:
			a.rules = r
		case errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("rules"):
			logx.Debugf("未找到 %s，使用内置规则", a.rulesPath)
		default:
			return err
		}
	}
	return nil
}

func newScrapeCommand(a *app) *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch every tracked book and update the lists and retry ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.scrape(ctx, reconcile.Only(only))
		},
	}
	cmd.Flags().StringVar(&only, "only", "", "limit the run to one collection: waiting|uploading")
	return cmd
}

func (a *app) scrape(ctx context.Context, only reconcile.Only) error {
	cl, err := fetch.New(a.cfg.FetchOptions())
	if err != nil {
		return fmt.Errorf("http client: %w", err)
	}
	ex, err := extract.New(a.rules)
	if err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	rec, err := reconcile.New(cl, reconcile.Options{
		BookBase:  a.cfg.Sources.Fanqie,
		WikiBase:  a.cfg.Sources.Wiki,
		BookDelay: a.cfg.Rate.BookDelay,
		WikiDelay: a.cfg.Rate.WikiDelay,
		Extractor: ex,
	})
	if err != nil {
		return err
	}
	st, err := store.Open(a.cfg.StateDir)
	if err != nil {
		return err
	}

	var h *history.SQLite
	if a.cfg.History.DSN != "" {
		h, err = history.OpenSQLite(a.cfg.History.DSN)
		if err != nil {
			return err
		}
		defer h.Close()
	}
	var m *metrics.Metrics
	if a.cfg.MetricsTextfile != "" {
		m = metrics.New()
	}

	run := reconcile.NewRunner(st, rec, h, m)
	run.ReportPath = a.cfg.Report
	run.MetricsPath = a.cfg.MetricsTextfile
	_, err = run.Run(ctx, only)
	return err
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print both book lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			lists, l, err := a.openStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderWaiting(lists.Waiting, l))
			fmt.Fprintln(out, renderUploading(lists.Uploading, l))
			return nil
		},
	}
}

func newLedgerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "Print books queued for retry on the next run",
		RunE: func(cmd *cobra.Command, args []string) error {
			lists, l, err := a.openStore()
			if err != nil {
				return err
			}
			if l.Len() == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "retry ledger is empty")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderLedger(lists, l))
			return nil
		},
	}
}

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the list files for duplicate or missing ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			lists, l, err := a.openStore()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: waiting=%d uploading=%d ledger=%d\n", len(lists.Waiting), len(lists.Uploading), l.Len())
			return nil
		},
	}
}

func newHistoryCommand(a *app) *cobra.Command {
	var limit int
	var book string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent runs, or the attempts of one book with --book",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.History.DSN == "" {
				return errors.New("HISTORY.DSN is not configured")
			}
			h, err := history.OpenSQLite(a.cfg.History.DSN)
			if err != nil {
				return err
			}
			defer h.Close()
			ctx := cmd.Context()
			if book != "" {
				attempts, err := h.Attempts(ctx, book, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderAttempts(attempts))
				return nil
			}
			runs, err := h.Recent(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of rows")
	cmd.Flags().StringVar(&book, "book", "", "show attempts for one fanqie_id")
	return cmd
}

func (a *app) openStore() (store.Lists, *ledger.Ledger, error) {
	st, err := store.Open(a.cfg.StateDir)
	if err != nil {
		return store.Lists{}, nil, err
	}
	lists, l, err := st.Load()
	if err != nil {
		return store.Lists{}, nil, err
	}
	return lists, l, nil
}

func optInt(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func optString(p *string) string {
	if v := model.Deref(p); v != "" {
		return v
	}
	return "-"
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
