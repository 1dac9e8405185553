package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"accounting/internal/amqp"
	"accounting/internal/config"
	"accounting/internal/core"
	"accounting/internal/log"
	"accounting/internal/services"
	"accounting/internal/sheets/xlsx"
	"accounting/internal/storage"
)

// as a short lived CLI the global flag is read once per command.
var ledgerFile = flag.String("ledger", "", "path to the ledger workbook (overrides LEDGER_FILE)")

// Register adds every command to c.
func Register(c *subcommands.Commander) {
	c.Register(&initCmd{}, "ledger")
	c.Register(&menuCmd{}, "ledger")
	c.Register(&addCmd{}, "ledger")
	c.Register(&listCmd{}, "ledger")
	c.Register(&updateCmd{}, "ledger")
	c.Register(&deleteCmd{}, "ledger")

	c.Register(&historyCmd{}, "integrations")
	c.Register(&pushCmd{}, "integrations")
	c.Register(&syncCmd{}, "integrations")
	c.Register(&watchCmd{}, "integrations")
}

// RunDefault runs the interactive menu, used when no command is given.
func RunDefault(ctx context.Context) subcommands.ExitStatus {
	cmd := &menuCmd{}
	fs := flag.NewFlagSet(cmd.Name(), flag.ExitOnError)
	cmd.SetFlags(fs)
	return cmd.Execute(ctx, fs)
}

func bootstrap() (*config.Config, *log.Logger, bool) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig(*ledgerFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, nil, false
	}
	return cfg, SetupLogger(cfg), true
}

// withApp opens the ledger and its sinks around fn.
func withApp(ctx context.Context, fn func(context.Context, *App) subcommands.ExitStatus) subcommands.ExitStatus {
	cfg, logger, ok := bootstrap()
	if !ok {
		return subcommands.ExitFailure
	}
	ctx = log.NewContext(ctx, logger)
	app, err := OpenApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close failed", log.FieldError, err)
		}
	}()
	if r := app.Store.HeaderReport(); r.Status == xlsx.HeaderReplaced || r.Status == xlsx.HeaderMigrated {
		fmt.Fprintf(os.Stderr, "Note: ledger header was %s (backup: %s)\n", r.Status, orNone(r.BackupPath))
	}
	return fn(ctx, app)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
	return subcommands.ExitFailure
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

type initCmd struct{}

func (*initCmd) Name() string     { return "init" }
func (*initCmd) Synopsis() string { return "create the ledger workbook if it is missing" }
func (*initCmd) Usage() string {
	return `init

  Creates the ledger workbook with only the header row. An existing,
  non-empty file is left untouched.
`
}
func (*initCmd) SetFlags(*flag.FlagSet) {}

func (*initCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, _, ok := bootstrap()
	if !ok {
		return subcommands.ExitFailure
	}
	if err := xlsx.Initialize(cfg.LedgerFile); err != nil {
		return fail(err)
	}
	fmt.Printf("Ledger ready at %s\n", cfg.LedgerFile)
	return subcommands.ExitSuccess
}

type menuCmd struct{}

func (*menuCmd) Name() string     { return "menu" }
func (*menuCmd) Synopsis() string { return "interactive menu (default)" }
func (*menuCmd) Usage() string {
	return `menu

  Opens the numbered menu to add, list, update and delete entries.
`
}
func (*menuCmd) SetFlags(*flag.FlagSet) {}

func (*menuCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, app *App) subcommands.ExitStatus {
		m := &Menu{Ledger: app.Ledger, In: os.Stdin, Out: os.Stdout}
		if err := m.Run(ctx); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	})
}

// entryFlags are the entry fields shared by add and update. Empty flags
// keep the base value.
type entryFlags struct {
	date     string
	platform string
	product  string
	quantity string
	sales    string
	fee      string
	invoice  string
	taxable  string
}

func (e *entryFlags) register(f *flag.FlagSet) {
	f.StringVar(&e.date, "date", "", "when the sale happened, YYYY-MM-DD HH:MM[:SS] (default now)")
	f.StringVar(&e.platform, "platform", "", "sales platform")
	f.StringVar(&e.product, "product", "", "product name")
	f.StringVar(&e.quantity, "qty", "", "order quantity")
	f.StringVar(&e.sales, "sales", "", "total sales amount")
	f.StringVar(&e.fee, "fee", "", "platform fee")
	f.StringVar(&e.invoice, "invoice", "", "invoice required (y/n, default n)")
	f.StringVar(&e.taxable, "taxable", "", "taxable (y/n, default y)")
}

// apply overlays the flags on base. With required set, the name, quantity
// and amount flags must all be given.
func (e *entryFlags) apply(base core.Fields, required bool) (core.Fields, error) {
	f := base
	var err error
	if e.date != "" {
		if f.OccurredAt, err = core.ParseTimestamp(e.date); err != nil {
			return f, err
		}
	}
	if required {
		for _, req := range []struct{ name, value string }{
			{"-platform", e.platform}, {"-product", e.product}, {"-qty", e.quantity},
			{"-sales", e.sales}, {"-fee", e.fee},
		} {
			if req.value == "" {
				return f, fmt.Errorf("%s: %w", req.name, errRequired)
			}
		}
	}
	if e.platform != "" {
		f.Platform = e.platform
	}
	if e.product != "" {
		f.ProductName = e.product
	}
	if e.quantity != "" {
		if f.OrderQuantity, err = core.ParseQuantity(e.quantity); err != nil {
			return f, err
		}
	}
	if e.sales != "" {
		if f.TotalSales, err = core.ParseAmount(e.sales); err != nil {
			return f, err
		}
	}
	if e.fee != "" {
		if f.PlatformFee, err = core.ParseAmount(e.fee); err != nil {
			return f, err
		}
	}
	if v, ok, err := core.ParseYesNo(e.invoice); err != nil {
		return f, err
	} else if ok {
		f.InvoiceRequired = v
	}
	if v, ok, err := core.ParseYesNo(e.taxable); err != nil {
		return f, err
	} else if ok {
		f.Taxable = &v
	}
	return f, nil
}

type addCmd struct {
	entry entryFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "append an entry" }
func (*addCmd) Usage() string {
	return `add -platform <name> -product <name> -qty <n> -sales <amount> -fee <amount> [-date <when>] [-invoice y|n] [-taxable y|n]

  Appends one entry to the ledger and saves the file.
`
}
func (c *addCmd) SetFlags(f *flag.FlagSet) { c.entry.register(f) }

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fields, err := c.entry.apply(core.Fields{OccurredAt: time.Now()}, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	e, err := core.Construct(fields)
	if err != nil {
		return fail(err)
	}
	return withApp(ctx, func(ctx context.Context, app *App) subcommands.ExitStatus {
		row, err := app.Ledger.Add(ctx, e)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("Entry added at row %d (actual income %s)\n", row, e.ActualIncome().String())
		return subcommands.ExitSuccess
	})
}

type listCmd struct {
	plain bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list every readable entry" }
func (*listCmd) Usage() string {
	return `list [-plain]

  Prints the ledger as a table. Unreadable rows are reported after it.
`
}
func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.plain, "plain", false, "print raw markdown instead of rendering it")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, app *App) subcommands.ExitStatus {
		listing, err := app.Ledger.List(ctx)
		if err != nil {
			return fail(err)
		}
		md := EntriesMarkdown(listing)
		if c.plain {
			fmt.Print(md)
		} else {
			fmt.Print(RenderMarkdown(md))
		}
		return subcommands.ExitSuccess
	})
}

type updateCmd struct {
	row   int
	entry entryFlags
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "replace the entry at a row" }
func (*updateCmd) Usage() string {
	return `update -row <n> [entry flags]

  Replaces the entry at row n. Fields without a flag keep their value.
`
}
func (c *updateCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.row, "row", 0, "row position as shown by list")
	c.entry.register(f)
}

func (c *updateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.row == 0 {
		fmt.Fprintln(os.Stderr, "-row is required")
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, app *App) subcommands.ExitStatus {
		cur, ok := app.Ledger.Get(c.row)
		if !ok {
			return fail(fmt.Errorf("row %d has no readable entry", c.row))
		}
		fields, err := c.entry.apply(cur.Fields(), false)
		if err != nil {
			return fail(err)
		}
		e, err := core.Construct(fields)
		if err != nil {
			return fail(err)
		}
		if err := app.Ledger.Update(ctx, c.row, e); err != nil {
			return fail(err)
		}
		fmt.Printf("Row %d updated\n", c.row)
		return subcommands.ExitSuccess
	})
}

type deleteCmd struct {
	row int
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "remove the entry at a row" }
func (*deleteCmd) Usage() string {
	return `delete -row <n>

  Removes row n. Later rows move up by one.
`
}
func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.row, "row", 0, "row position as shown by list")
}

func (c *deleteCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.row == 0 {
		fmt.Fprintln(os.Stderr, "-row is required")
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, app *App) subcommands.ExitStatus {
		if err := app.Ledger.Delete(ctx, c.row); err != nil {
			return fail(err)
		}
		fmt.Printf("Row %d deleted\n", c.row)
		return subcommands.ExitSuccess
	})
}

type historyCmd struct {
	limit int
	plain bool
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "show recent changes from the audit journal" }
func (*historyCmd) Usage() string {
	return `history [-n <count>] [-plain]

  Shows the latest journaled changes. Requires AUDIT_DB_PATH.
`
}
func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "number of changes to show")
	f.BoolVar(&c.plain, "plain", false, "print raw markdown instead of rendering it")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, _, ok := bootstrap()
	if !ok {
		return subcommands.ExitFailure
	}
	if !cfg.AuditEnabled() {
		fmt.Fprintln(os.Stderr, "AUDIT_DB_PATH is not set")
		return subcommands.ExitUsageError
	}
	repo, err := storage.NewAuditRepository(cfg.AuditDBPath)
	if err != nil {
		return fail(err)
	}
	defer repo.Close()

	records, err := repo.Recent(ctx, c.limit)
	if err != nil {
		return fail(err)
	}
	md := HistoryMarkdown(records)
	if c.plain {
		fmt.Print(md)
	} else {
		fmt.Print(RenderMarkdown(md))
	}
	return subcommands.ExitSuccess
}

type pushCmd struct{}

func (*pushCmd) Name() string     { return "push" }
func (*pushCmd) Synopsis() string { return "copy the ledger to Google Sheets" }
func (*pushCmd) Usage() string {
	return `push

  Replaces the configured Google Sheets tab with every readable entry.
  Requires GOOGLE_SPREADSHEET_ID and service account credentials.
`
}
func (*pushCmd) SetFlags(*flag.FlagSet) {}

func (*pushCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, app *App) subcommands.ExitStatus {
		exp, err := NewExporter(ctx, app.Config)
		if err != nil {
			return fail(err)
		}
		n, err := app.Ledger.Push(ctx, exp)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("Exported %d entries to sheet %q\n", n, app.Config.GoogleSheetName)
		return subcommands.ExitSuccess
	})
}

type syncCmd struct {
	interval time.Duration
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "keep Google Sheets in step with the ledger" }
func (*syncCmd) Usage() string {
	return `sync [-interval <duration>]

  Runs until interrupted. The ledger is exported whenever the audit journal
  grows; with AMQP_URL set every change message also triggers an export.
`
}
func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.interval, "interval", services.DefaultSyncProcessorConfig().PollInterval, "journal poll interval")
}

func (c *syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, ok := bootstrap()
	if !ok {
		return subcommands.ExitFailure
	}
	exp, err := NewExporter(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	var counter services.ChangeCounter
	if cfg.AuditEnabled() {
		repo, err := storage.NewAuditRepository(cfg.AuditDBPath)
		if err != nil {
			return fail(err)
		}
		defer repo.Close()
		counter = repo
	}

	processor := services.NewSyncProcessor(counter, ReadLedger(cfg, logger), exp,
		services.SyncProcessorConfig{PollInterval: c.interval})

	ctx, done := GracefulShutdown(ctx, logger, 10*time.Second, func(stopCtx context.Context) {
		if err := processor.Stop(stopCtx); err != nil {
			logger.Warn("sync processor did not stop cleanly", log.FieldError, err)
		}
	})
	if err := processor.Start(ctx); err != nil {
		return fail(err)
	}

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("message broker unavailable, polling only", log.FieldError, err)
		} else {
			defer client.Close()
			go func() {
				err := client.ConsumeChanges(ctx, func(*amqp.ChangeMessage) error {
					processor.Trigger()
					return nil
				})
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("stopped consuming change messages", log.FieldError, err)
				}
			}()
		}
	}

	fmt.Printf("Syncing %s to sheet %q, press Ctrl+C to stop\n", cfg.LedgerFile, cfg.GoogleSheetName)
	WaitForShutdown(ctx, done)
	return subcommands.ExitSuccess
}

type watchCmd struct{}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "print ledger change messages as they arrive" }
func (*watchCmd) Usage() string {
	return `watch

  Prints one line per change message. Messages are read from a private
  queue, so watch can run next to sync without taking its messages.
  Requires AMQP_URL.
`
}
func (*watchCmd) SetFlags(*flag.FlagSet) {}

func (*watchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, ok := bootstrap()
	if !ok {
		return subcommands.ExitFailure
	}
	if !cfg.AMQPEnabled() {
		fmt.Fprintln(os.Stderr, "AMQP_URL is not set")
		return subcommands.ExitUsageError
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fail(err)
	}
	defer client.Close()

	ctx, done := GracefulShutdown(ctx, logger, 5*time.Second, nil)
	err = client.WatchChanges(ctx, func(msg *amqp.ChangeMessage) error {
		fmt.Println(FormatChange(msg))
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fail(err)
	}
	WaitForShutdown(ctx, done)
	return subcommands.ExitSuccess
}

// FormatChange renders a change message as one line.
func FormatChange(msg *amqp.ChangeMessage) string {
	line := fmt.Sprintf("%s %-7s row %d", msg.Timestamp.Local().Format(time.DateTime), msg.Op, msg.Row)
	if e := msg.Entry; e != nil {
		line += fmt.Sprintf(" %s | %s | qty %d | sales %s | income %s",
			e.Platform, e.ProductName, e.OrderQuantity, e.TotalSales.String(), e.ActualIncome.String())
	}
	return line
}
