package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wrdsquery/internal/bus"
	"wrdsquery/internal/catalog"
	"wrdsquery/internal/config"
	"wrdsquery/internal/llm"
	"wrdsquery/internal/logging"
	"wrdsquery/internal/pipeline"
	"wrdsquery/internal/query"
	"wrdsquery/internal/storage"
	"wrdsquery/internal/types"
	"wrdsquery/internal/validate"
	"wrdsquery/internal/warehouse"
)

var (
	// Global flags
	configPath string
	verbose    bool
	useBus     bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wrdsquery",
	Short: "wrdsquery - natural language queries against the WRDS warehouse",
	Long: `wrdsquery translates natural language requests for financial data into
SQL against the WRDS (Wharton Research Data Services) warehouse, validates
the results, and persists them to a local store plus CSV exports.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// queryCmd processes one natural-language request end to end
var queryCmd = &cobra.Command{
	Use:   "query [request]",
	Short: "Run a natural language data request through the pipeline",
	Long: `Processes a natural language request through the full pipeline:
  1. Identify relevant warehouse tables from the schema catalog
  2. Construct and execute SQL against the warehouse
  3. Validate the returned rows against the request
  4. Persist provenance and typed rows, export raw rows to CSV

Example:
  wrdsquery query "Get daily stock prices for AAPL from 2022-01-03 to 2022-01-07"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

// tablesCmd lists the known warehouse tables
var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the warehouse tables known to the schema catalog",
	RunE:  listTables,
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	text := strings.Join(args, " ")

	client, err := llm.NewFromConfig(cfg.LLM, cfg.LLMTimeout(), logger)
	if err != nil {
		return err
	}

	wh := warehouse.NewPostgres(cfg.Warehouse, logger)
	if err := wh.Connect(ctx); err != nil {
		// Execution will report the missing connection in-band; the run
		// still exercises construction and validation.
		logger.Warn("warehouse unavailable", zap.Error(err))
	}
	defer wh.Close()

	store, err := storage.Open(cfg.Storage.DatabasePath, cfg.Storage.ExportDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	cat := catalog.Load(cfg.Catalog.SnapshotPath, client, logger)
	builder := query.NewBuilder(client, wh, logger)
	validator := validate.New(client, logger)

	var response *types.Response
	if useBus {
		response = runOverBus(ctx, cat, builder, validator, text)
	} else {
		orch := pipeline.New(cat, builder, validator, store,
			cfg.Pipeline.MaxIterations, cfg.Pipeline.BudgetDuration(), logger)
		response = orch.Run(ctx, text)
	}

	printResponse(response)
	if !response.Success {
		return fmt.Errorf("request failed: %s", response.Error)
	}
	return nil
}

// runOverBus routes the request through the agent message bus instead of
// direct calls. The execution response is addressed to the validator, whose
// annotated verdict flows back into the builder's snapshot cache.
func runOverBus(ctx context.Context, cat *catalog.Catalog, builder *query.Builder, validator *validate.Validator, text string) *types.Response {
	b := bus.New(logger)
	b.Connect(catalog.NewAgent(cat))
	b.Connect(query.NewAgent(builder))
	b.Connect(validate.NewAgent(validator))

	id := b.Send(ctx, types.Message{
		Sender:   validate.AgentName,
		Receiver: query.AgentName,
		Kind:     types.MessageRequest,
		Payload: types.Payload{
			Kind:     types.PayloadRawQuery,
			RawQuery: &types.RawQuery{Text: text},
		},
	})
	if id == "" {
		return types.ErrorResponse("message bus rejected the request")
	}

	snap, ok := builder.LastResults()
	if !ok || snap.Result == nil {
		return types.ErrorResponse("no results produced for request")
	}
	if snap.Result.Err != "" {
		return &types.Response{
			SQL:         snap.SQL,
			Explanation: snap.Explanation,
			Error:       snap.Result.Err,
		}
	}

	sample := snap.Result.Rows
	if len(sample) > 5 {
		sample = sample[:5]
	}
	return &types.Response{
		Success:     true,
		SQL:         snap.SQL,
		Explanation: snap.Explanation,
		RowCount:    snap.Result.RowCount,
		Columns:     snap.Result.Columns,
		Sample:      sample,
	}
}

func printResponse(response *types.Response) {
	if response.SQL != "" {
		fmt.Println("SQL:")
		fmt.Println("  " + strings.ReplaceAll(response.SQL, "\n", "\n  "))
	}
	if response.Explanation != "" {
		fmt.Println("Explanation:")
		fmt.Println("  " + response.Explanation)
	}

	if !response.Success {
		fmt.Printf("Error: %s\n", response.Error)
		return
	}

	fmt.Printf("Rows: %d\n", response.RowCount)
	if len(response.Sample) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		header := table.Row{}
		for _, col := range response.Columns {
			header = append(header, col)
		}
		t.AppendHeader(header)
		for _, row := range response.Sample {
			r := table.Row{}
			for _, col := range response.Columns {
				r = append(r, row[col])
			}
			t.AppendRow(r)
		}
		t.Render()
	}

	if response.Location != nil {
		if response.Location.CSVPath != "" {
			fmt.Printf("CSV export: %s\n", response.Location.CSVPath)
		}
		if response.Location.DatabasePath != "" {
			fmt.Printf("Stored in: %s (query id %d)\n",
				response.Location.DatabasePath, response.Location.QueryID)
		}
	}
}

func listTables(cmd *cobra.Command, args []string) error {
	client, err := llm.NewFromConfig(cfg.LLM, cfg.LLMTimeout(), logger)
	if err != nil {
		return err
	}
	cat := catalog.Load(cfg.Catalog.SnapshotPath, client, logger)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Table", "Description", "Primary Keys"})
	for _, name := range cat.AllTables() {
		info, _ := cat.TableInfo(name)
		t.AppendRow(table.Row{name, info.Description, strings.Join(info.PrimaryKeys, ", ")})
	}
	t.Render()
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "wrdsquery.yaml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	queryCmd.Flags().BoolVar(&useBus, "bus", false, "route the request through the agent message bus")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(tablesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
