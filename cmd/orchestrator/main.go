package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/whyando/spacetraders/internal/adapters/api"
	"github.com/whyando/spacetraders/internal/adapters/events"
	"github.com/whyando/spacetraders/internal/adapters/persistence"
	"github.com/whyando/spacetraders/internal/application/agent"
	applogistics "github.com/whyando/spacetraders/internal/application/logistics"
	"github.com/whyando/spacetraders/internal/application/survey"
	"github.com/whyando/spacetraders/internal/application/universe"
	"github.com/whyando/spacetraders/internal/domain/ledger"
	"github.com/whyando/spacetraders/internal/infrastructure/config"
	"github.com/whyando/spacetraders/internal/infrastructure/database"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand creates the orchestrator's root command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Autonomous SpaceTraders fleet orchestrator",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newStatusCommand())
	return rootCmd
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the fleet daemon until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, config.MustLoad())
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the game server status and reset date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.MustLoad()
			client := api.NewClient(cfg.API.BaseURL, nil)
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("status: %s\nreset date: %s\n", status.Status, status.ResetDate)
			return nil
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	client := api.NewClient(cfg.API.BaseURL, nil)

	status, err := client.WaitForAPI(ctx)
	if err != nil {
		return fmt.Errorf("api never became available: %w", err)
	}
	sliceID := cfg.Database.ResolveSchema(status.ResetDate)
	client.SetSliceID(sliceID)
	log.Printf("[main] server reset date %s, slice %q", status.ResetDate, sliceID)

	if cfg.Kafka.Enabled() {
		interceptor, err := events.NewKafkaInterceptor(cfg.Kafka.URL)
		if err != nil {
			return fmt.Errorf("failed to start kafka interceptor: %w", err)
		}
		defer interceptor.Close()
		client.AddInterceptor(interceptor)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	store := persistence.NewKVStore(db)

	token, err := obtainToken(ctx, cfg, client, store)
	if err != nil {
		return err
	}
	client.SetToken(token)

	agentData, err := client.GetAgent(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch agent: %w", err)
	}
	ships, err := client.GetShips(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch fleet: %w", err)
	}
	log.Printf("[main] agent %s: %d credits, %d ships", agentData.Symbol, agentData.Credits, len(ships))

	u := universe.New(client, nil)
	if err := u.LoadGalaxy(ctx); err != nil {
		return err
	}
	startSystem := agentData.Headquarters.System()
	if err := u.EnsureSystemLoaded(ctx, startSystem); err != nil {
		return err
	}

	creditLedger := ledger.NewLedger()

	tasks := applogistics.NewManager(applogistics.ManagerConfig{
		System:              startSystem,
		IsStartSystem:       true,
		MinProfit:           cfg.Trading.MinProfit,
		ImportVolumeCaps:    cfg.Trading.ImportVolumeCaps,
		NoGateMode:          cfg.Agent.NoGateMode,
		DisableTradingTasks: cfg.Debug.DisableTradingTasks,
	}, u, creditLedger, store, nil, nil)
	if err := tasks.Load(ctx); err != nil {
		return err
	}

	surveys := survey.NewManager(persistence.NewSurveyRepository(db), nil)
	if err := surveys.Load(ctx); err != nil {
		return err
	}

	controller := agent.NewController(cfg, client, u, creditLedger, store, tasks, surveys, *agentData, ships, nil)
	return controller.Run(ctx)
}

// obtainToken loads the persisted agent token or registers a new agent.
// With no faction configured, a random recruiting faction is picked.
func obtainToken(ctx context.Context, cfg *config.Config, client *api.Client, store *persistence.KVStoreGORM) (string, error) {
	tokenKey := "agent_token/" + cfg.Agent.Callsign
	token, ok, err := persistence.GetValue[string](ctx, store, tokenKey)
	if err != nil {
		return "", err
	}
	if ok {
		return token, nil
	}

	faction := cfg.Agent.Faction
	if faction == "" {
		factions, err := client.GetFactions(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to list factions: %w", err)
		}
		var recruiting []string
		for _, f := range factions {
			if f.IsRecruiting {
				recruiting = append(recruiting, f.Symbol)
			}
		}
		if len(recruiting) == 0 {
			return "", fmt.Errorf("no recruiting faction available")
		}
		faction = recruiting[rand.Intn(len(recruiting))]
	}

	result, err := client.Register(ctx, cfg.Agent.Callsign, faction)
	if err != nil {
		return "", fmt.Errorf("failed to register agent %s: %w", cfg.Agent.Callsign, err)
	}
	log.Printf("[main] registered agent %s with faction %s", cfg.Agent.Callsign, faction)
	if err := persistence.SetValue(ctx, store, tokenKey, result.Token); err != nil {
		return "", err
	}
	return result.Token, nil
}
