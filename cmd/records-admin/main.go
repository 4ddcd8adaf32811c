package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"wisefido-records/internal/app"
	"wisefido-records/internal/chart"
	"wisefido-records/internal/common/logger"
	mqttcommon "wisefido-records/internal/common/mqtt"
	rediscommon "wisefido-records/internal/common/redis"
	"wisefido-records/internal/config"
	"wisefido-records/internal/export"
	"wisefido-records/internal/location"
	"wisefido-records/internal/notify"
	"wisefido-records/internal/provider"
	"wisefido-records/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "records-admin",
		Short:        "Maintenance commands for the records store",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(treeCmd())
	rootCmd.AddCommand(chartCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(patientsCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(renameLocationCmd())
	rootCmd.AddCommand(resetCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// open wires the store from the environment with a console logger on stderr.
func open(ctx context.Context) (*app.App, error) {
	cfg := config.Load()
	cfg.Log.Format = "console"
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "records-admin")
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, log)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Store %s is up to date.\n", a.Config.Database.Driver)
			return nil
		},
	}
}

func treeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the location tree with patient counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			locale, _ := cmd.Flags().GetString("locale")
			level, _ := cmd.Flags().GetString("level")
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if locale == "" {
				locale = a.Config.Chart.DefaultLocale
			}
			tree, err := a.Trees.Get(cmd.Context(), locale)
			if err != nil {
				return err
			}
			switch level {
			case "":
				printTree(cmd.OutOrStdout(), tree.Root(), locale)
			case "zones":
				printNodes(cmd.OutOrStdout(), tree.Zones(), locale)
			case "tents":
				printNodes(cmd.OutOrStdout(), tree.Tents(), locale)
			default:
				return fmt.Errorf("unknown level %q", level)
			}
			return nil
		},
	}
	cmd.Flags().String("locale", "", "Locale of location names")
	cmd.Flags().String("level", "", "Only list zones or tents")
	return cmd
}

func nodeLabel(n *location.Node, locale string) string {
	if name, ok := n.Name(locale); ok {
		return name
	}
	return n.UUID()
}

func printTree(w io.Writer, n *location.Node, locale string) {
	fmt.Fprintf(w, "%s%s (%d/%d)\n", strings.Repeat("  ", n.Depth()), nodeLabel(n, locale), n.DirectPatientCount(), n.PatientCount())
	for _, c := range n.Children() {
		printTree(w, c, locale)
	}
}

func printNodes(w io.Writer, nodes []*location.Node, locale string) {
	for _, n := range nodes {
		fmt.Fprintf(w, "%s %s (%d)\n", n.UUID(), nodeLabel(n, locale), n.PatientCount())
	}
}

func patientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "List patients grouped by zone and tent",
		RunE: func(cmd *cobra.Command, args []string) error {
			locale, _ := cmd.Flags().GetString("locale")
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if locale == "" {
				locale = a.Config.Chart.DefaultLocale
			}
			tree, patients, err := a.Trees.Patients(cmd.Context(), locale)
			if err != nil {
				return err
			}
			return printPatients(cmd.OutOrStdout(), tree, patients, locale)
		},
	}
	cmd.Flags().String("locale", "", "Locale of location names")
	return cmd
}

func printPatients(w io.Writer, tree *location.Tree, patients []location.Patient, locale string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ZONE\tTENT\tPATIENT\tNAME")
	for _, p := range patients {
		zone, tent := "-", "-"
		if z := tree.ZoneOf(p.LocationUUID); z != nil {
			zone = nodeLabel(z, locale)
		}
		if t := tree.TentOf(p.LocationUUID); t != nil {
			tent = nodeLabel(t, locale)
		}
		name := strings.TrimSpace(p.GivenName + " " + p.FamilyName)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", zone, tent, p.UUID, name)
	}
	return tw.Flush()
}

func chartFlags(cmd *cobra.Command) {
	cmd.Flags().String("locale", "", "Locale of concept names")
	cmd.Flags().String("today", "", "Reference day as YYYY-MM-DD (default: now)")
}

func buildChart(cmd *cobra.Command, a *app.App, patient string) (*chart.PatientChart, error) {
	locale, _ := cmd.Flags().GetString("locale")
	if locale == "" {
		locale = a.Config.Chart.DefaultLocale
	}
	today := time.Now()
	if s, _ := cmd.Flags().GetString("today"); s != "" {
		t, err := time.ParseInLocation(time.DateOnly, s, a.Config.Chart.Location())
		if err != nil {
			return nil, fmt.Errorf("invalid --today: %w", err)
		}
		today = t
	}
	return a.Charts.Chart(cmd.Context(), patient, locale, today)
}

func chartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart <patient-uuid>",
		Short: "Print a patient chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			pc, err := buildChart(cmd, a, args[0])
			if err != nil {
				return err
			}
			return printGrid(cmd.OutOrStdout(), pc.Grid)
		},
	}
	chartFlags(cmd)
	return cmd
}

func printGrid(w io.Writer, g *chart.Grid) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{""}
	for _, c := range g.Columns() {
		header = append(header, c.Label)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i := 0; i < g.RowCount(); i++ {
		line := []string{g.Row(i).Label}
		for j := 0; j < g.ColumnCount(); j++ {
			v := g.Render(i, j)
			text := v.Text
			if text == "" && v.Hint != chart.HintNone {
				text = "x"
			}
			line = append(line, text)
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	return tw.Flush()
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <patient-uuid>",
		Short: "Write a patient chart workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			pc, err := buildChart(cmd, a, args[0])
			if err != nil {
				return err
			}
			data, err := export.GridXLSX(pc)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("chart_%s_%s.xlsx", pc.PatientUUID, pc.Grid.Today())
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	chartFlags(cmd)
	cmd.Flags().String("out", "", "Output file (default: chart_<patient>_<day>.xlsx)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Sync records from the upstream server (FEED_BASE_URL)",
		RunE: func(cmd *cobra.Command, args []string) error {
			full, _ := cmd.Flags().GetBool("full")
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Importer == nil {
				return fmt.Errorf("FEED_BASE_URL is not set")
			}
			report, err := a.Importer.Sync(cmd.Context(), full)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().Bool("full", false, "Copy reference data before observations")
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow change notifications on redis or MQTT",
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, _ := cmd.Flags().GetString("transport")
			from, _ := cmd.Flags().GetString("from")
			cfg := config.Load()
			log, err := logger.NewLogger(cfg.Log.Level, "console", "records-admin")
			if err != nil {
				return err
			}
			switch transport {
			case "redis":
				return watchRedis(cmd, cfg, log, from)
			case "mqtt":
				return watchMQTT(cmd, cfg, log)
			default:
				return fmt.Errorf("unknown transport %q", transport)
			}
		},
	}
	cmd.Flags().String("transport", "redis", "redis or mqtt")
	cmd.Flags().String("from", "$", "Redis stream ID to start after; 0 replays the stream")
	return cmd
}

func watchRedis(cmd *cobra.Command, cfg *config.Config, log *zap.Logger, from string) error {
	client := rediscommon.NewRedisClient(&cfg.Redis.RedisConfig)
	defer rediscommon.Close(client)

	ctx := cmd.Context()
	if err := rediscommon.Ping(ctx, client); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	lastID := from
	for ctx.Err() == nil {
		msgs, err := rediscommon.ReadFromStream(ctx, client, cfg.Redis.Stream, lastID, 100, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn("Failed to read change stream", zap.String("stream", cfg.Redis.Stream), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		for _, m := range msgs {
			lastID = m.ID
			fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", m.ID, m.Values["data"])
		}
	}
	return nil
}

func watchMQTT(cmd *cobra.Command, cfg *config.Config, log *zap.Logger) error {
	mqttCfg := cfg.MQTT.MQTTConfig
	mqttCfg.ClientID += "-watch"
	client, err := mqttcommon.NewClient(&mqttCfg, log)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	out := cmd.OutOrStdout()
	topic := strings.TrimSuffix(mqttCfg.TopicPrefix, "/") + "/#"
	err = client.Subscribe(topic, mqttCfg.QoS, func(topic string, payload []byte) error {
		var change notify.Change
		if err := json.Unmarshal(payload, &change); err != nil {
			return fmt.Errorf("malformed change on %s: %w", topic, err)
		}
		fmt.Fprintf(out, "%s %s\n", change.At.Format(time.RFC3339), change.Path)
		return nil
	})
	if err != nil {
		return err
	}
	<-cmd.Context().Done()
	return nil
}

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Print or export the blank chart layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			locale, _ := cmd.Flags().GetString("locale")
			out, _ := cmd.Flags().GetString("out")
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if locale == "" {
				locale = a.Config.Chart.DefaultLocale
			}
			g, err := a.Charts.Template(cmd.Context(), locale, time.Now())
			if err != nil {
				return err
			}
			if out == "" {
				return printGrid(cmd.OutOrStdout(), g)
			}
			data, err := export.GridXLSX(&chart.PatientChart{Locale: locale, Grid: g})
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().String("locale", "", "Locale of concept names")
	cmd.Flags().String("out", "", "Write a workbook instead of printing")
	return cmd
}

type routeTable interface {
	Patterns() []string
	Resolve(path string) (provider.Match, error)
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List registered resource paths and their delegate kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return printRoutes(cmd.OutOrStdout(), a.Resources)
		},
	}
}

func printRoutes(w io.Writer, routes routeTable) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range routes.Patterns() {
		m, err := routes.Resolve(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p, m.Delegate.Kind(), m.Delegate.Table().Name)
	}
	return tw.Flush()
}

func renameLocationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename-location <location-uuid> <locale> <name>",
		Short: "Set the name of a location in one locale",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			id, err := a.Resources.Insert(cmd.Context(), provider.LocationNamesPath(args[0]), store.Values{
				"locale": args[1],
				"name":   args[2],
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s (%s)\n", id, args[1])
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every record, keeping the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("refusing to delete records without --yes")
			}
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := store.Truncate(cmd.Context(), a.DB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All records deleted.")
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm deleting every record")
	return cmd
}
