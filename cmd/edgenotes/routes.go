package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/vitalvas/edgenotes/config"
	"github.com/vitalvas/edgenotes/mux"
	"github.com/vitalvas/edgenotes/server"
	"go.uber.org/zap"
)

func newRoutesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes [METHOD PATH]",
		Short: "Print the route table, or the dispatch of one request",
		Long: `Without arguments, prints every declared route in declaration order.

With a method and a path, prints the steps the router would run for that
request: middleware from the outermost level inwards, then the handlers
of the matching routes.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 args, received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			// The table only needs the stores to exist, not to hold data.
			cfg.KV.Backend = config.BackendMemory
			cfg.Images.Path = ":memory:"
			cfg.AI.Provider = config.ProviderNone

			srv, err := server.New(cmd.Context(), cfg, zap.NewNop(), server.WithRegistry(prometheus.NewRegistry()))
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()

			table := srv.Router().Table()
			if len(args) == 2 {
				return printDispatch(cmd.OutOrStdout(), table, strings.ToUpper(args[0]), args[1])
			}

			return printRoutes(cmd.OutOrStdout(), table)
		},
	}
}

func printRoutes(out io.Writer, table *mux.Table) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tMOUNT\tMIDDLEWARE\tHANDLERS")

	for _, r := range table.Routes() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", label(r.Method), r.Path, r.Mount, len(r.Middlewares), len(r.Handlers))
	}

	return w.Flush()
}

func printDispatch(out io.Writer, table *mux.Table, method, path string) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tKIND\tROUTE\tMATCHED")

	d := table.Dispatch(method, path)
	for i := 1; ; i++ {
		step, ok := d.Next()
		if !ok {
			fmt.Fprintf(w, "%d\tfallback\t-\t%s\n", i, path)
			break
		}

		kind := "middleware"
		if step.Terminal {
			kind = "handler"
		}

		route := step.Route()
		fmt.Fprintf(w, "%d\t%s\t%s %s\t%s\n", i, kind, label(route.Method), route.Path, step.Path)
	}

	return w.Flush()
}

func label(method string) string {
	if method == "" {
		return "*"
	}

	return method
}
