package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/provider"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

func newProxiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxies",
		Short: "Inspect and maintain the proxy pool",
	}
	cmd.AddCommand(newProxiesRefreshCmd(), newProxiesTestCmd())
	return cmd
}

func newProxiesRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch every provider, validate the pool and print its stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			refreshed := a.RefreshProviders(cmd.Context())
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"refresh":   refreshed,
				"providers": a.Providers.Providers(),
				"stats":     a.Registry.Stats(),
			})
		},
	}
}

func newProxiesTestCmd() *cobra.Command {
	var protocol string
	cmd := &cobra.Command{
		Use:   "test host:port",
		Short: "Test one proxy without adding it to the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			proto, err := proxypool.ParseProtocol(protocol)
			if err != nil {
				return err
			}
			candidate, ok := provider.ParseCandidate(args[0], proto, proxypool.ManualTestSource)
			if !ok {
				return fmt.Errorf("invalid proxy address %q: want IPv4 host:port", args[0])
			}
			result := a.Registry.TestProxy(cmd.Context(), candidate)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"proxy":  candidate.ID(),
				"result": result,
			})
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", "http", "proxy protocol: http, https, socks4 or socks5")
	return cmd
}
