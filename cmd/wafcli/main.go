// wafcli exercises a WAF engine endpoint from the command line: submit an
// analyze probe, check a block-list key, or query tier limits.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/netshield/wafclient"
	"github.com/netshield/wafclient/internal/config"
	"github.com/netshield/wafclient/internal/observability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "wafcli",
		Short:         "Probe a WAF engine endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "wafcli.toml", "path to the TOML config")

	root.AddCommand(newAnalyzeCmd(&configPath))
	root.AddCommand(newCheckCmd(&configPath))
	root.AddCommand(newLimitsCmd(&configPath))
	return root
}

func newClient(configPath string) (*wafclient.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	creds, hint, err := wafclient.CredentialsWithHint(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	connect := cfg.ConnectString
	if connect == "" {
		connect = hint
	}
	logger := observability.InitLogger("wafcli")
	return wafclient.New(wafclient.Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		ConnectString: connect,
		Credentials:   creds,
		Logger:        &logger,
	})
}

func newAnalyzeCmd(configPath *string) *cobra.Command {
	var (
		method     string
		url        string
		remoteAddr string
		body       string
		headers    []string
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Submit request metadata and print the verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(*configPath)
			if err != nil {
				return err
			}
			defer client.Close()

			snap := wafclient.Snapshot{
				Method:     strings.ToUpper(method),
				URL:        url,
				RemoteAddr: remoteAddr,
				Headers:    parseHeaders(headers),
				Body:       []byte(body),
			}
			return printJSON(cmd, client.AnalyzeSnapshot(snap))
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", "GET", "request method")
	cmd.Flags().StringVarP(&url, "url", "u", "/", "request URI")
	cmd.Flags().StringVar(&remoteAddr, "remote-addr", "", "client address")
	cmd.Flags().StringVarP(&body, "body", "d", "", "request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header, name:value")
	return cmd
}

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check [key]",
		Short: "Check a block-list key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(*configPath)
			if err != nil {
				return err
			}
			defer client.Close()

			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return printJSON(cmd, client.CheckBlock(key))
		},
	}
}

func newLimitsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Query tier connection limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(*configPath)
			if err != nil {
				return err
			}
			defer client.Close()

			limit, ok := client.TierLimits()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no value")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), limit)
			return nil
		},
	}
}

func parseHeaders(raw []string) http.Header {
	headers := http.Header{}
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return headers
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
