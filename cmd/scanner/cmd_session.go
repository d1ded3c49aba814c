package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flipfinder/backend/internal/domain"
	"github.com/flipfinder/backend/internal/infrastructure/proxyclient"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, key string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange subscription credentials for a proxy token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || key == "" {
				return errors.New("--email and --key are required")
			}

			proxyURL := a.resolveProxyURL()
			resp, err := proxyclient.NewClient(proxyURL, nil, a.logger).Login(cmd.Context(), email, key)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			settings := a.session.Settings()
			settings.Credentials.ProxyURL = proxyURL
			settings.Credentials.ProxyToken = resp.Token
			if err := a.session.SaveSettings(cmd.Context(), settings); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s plan, expires %s)\n",
				resp.User.Email, resp.User.Plan, resp.User.ExpiresAt.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Subscription email")
	cmd.Flags().StringVar(&key, "key", "", "Subscription key")
	return cmd
}

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change scanner settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the saved settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			printSettings(cmd.OutOrStdout(), a.session.Settings())
			return nil
		},
	}

	var (
		enabled      bool
		minProfit    float64
		showNegative bool
		llmKey       string
		token        string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change settings; only the given flags are updated",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			settings := a.session.Settings()

			if flags.Changed("enabled") {
				settings.Enabled = enabled
			}
			if flags.Changed("min-profit") {
				settings.MinProfitThreshold = minProfit
			}
			if flags.Changed("show-negative") {
				settings.ShowNegativeProfits = showNegative
			}
			if flags.Changed("llm-key") {
				settings.Credentials.LLMAPIKey = llmKey
			}
			if flags.Changed("token") {
				settings.Credentials.ProxyToken = token
			}
			if a.proxyURL != "" || (settings.Credentials.ProxyToken != "" && settings.Credentials.ProxyURL == "") {
				settings.Credentials.ProxyURL = a.resolveProxyURL()
			}

			if err := a.session.SaveSettings(cmd.Context(), settings); err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), settings)
			return nil
		},
	}
	set.Flags().BoolVar(&enabled, "enabled", true, "Enable listing analysis")
	set.Flags().Float64Var(&minProfit, "min-profit", domain.DefaultMinProfitThreshold, "Minimum profit counted as a deal")
	set.Flags().BoolVar(&showNegative, "show-negative", true, "Show listings that would sell at a loss")
	set.Flags().StringVar(&llmKey, "llm-key", "", "Language model API key for the resellability filter")
	set.Flags().StringVar(&token, "token", "", "Proxy token (normally set by login)")

	cmd.AddCommand(show, set)
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print analysis counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset {
				if err := a.session.ResetStats(cmd.Context()); err != nil {
					return err
				}
			}
			printStats(cmd.OutOrStdout(), a.session.Stats())
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Zero the counters first")
	return cmd
}

func printSettings(w io.Writer, s domain.Settings) {
	fmt.Fprintf(w, "Enabled:               %t\n", s.Enabled)
	fmt.Fprintf(w, "Min profit threshold:  $%.0f\n", s.MinProfitThreshold)
	fmt.Fprintf(w, "Show negative profits: %t\n", s.ShowNegativeProfits)
	fmt.Fprintf(w, "Proxy URL:             %s\n", orNone(s.Credentials.ProxyURL))
	fmt.Fprintf(w, "Proxy token:           %s\n", mask(s.Credentials.ProxyToken))
	fmt.Fprintf(w, "LLM API key:           %s\n", mask(s.Credentials.LLMAPIKey))
}

func printStats(w io.Writer, s domain.Stats) {
	fmt.Fprintf(w, "Listings analyzed:      %d\n", s.ListingsAnalyzed)
	fmt.Fprintf(w, "Profitable deals:       %d\n", s.ProfitableDeals)
	fmt.Fprintf(w, "Total potential profit: $%.0f\n", s.TotalPotentialProfit)
	fmt.Fprintf(w, "API calls this month:   %d / %d\n", s.APIUsageCount, domain.MonthlyAPICallLimit)
	if s.NearUsageLimit() {
		fmt.Fprintln(w, "Warning: approaching the monthly API call limit")
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// mask keeps the last four characters of a secret
func mask(secret string) string {
	if secret == "" {
		return "(none)"
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", 8) + secret[len(secret)-4:]
}
