package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dwd/internal/errorhandling"
)

func newErrorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "errors",
		Short:       "Inspect error classification",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	cmd.AddCommand(newErrorsClassifyCommand())
	cmd.AddCommand(newErrorsRulesCommand())
	return cmd
}

func newErrorsClassifyCommand() *cobra.Command {
	var category string
	var details []string
	cmd := &cobra.Command{
		Use:   "classify KIND",
		Short: "Show how a failure kind is classified for retry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseDetails(details)
			if err != nil {
				return err
			}
			retryType := errorhandling.DefaultClassifier().Classify(args[0], category, parsed)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (retryable: %s, notify: %s)\n",
				args[0], retryType, yesNo(retryType.Retryable()), retryType.NotificationLevel())
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Failure category")
	cmd.Flags().StringArrayVar(&details, "detail", nil, "Detail as key=value (repeatable)")
	return cmd
}

func parseDetails(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid detail %q (want key=value)", pair)
		}
		out[key] = parseSettingValue(value)
	}
	return out, nil
}

func newErrorsRulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the classification rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rules := errorhandling.DefaultClassifier().Rules()
			rows := make([][]string, 0, len(rules))
			for i, rule := range rules {
				matcher := ""
				if rule.Match != nil {
					matcher = "details"
				}
				rows = append(rows, []string{
					fmt.Sprint(i + 1),
					rule.Name,
					rule.KindPattern,
					rule.Category,
					matcher,
					string(rule.RetryType),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Rule", "Kind", "Category", "Match", "Retry Type"},
				rows,
				[]columnAlignment{alignRight},
				shouldColorize(out),
			))
			return nil
		},
	}
}
