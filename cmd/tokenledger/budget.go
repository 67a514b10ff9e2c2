package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pario-ai/tokenledger/pkg/budget"
	"github.com/pario-ai/tokenledger/pkg/pricing"
	"github.com/pario-ai/tokenledger/pkg/tracker"
	"github.com/spf13/cobra"
)

// openEnforcer returns nil when budgets are disabled. The caller closes the tracker.
func (e *env) openEnforcer(pricingFlag string) (*budget.Enforcer, *tracker.SQLiteTracker, error) {
	if !e.cfg.Budget.Enabled {
		return nil, nil, nil
	}
	book, err := pricing.Load(e.pricingPath(pricingFlag))
	if err != nil {
		return nil, nil, err
	}
	tr, err := tracker.New(e.cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return budget.New(e.cfg.Budget.Policies, tr, book), tr, nil
}

func newBudgetCmd() *cobra.Command {
	var pricingPath string

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Compare stored spend against budget policies",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show spend vs limits for every policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			enforcer, tr, err := e.openEnforcer(pricingPath)
			if err != nil {
				return err
			}
			if enforcer == nil {
				fmt.Println("Budget enforcement is disabled.")
				return nil
			}
			defer func() { _ = tr.Close() }()

			statuses, err := enforcer.Status(cmd.Context())
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Println("No budget policies configured.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "POLICY\tSCOPE\tPERIOD\tMAX USD\tSPENT\tREMAINING\tSTATUS")
			for _, s := range statuses {
				state := "ok"
				if s.Exceeded {
					state = "EXCEEDED"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%s\n",
					s.Policy.Name, budgetScope(s.Policy.Provider, s.Policy.Model), s.Policy.Period,
					s.Policy.MaxUSD, s.SpentUSD, s.RemainingUSD, state)
			}
			return w.Flush()
		},
	}

	var provider, model string
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Exit non-zero when a policy covering provider/model is exceeded",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			enforcer, tr, err := e.openEnforcer(pricingPath)
			if err != nil {
				return err
			}
			if enforcer == nil {
				fmt.Println("Budget enforcement is disabled.")
				return nil
			}
			defer func() { _ = tr.Close() }()

			if err := enforcer.Check(cmd.Context(), provider, model); err != nil {
				return err
			}
			fmt.Printf("Within budget: %s\n", budgetScope(provider, model))
			return nil
		},
	}
	checkCmd.Flags().StringVar(&provider, "provider", "", "provider to check")
	checkCmd.Flags().StringVar(&model, "model", "", "model to check")

	cmd.PersistentFlags().StringVar(&pricingPath, "pricing", "", "pricing catalog JSON (default from config)")
	cmd.AddCommand(statusCmd, checkCmd)
	return cmd
}

func budgetScope(provider, model string) string {
	switch {
	case provider != "" && model != "":
		return provider + "/" + model
	case provider != "":
		return provider
	case model != "":
		return model
	default:
		return "*"
	}
}
