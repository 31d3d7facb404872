package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iudanet/minesync/internal/client/queue"
	"github.com/iudanet/minesync/internal/models"
)

// NewDepositCommand меняет баланс игрока на delta
func NewDepositCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <delta>",
		Short: "Change the balance by delta (negative to spend)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := parseAmount("delta", args[0])
			if err != nil {
				return err
			}

			return withSession(cmd.Context(), opts, func(a *app) error {
				if _, err := a.load(cmd.Context()); err != nil {
					return err
				}
				res, err := a.session.Deposit(cmd.Context(), delta)
				if err != nil {
					return err
				}
				a.printQueued(res)
				return a.printBalance()
			})
		},
	}
}

// NewStakeCommand группа команд стейкинга
func NewStakeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Create, update and list stakes",
	}
	cmd.AddCommand(newStakeCreateCommand(opts))
	cmd.AddCommand(newStakeUpdateCommand(opts))
	cmd.AddCommand(newStakeListCommand(opts))
	return cmd
}

func newStakeCreateCommand(opts *RootOptions) *cobra.Command {
	var (
		amount   float64
		rate     float64
		lockDays int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Lock part of the balance in a new stake",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(a *app) error {
				if _, err := a.load(cmd.Context()); err != nil {
					return err
				}
				stakeID, res, err := a.session.CreateStake(cmd.Context(), amount, rate, lockDays)
				if err != nil {
					return err
				}
				a.io.Printf("Stake %s created\n", stakeID)
				a.printQueued(res)
				return a.printBalance()
			})
		},
	}

	cmd.Flags().Float64Var(&amount, "amount", 0, "amount to stake")
	cmd.Flags().Float64Var(&rate, "rate", 0.1, "annual reward rate (0.12 = 12%)")
	cmd.Flags().IntVar(&lockDays, "lock-days", 30, "lock period in days")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newStakeUpdateCommand(opts *RootOptions) *cobra.Command {
	var (
		rewards float64
		status  string
	)

	cmd := &cobra.Command{
		Use:   "update <stake-id>",
		Short: "Update accumulated rewards or status of a stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rewardsPtr *float64
			if cmd.Flags().Changed("rewards") {
				rewardsPtr = &rewards
			}
			if rewardsPtr == nil && status == "" {
				return fmt.Errorf("nothing to update: set --rewards or --status")
			}

			return withSession(cmd.Context(), opts, func(a *app) error {
				if _, err := a.load(cmd.Context()); err != nil {
					return err
				}
				res, err := a.session.UpdateStake(cmd.Context(), args[0], rewardsPtr, models.StakeStatus(status))
				if err != nil {
					return err
				}
				a.printQueued(res)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&rewards, "rewards", 0, "accumulated rewards")
	cmd.Flags().StringVar(&status, "status", "", "stake status (active|completed|cancelled)")

	return cmd
}

func newStakeListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stakes of the current snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(a *app) error {
				if _, err := a.load(cmd.Context()); err != nil {
					return err
				}
				snap, err := a.session.Snapshot()
				if err != nil {
					return err
				}
				if len(snap.Stakes) == 0 {
					a.io.Println("No stakes")
					return nil
				}
				for _, st := range snap.Stakes {
					a.io.Printf("%s  %-9s  amount %.2f  rate %.4f  rewards %.2f  claimed %.2f  lock %dd\n",
						st.ID, st.Status, st.Amount, st.Rate, st.AccumulatedRewards, st.ClaimedTotal, st.LockDays)
				}
				return nil
			})
		},
	}
}

// NewClaimCommand переводит награду со стейка на баланс
func NewClaimCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <stake-id> <amount>",
		Short: "Claim a reward from a stake",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}

			return withSession(cmd.Context(), opts, func(a *app) error {
				if _, err := a.load(cmd.Context()); err != nil {
					return err
				}
				res, err := a.session.ClaimReward(cmd.Context(), args[0], amount)
				if err != nil {
					return err
				}
				a.printQueued(res)
				return a.printBalance()
			})
		},
	}
}

// NewSynergyCommand устанавливает множитель синергии
func NewSynergyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "synergy <name> <multiplier>",
		Short: "Set a synergy multiplier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mult, err := parseAmount("multiplier", args[1])
			if err != nil {
				return err
			}

			return withSession(cmd.Context(), opts, func(a *app) error {
				if _, err := a.load(cmd.Context()); err != nil {
					return err
				}
				res, err := a.session.SetSynergy(cmd.Context(), args[0], mult)
				if err != nil {
					return err
				}
				a.printQueued(res)
				return nil
			})
		},
	}
}

func parseAmount(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

func (a *app) printQueued(res queue.EnqueueResult) {
	a.io.Printf("Queued operation %s\n", res.ID)
	if res.Evicted > 0 {
		a.io.Printf("Queue full: %d oldest operations evicted\n", res.Evicted)
	}
}

func (a *app) printBalance() error {
	snap, err := a.session.Snapshot()
	if err != nil {
		return err
	}
	a.io.Printf("Balance: %.2f (total earned %.2f)\n", snap.Balance, snap.TotalEarned)
	return nil
}
