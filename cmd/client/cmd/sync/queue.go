package sync

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vetsync/cmd/client/cmd/types"
)

var QueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Очередь операций синхронизации",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Счётчики операций по статусам",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		stats, err := app.QueueStats(cmd.Context())
		if err != nil {
			return err
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(stats)
		}
		fmt.Printf("Ожидают:            %d\n", stats.Pending)
		fmt.Printf("В работе:           %d\n", stats.InFlight)
		fmt.Printf("Исчерпали попытки:  %d\n", stats.Failed)
		fmt.Printf("Выполнены:          %d\n", stats.Done)
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <operation-id>",
	Short: "Вернуть операцию, исчерпавшую попытки, в очередь",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("некорректный идентификатор операции: %s", args[0])
		}
		if err := app.RetryOperation(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("✓ Операция %d поставлена в очередь\n", id)
		return nil
	},
}

var purgeOlderThan time.Duration

var queuePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Удалить выполненные операции",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		n, err := app.PurgeQueue(cmd.Context(), purgeOlderThan)
		if err != nil {
			return err
		}
		fmt.Printf("Удалено операций: %d\n", n)
		return nil
	},
}

func init() {
	queuePurgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 0, "возраст операций (по умолчанию из конфигурации)")
	QueueCmd.AddCommand(queueStatsCmd, queueRetryCmd, queuePurgeCmd)
}
