package sync

import (
	"fmt"

	"github.com/spf13/cobra"

	"vetsync/cmd/client/cmd/types"
)

var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Фоновая синхронизация",
	Long: `Запускает монитор сети и периодическую синхронизацию до Ctrl+C.

Проход запускается по таймеру, при появлении сети и после полного обновления
по расписанию.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		fmt.Println("Фоновая синхронизация запущена. Для остановки нажмите Ctrl+C")
		return app.Run(cmd.Context())
	},
}
