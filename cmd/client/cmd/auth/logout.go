package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	"vetsync/cmd/client/cmd/types"
)

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Выйти из системы",
	Long: `Отзывает токен на сервере и удаляет локальную сессию.

Локальные записи и очередь операций сохраняются и будут отправлены
после следующего входа в ту же клинику.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if err := app.Logout(cmd.Context()); err != nil {
			return fmt.Errorf("ошибка выхода: %w", err)
		}
		fmt.Println("✓ Сессия завершена")
		return nil
	},
}
