package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vetsync/cmd/client/cmd/types"
)

var (
	registerTenant   string
	registerPractice int64
	registerLogin    string
)

var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Зарегистрировать сотрудника",
	Long:  `Создаёт учётную запись сотрудника в филиале клиники на сервере VetSync.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		tenantID := prompt("Клиника", registerTenant)
		practiceID := registerPractice
		if practiceID <= 0 {
			practiceID, err = strconv.ParseInt(prompt("Филиал", ""), 10, 64)
			if err != nil || practiceID <= 0 {
				return fmt.Errorf("некорректный идентификатор филиала")
			}
		}
		login := prompt("Логин", registerLogin)

		password, err := readPassword("Пароль")
		if err != nil {
			return err
		}
		confirm, err := readPassword("Повторите пароль")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("пароли не совпадают")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		id, err := app.Register(ctx, tenantID, practiceID, login, password)
		if err != nil {
			return err
		}

		fmt.Println()
		color.Green("✅ Сотрудник зарегистрирован (id %d)", id)
		fmt.Println("Теперь можно войти: vetsync auth login")
		return nil
	},
}

func init() {
	RegisterCmd.Flags().StringVarP(&registerTenant, "tenant", "t", "", "идентификатор клиники")
	RegisterCmd.Flags().Int64VarP(&registerPractice, "practice", "p", 0, "идентификатор филиала")
	RegisterCmd.Flags().StringVarP(&registerLogin, "login", "l", "", "логин сотрудника")
}
