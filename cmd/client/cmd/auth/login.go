package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vetsync/cmd/client/cmd/types"
)

var (
	loginTenant string
	loginName   string
	skipSync    bool
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти в систему",
	Long: `Аутентификация сотрудника клиники на сервере VetSync.

Токен и область (клиника, филиал, сотрудник) сохраняются локально.
Все последующие операции работают в разделе этой области.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		tenantID := prompt("Клиника", loginTenant)
		login := prompt("Логин", loginName)
		password, err := readPassword("Пароль")
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		sess, err := app.Login(ctx, tenantID, login, password)
		if err != nil {
			return err
		}

		fmt.Println()
		color.Green("✅ Вход выполнен: %s", sess.Scope.String())
		fmt.Printf("Сессия действительна до %s\n", sess.ExpiresAt.Local().Format(time.DateTime))

		if skipSync {
			return nil
		}

		fmt.Println("Синхронизация данных...")
		result, err := app.SyncNow(ctx)
		switch {
		case err != nil:
			color.Yellow("⚠️  Ошибка синхронизации: %v", err)
			fmt.Println("Можно продолжать работу в офлайн-режиме")
		case result == nil:
			fmt.Println("Синхронизация уже выполняется")
		case result.Failed > 0 || result.Conflicts > 0:
			color.Yellow("⚠️  Синхронизация завершена: ошибок %d, конфликтов %d", result.Failed, result.Conflicts)
		default:
			fmt.Println("✓ Данные синхронизированы")
		}
		return nil
	},
}

func init() {
	LoginCmd.Flags().StringVarP(&loginTenant, "tenant", "t", "", "идентификатор клиники")
	LoginCmd.Flags().StringVarP(&loginName, "login", "l", "", "логин сотрудника")
	LoginCmd.Flags().BoolVar(&skipSync, "no-sync", false, "не синхронизировать после входа")
}
