package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vetsync/cmd/client/cmd/types"
	"vetsync/internal/app/client"
)

type statusView struct {
	LoggedIn  bool      `json:"logged_in"`
	Expired   bool      `json:"expired"`
	Scope     string    `json:"scope,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Online    bool      `json:"online"`
}

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Показать текущую сессию",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		view := statusView{Online: app.Online()}
		sess, err := app.Session()
		switch {
		case err == nil:
			view.LoggedIn = true
		case errors.Is(err, client.ErrSessionExpired):
			view.Expired = true
		case !errors.Is(err, client.ErrNoSession):
			return err
		}
		if sess != nil {
			view.Scope = sess.Scope.String()
			view.ExpiresAt = sess.ExpiresAt
		}

		if types.JSONOutput(cmd) {
			return types.PrintJSON(view)
		}

		switch {
		case view.LoggedIn:
			color.Green("● Вход выполнен: %s", view.Scope)
			fmt.Printf("  Действует до: %s\n", view.ExpiresAt.Local().Format(time.DateTime))
		case view.Expired:
			color.Yellow("● Сессия истекла: %s", view.Scope)
			fmt.Println("  Локальные данные доступны, для синхронизации войдите снова")
		default:
			color.Red("● Вход не выполнен")
		}
		if view.Online {
			fmt.Println("  Сервер: доступен")
		} else {
			fmt.Println("  Сервер: недоступен (офлайн-режим)")
		}
		return nil
	},
}
