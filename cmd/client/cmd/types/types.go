// Package types содержит общие для команд CLI ключи контекста и хелперы вывода.
package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vetsync/internal/app/client"
)

type contextKey string

// ClientAppKey — ключ, под которым корневая команда кладёт *client.App в контекст.
const ClientAppKey contextKey = "app"

var ErrNotInitialized = errors.New("приложение не инициализировано")

func WithApp(ctx context.Context, app *client.App) context.Context {
	return context.WithValue(ctx, ClientAppKey, app)
}

// App достаёт приложение из контекста команды.
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, ErrNotInitialized
	}
	return app, nil
}

// Scoped возвращает приложение и контекст с областью текущей сессии.
func Scoped(cmd *cobra.Command) (*client.App, context.Context, error) {
	app, err := App(cmd)
	if err != nil {
		return nil, nil, err
	}
	ctx, err := app.Scoped(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return app, ctx, nil
}

// JSONOutput сообщает, запрошен ли вывод в JSON глобальным флагом --json.
func JSONOutput(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("json")
	return err == nil && v
}

func PrintJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("ошибка вывода JSON: %w", err)
	}
	return nil
}
