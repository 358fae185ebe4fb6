package sync

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vetsync/cmd/client/cmd/types"
	"vetsync/internal/app/client"
	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/queue"
	"vetsync/internal/domain/record"
	domain "vetsync/internal/domain/sync"
)

var (
	syncStatus  bool
	fullRefresh bool
	syncTimeout time.Duration
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизировать данные с сервером",
	Long: `Отправляет накопленные операции на сервер и загружает изменения.

С флагом --refresh выполняется полное обновление: все записи клиники
загружаются заново, локальные несинхронизированные изменения сохраняются.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		if syncStatus {
			return showStatus(cmd, app)
		}

		if !app.Online() {
			color.Yellow("⚠️  Сервер недоступен, операции остаются в очереди")
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
		defer cancel()

		var result *domain.Result
		if fullRefresh {
			fmt.Println("=== Полное обновление ===")
			result, err = app.Refresh(ctx)
		} else {
			fmt.Println("=== Синхронизация данных ===")
			result, err = app.SyncNow(ctx)
		}
		if result == nil && err == nil {
			fmt.Println("Синхронизация уже выполняется")
			return nil
		}
		if result != nil {
			if types.JSONOutput(cmd) {
				if perr := types.PrintJSON(result); perr != nil {
					return perr
				}
			} else {
				printResult(result)
			}
		}
		if err != nil {
			return fmt.Errorf("ошибка синхронизации: %w", err)
		}
		return nil
	},
}

func printResult(r *domain.Result) {
	switch r.State {
	case domain.StateSuccess:
		color.Green("✅ Синхронизация завершена")
	case domain.StatePartialSuccess:
		color.Yellow("⚠️  Синхронизация завершена частично")
	case domain.StateCancelled:
		color.Yellow("⚠️  Синхронизация прервана")
	default:
		color.Red("✗ Синхронизация завершилась ошибкой")
	}

	fmt.Printf("  Операций: %d, отправлено: %d, ошибок: %d, конфликтов: %d\n",
		r.Total, r.Successful, r.Failed, r.Conflicts)
	if r.Deferred > 0 {
		fmt.Printf("  Отложено до синхронизации связанных записей: %d\n", r.Deferred)
	}
	fmt.Printf("  Загружено с сервера: %d\n", r.Pulled)
	fmt.Printf("  Длительность: %s\n", r.Duration.Round(time.Millisecond))

	for _, e := range r.Errors {
		mark := "повтор"
		if e.Terminal {
			mark = "отклонено"
		}
		fmt.Printf("  %s %s %s/%s: %s\n", color.RedString("•"), e.Operation, e.EntityType, e.EntityID, e.Error)
		fmt.Printf("    (%s)\n", mark)
	}
	if r.Conflicts > 0 {
		fmt.Println("Просмотреть конфликты: vetsync conflicts list")
	}
}

type statusView struct {
	Online    bool                          `json:"online"`
	Engine    domain.Status                 `json:"engine"`
	Queue     queue.Stats                   `json:"queue"`
	Records   map[entity.Type]record.Counts `json:"records"`
	Conflicts int                           `json:"conflicts"`
}

func showStatus(cmd *cobra.Command, app *client.App) error {
	ctx := cmd.Context()
	view := statusView{Online: app.Online(), Engine: app.SyncStatus()}

	var err error
	if view.Queue, err = app.QueueStats(ctx); err != nil {
		return err
	}
	if view.Records, err = app.Counts(ctx); err != nil {
		return err
	}
	conflicts, err := app.Conflicts(ctx)
	if err != nil {
		return err
	}
	view.Conflicts = len(conflicts)

	if types.JSONOutput(cmd) {
		return types.PrintJSON(view)
	}

	fmt.Println("=== Статус синхронизации ===")
	if view.Online {
		color.Green("● Сервер доступен")
	} else {
		color.Yellow("● Офлайн-режим")
	}
	if !view.Engine.LastSyncAt.IsZero() {
		fmt.Printf("Последняя синхронизация: %s\n", view.Engine.LastSyncAt.Local().Format(time.DateTime))
	}
	fmt.Printf("Очередь: ожидают %d, в работе %d, исчерпали попытки %d, выполнены %d\n",
		view.Queue.Pending, view.Queue.InFlight, view.Queue.Failed, view.Queue.Done)
	if view.Conflicts > 0 {
		color.Yellow("Неразрешённых конфликтов: %d", view.Conflicts)
	}

	fmt.Println()
	return printCounts(view.Records)
}

func printCounts(counts map[entity.Type]record.Counts) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ТИП\tОЖИДАЮТ\tСИНХРОНИЗИРОВАНЫ\tОШИБКИ")
	for _, typ := range entity.AllTypes() {
		c := counts[typ]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", typ.DisplayName(), c.Pending, c.Synced, c.Error)
	}
	return w.Flush()
}

// CountsCmd показывает счётчики записей по статусам синхронизации.
var CountsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Счётчики записей по статусам синхронизации",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		counts, err := app.Counts(cmd.Context())
		if err != nil {
			return err
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(counts)
		}
		return printCounts(counts)
	},
}

func init() {
	SyncCmd.Flags().BoolVarP(&syncStatus, "status", "s", false, "показать статус синхронизации")
	SyncCmd.Flags().BoolVar(&fullRefresh, "refresh", false, "полное обновление с сервера")
	SyncCmd.Flags().DurationVar(&syncTimeout, "timeout", 5*time.Minute, "максимальная длительность прохода")
}
