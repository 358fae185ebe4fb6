package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vetsync/cmd/client/cmd/types"
	"vetsync/internal/domain/conflict"
	"vetsync/internal/domain/entity"
)

var ConflictsCmd = &cobra.Command{
	Use:     "conflicts",
	Aliases: []string{"conflict"},
	Short:   "Конфликты синхронизации",
	Long: `Просмотр и разрешение конфликтов между локальными изменениями и версией сервера.

Стратегии разрешения:
  local   - отправить локальную версию поверх серверной
  remote  - принять версию сервера, отбросив локальные изменения
  merge   - отправить объединённую версию (--data или --file)
  manual  - отметить конфликт разрешённым без изменения записи`,
}

var conflictsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Неразрешённые конфликты",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		list, err := app.Conflicts(cmd.Context())
		if err != nil {
			return err
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(list)
		}
		if len(list) == 0 {
			color.Green("✓ Конфликтов нет")
			return nil
		}
		return printConflicts(list)
	},
}

var (
	mergeData string
	mergeFile string
)

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id> <local|remote|merge|manual>",
	Short: "Разрешить конфликт",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		strategy, err := conflict.ParseStrategy(args[1])
		if err != nil {
			return err
		}

		var merged []byte
		if strategy == conflict.StrategyMerge {
			if merged, err = mergePayload(); err != nil {
				return err
			}
		}

		c, err := app.ResolveConflict(cmd.Context(), args[0], strategy, merged)
		if err != nil {
			return fmt.Errorf("ошибка разрешения конфликта: %w", err)
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(c)
		}
		color.Green("✓ Конфликт %s разрешён (%s)", c.ID, strategy)
		return nil
	},
}

func mergePayload() ([]byte, error) {
	var raw []byte
	var err error
	switch {
	case mergeData != "":
		raw = []byte(mergeData)
	case mergeFile != "":
		raw, err = os.ReadFile(mergeFile)
	default:
		return nil, fmt.Errorf("для стратегии merge укажите --data или --file")
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения данных: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("данные не являются корректным JSON")
	}
	return raw, nil
}

var bulkAll bool

var conflictsBulkCmd = &cobra.Command{
	Use:   "bulk <local|remote|manual> [conflict-id...]",
	Short: "Разрешить несколько конфликтов одной стратегией",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		strategy, err := conflict.ParseStrategy(args[0])
		if err != nil {
			return err
		}

		ids := args[1:]
		if bulkAll {
			list, err := app.Conflicts(cmd.Context())
			if err != nil {
				return err
			}
			ids = nil
			for _, c := range list {
				ids = append(ids, c.ID)
			}
		}
		if len(ids) == 0 {
			return fmt.Errorf("не указаны конфликты: передайте идентификаторы или --all")
		}

		resolved, err := app.BulkResolveConflicts(cmd.Context(), ids, strategy)
		if types.JSONOutput(cmd) && resolved != nil {
			if perr := types.PrintJSON(resolved); perr != nil {
				return perr
			}
		} else {
			fmt.Printf("Разрешено конфликтов: %d из %d\n", len(resolved), len(ids))
		}
		if err != nil {
			return fmt.Errorf("ошибка разрешения конфликтов: %w", err)
		}
		return nil
	},
}

var conflictsHistoryCmd = &cobra.Command{
	Use:   "history <type> <entity-id>",
	Short: "История конфликтов записи",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		typ := entity.Type(args[0])
		if err := typ.Validate(); err != nil {
			return err
		}
		list, err := app.ConflictHistory(cmd.Context(), typ, args[1])
		if err != nil {
			return err
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(list)
		}
		if len(list) == 0 {
			fmt.Println("Конфликтов по записи не было")
			return nil
		}
		return printConflicts(list)
	},
}

func printConflicts(list []*conflict.Conflict) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tТИП\tЗАПИСЬ\tВЕРСИЯ СЕРВЕРА\tОБНАРУЖЕН\tРЕШЕНИЕ")
	for _, c := range list {
		var remoteVersion int64
		if c.RemoteVersion != nil {
			remoteVersion = c.RemoteVersion.Version
		}
		resolution := color.YellowString("не разрешён")
		if c.Resolution != nil {
			resolution = string(*c.Resolution)
			if c.ResolvedAt != nil {
				resolution += " " + c.ResolvedAt.Local().Format(time.DateTime)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			c.ID,
			c.EntityType.DisplayName(),
			c.EntityID,
			remoteVersion,
			c.DetectedAt.Local().Format(time.DateTime),
			resolution,
		)
	}
	return w.Flush()
}

func init() {
	conflictsResolveCmd.Flags().StringVarP(&mergeData, "data", "d", "", "объединённая версия записи в формате JSON")
	conflictsResolveCmd.Flags().StringVarP(&mergeFile, "file", "f", "", "файл с объединённой версией записи")
	conflictsBulkCmd.Flags().BoolVar(&bulkAll, "all", false, "разрешить все неразрешённые конфликты")

	ConflictsCmd.AddCommand(conflictsListCmd, conflictsResolveCmd, conflictsBulkCmd, conflictsHistoryCmd)
}
