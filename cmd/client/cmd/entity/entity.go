// Package entity строит команды CRUD для каждого типа записей клиники.
package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vetsync/cmd/client/cmd/types"
	"vetsync/internal/app/client/facade"
	domain "vetsync/internal/domain/entity"
	"vetsync/internal/domain/record"
)

// resource описывает команды одного типа записей.
type resource[T any, P interface {
	*T
	domain.Payload
}] struct {
	use     string
	aliases []string
	pick    func(*facade.Set) *facade.Facade[T, P]
	columns []string
	row     func(*T) []string
}

func (r resource[T, P]) command() *cobra.Command {
	parent := &cobra.Command{
		Use:     r.use,
		Aliases: r.aliases,
		Short:   "Записи: " + r.title(),
	}
	parent.AddCommand(r.create(), r.update(), r.patch(), r.remove(), r.get(), r.list())
	return parent
}

func (r resource[T, P]) title() string {
	var zero T
	return P(&zero).EntityType().DisplayName()
}

// facadeFor возвращает фасад типа и контекст с областью сессии.
func (r resource[T, P]) facadeFor(cmd *cobra.Command) (*facade.Facade[T, P], context.Context, error) {
	app, ctx, err := types.Scoped(cmd)
	if err != nil {
		return nil, nil, err
	}
	return r.pick(app.Facades()), ctx, nil
}

func (r resource[T, P]) create() *cobra.Command {
	var in input
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Создать запись",
		Long:  "Создаёт запись локально и ставит её в очередь на отправку. Данные передаются JSON через --data или --file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, ctx, err := r.facadeFor(cmd)
			if err != nil {
				return err
			}
			var v T
			if err := in.decode(&v); err != nil {
				return err
			}
			e, err := f.Create(ctx, v)
			if err != nil {
				return err
			}
			return r.printOne(cmd, e)
		},
	}
	in.bind(cmd)
	return cmd
}

func (r resource[T, P]) update() *cobra.Command {
	var in input
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Заменить данные записи",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ctx, err := r.facadeFor(cmd)
			if err != nil {
				return err
			}
			var v T
			if err := in.decode(&v); err != nil {
				return err
			}
			e, err := f.Update(ctx, args[0], v)
			if err != nil {
				return err
			}
			return r.printOne(cmd, e)
		},
	}
	in.bind(cmd)
	return cmd
}

func (r resource[T, P]) patch() *cobra.Command {
	var in input
	cmd := &cobra.Command{
		Use:   "patch <id>",
		Short: "Изменить отдельные поля записи",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ctx, err := r.facadeFor(cmd)
			if err != nil {
				return err
			}
			raw, err := in.read()
			if err != nil {
				return err
			}
			e, err := f.Patch(ctx, args[0], raw)
			if err != nil {
				return err
			}
			return r.printOne(cmd, e)
		},
	}
	in.bind(cmd)
	return cmd
}

func (r resource[T, P]) remove() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Удалить запись",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ctx, err := r.facadeFor(cmd)
			if err != nil {
				return err
			}
			if err := f.Delete(ctx, args[0]); err != nil {
				return err
			}
			if !types.JSONOutput(cmd) {
				fmt.Printf("✓ Запись %s удалена\n", args[0])
			}
			return nil
		},
	}
}

func (r resource[T, P]) get() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Показать запись",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ctx, err := r.facadeFor(cmd)
			if err != nil {
				return err
			}
			e, err := f.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return r.printOne(cmd, e)
		},
	}
}

func (r resource[T, P]) list() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Список записей",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, ctx, err := r.facadeFor(cmd)
			if err != nil {
				return err
			}
			items, err := f.List(ctx)
			if err != nil {
				return err
			}
			if types.JSONOutput(cmd) {
				return types.PrintJSON(items)
			}

			if len(items) == 0 {
				fmt.Println("Записей нет")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			header := append([]string{"ID"}, r.columns...)
			header = append(header, "СТАТУС", "ИЗМЕНЕНО")
			fmt.Fprintln(w, strings.Join(header, "\t"))
			for _, e := range items {
				cols := append([]string{e.ID}, r.row(&e.Data)...)
				cols = append(cols, statusLabel(e.Meta), e.Meta.LastModified.Local().Format(time.DateTime))
				fmt.Fprintln(w, strings.Join(cols, "\t"))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			counts, err := f.Counts(ctx)
			if err != nil {
				return err
			}
			fmt.Println()
			printCounts(os.Stdout, counts)
			return nil
		},
	}
}

func (r resource[T, P]) printOne(cmd *cobra.Command, e *facade.Entity[T]) error {
	if types.JSONOutput(cmd) {
		return types.PrintJSON(e)
	}

	data, err := json.MarshalIndent(e.Data, "  ", "  ")
	if err != nil {
		return fmt.Errorf("ошибка форматирования записи: %w", err)
	}
	fmt.Printf("%s %s\n", color.New(color.Bold).Sprint(r.title()), e.ID)
	fmt.Printf("  Статус: %s\n", statusLabel(e.Meta))
	fmt.Printf("  Изменено: %s\n", e.Meta.LastModified.Local().Format(time.DateTime))
	if e.Meta.BaseVersion > 0 {
		fmt.Printf("  Версия сервера: %d\n", e.Meta.BaseVersion)
	}
	if e.Meta.LastError != "" {
		fmt.Printf("  Ошибка: %s\n", color.RedString(e.Meta.LastError))
	}
	fmt.Printf("  %s\n", data)
	return nil
}

func statusLabel(m record.Meta) string {
	switch m.SyncStatus {
	case record.StatusSynced:
		return color.GreenString("синхронизирована")
	case record.StatusPending:
		return color.YellowString("ожидает отправки")
	case record.StatusError:
		return color.RedString("ошибка")
	default:
		return string(m.SyncStatus)
	}
}

func printCounts(w io.Writer, c record.Counts) {
	fmt.Fprintf(w, "Ожидают: %d, синхронизированы: %d, с ошибкой: %d\n", c.Pending, c.Synced, c.Error)
}

// input читает JSON записи из флага --data или файла --file ("-" — stdin).
type input struct {
	data string
	file string
}

func (in *input) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&in.data, "data", "d", "", "данные записи в формате JSON")
	cmd.Flags().StringVarP(&in.file, "file", "f", "", "файл с данными записи (- для stdin)")
	cmd.MarkFlagsMutuallyExclusive("data", "file")
	cmd.MarkFlagsOneRequired("data", "file")
}

func (in *input) read() (json.RawMessage, error) {
	var raw []byte
	var err error
	switch {
	case in.data != "":
		raw = []byte(in.data)
	case in.file == "-":
		raw, err = io.ReadAll(os.Stdin)
	default:
		raw, err = os.ReadFile(in.file)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения данных: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("данные не являются корректным JSON")
	}
	return raw, nil
}

func (in *input) decode(v any) error {
	raw, err := in.read()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("некорректные данные записи: %w", err)
	}
	return nil
}
