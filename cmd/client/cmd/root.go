package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"vetsync/cmd/client/cmd/auth"
	"vetsync/cmd/client/cmd/entity"
	"vetsync/cmd/client/cmd/sync"
	"vetsync/cmd/client/cmd/types"
	"vetsync/internal/app/client"
	"vetsync/internal/app/client/config"
	"vetsync/internal/utils/logger"
)

var (
	cfgFile    string
	cfg        *config.Config
	log        *slog.Logger
	app        *client.App
	debug      bool
	jsonOutput bool
	serverAddr string
)

var rootCmd = &cobra.Command{
	Use:   "vetsync",
	Short: "VetSync - офлайн-клиент ветеринарной клиники",
	Long: `VetSync — клиент для работы с записями клиники без постоянной связи с сервером.

Приёмы, пациенты, владельцы, SOAP-заметки и госпитализации сохраняются локально
и синхронизируются с сервером, как только появляется сеть.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	err := rootCmd.Execute()
	if app != nil {
		_ = app.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	if serverAddr != "" {
		cfg.ServerAddress = serverAddr
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	log = logger.NewWithLevel(cfg.Env, level)

	app, err = client.New(cmd.Context(), cfg, log, client.NewConsoleNotifier(os.Stdout))
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(types.WithApp(cmd.Context(), app))
	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	if app == nil {
		return nil
	}
	err := app.Close()
	app = nil
	return err
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		viper.AddConfigPath(filepath.Join(home, ".vetsync"))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return config.Load()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "адрес сервера VetSync (host:port)")

	auth.AuthCmd.AddCommand(auth.LoginCmd, auth.LogoutCmd, auth.RegisterCmd, auth.StatusCmd)
	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(entity.Commands()...)
	rootCmd.AddCommand(sync.SyncCmd, sync.ConflictsCmd, sync.QueueCmd, sync.DaemonCmd, sync.CountsCmd)
}
