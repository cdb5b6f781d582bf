// cmd/member-mall/main.go
package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"membermall/internal/pkg/bootstrap"
	"membermall/internal/pkg/logger"
)

const serviceName = "member-mall"

func main() {
	// 金额以 JSON number 输出，与前端组件读取 cookie 的方式一致
	decimal.MarshalJSONWithoutQuotes = true

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Membership points mall",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(&configPath), supportRelayCmd(&configPath))
	return cmd
}

// loadConfig 读取配置、初始化日志，并发布为进程级配置
func loadConfig(path string) (bootstrap.Config, error) {
	cfg, err := bootstrap.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	logger.Init(cfg.App.Name, cfg.App.LogLevel, cfg.App.LogFormat)
	bootstrap.SetCurrentConfig(cfg)
	return cfg, nil
}
