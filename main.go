package main

import (
	"os"

	"fleet-kpi-monitor/config"
	"fleet-kpi-monitor/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(utils.ParseLevel(cfg.LogLevel))

	if err := newRootCmd(cfg, logger).Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
