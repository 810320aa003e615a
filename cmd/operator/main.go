package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/apim-backup-operator/internal/backup"
	"github.com/Chapsvision-dev/apim-backup-operator/internal/config"
	"github.com/Chapsvision-dev/apim-backup-operator/internal/logx"
	"github.com/Chapsvision-dev/apim-backup-operator/internal/version"
)

// Test seams — overridden in unit tests. Keep signatures in sync with packages.
var (
	loadConfig func() (config.Config, error)                                                = config.Load
	backupRun  func(context.Context, config.Config, backup.Options) (backup.Result, error) = backup.Run
	exit       func(int)                                                                   = os.Exit
)

const usage = `
Usage:
  operator backup  [backupName]
  operator version | --version | -v
  operator help    | --help    | -h

Notes:
  - Target and credentials come from env vars (a .env file is honored):
      AZURE_TENANT_ID, AZURE_CLIENT_ID, AZURE_CLIENT_SECRET,
      AZURE_SUBSCRIPTION_ID, APIM_RESOURCE_GROUP, APIM_SERVICE_NAME,
      AZURE_STORAGE_ACCOUNT, AZURE_STORAGE_CONTAINER, BACKUP_NAME
  - Without AZURE_STORAGE_KEY or MANAGED_IDENTITY_CLIENT_ID the backup
    uses the service's system-assigned managed identity.
  - The command only triggers the backup; completion happens
    asynchronously in the management plane.
`

// main wires CLI -> config -> backup trigger.
// Exit codes: 0 success, 1 runtime error, 2 usage error.
func main() {
	_ = godotenv.Load() // best-effort
	logx.InitFromEnv()

	args := os.Args[1:]
	if len(args) < 1 {
		fmt.Print(usage)
		exit(2)
	}
	action := strings.ToLower(args[0])

	// Handle version command
	if action == "version" || action == "--version" || action == "-v" {
		fmt.Printf("apim-backup-operator %s\n", version.Info())
		exit(0)
	}

	// Handle help command
	if action == "help" || action == "--help" || action == "-h" {
		fmt.Print(usage)
		exit(0)
	}

	if action != "backup" {
		fmt.Print(usage)
		exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("config error")
		exit(1)
	}

	ctx := withSignals(context.Background())

	name := pickArgOrEnv(2, "BACKUP_NAME", cfg.BackupName)

	res, err := backupRun(ctx, cfg, backup.Options{BackupName: name})
	if err != nil {
		log.Error().
			Err(err).
			Str("action", "backup").
			Str("service", cfg.ServiceName).
			Msg("backup failed")
		exit(1)
	}

	// Plain line for the scheduler's log; structured detail is above.
	fmt.Printf("backup initiated: name=%s status=%s operation_id=%s\n",
		res.BackupName, res.Status, res.OperationID)
	exit(0)
}

func pickArgOrEnv(idx int, env string, def string) string {
	if len(os.Args) > idx && os.Args[idx] != "" {
		return os.Args[idx]
	}
	if v, ok := os.LookupEnv(env); ok && v != "" {
		return v
	}
	return def
}

func withSignals(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()
	return ctx
}
