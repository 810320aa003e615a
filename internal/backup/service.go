package backup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/apim-backup-operator/internal/apim"
	"github.com/Chapsvision-dev/apim-backup-operator/internal/auth"
	"github.com/Chapsvision-dev/apim-backup-operator/internal/config"
	"github.com/Chapsvision-dev/apim-backup-operator/internal/storage"
)

// Options controls backup naming.
type Options struct {
	// BackupName: name of the blob the management plane will write.
	// Empty falls back to config, then to a timestamped default.
	BackupName string
}

// Result reports the acknowledged (not completed) backup operation.
type Result struct {
	BackupName  string
	Status      string
	OperationID string
	Timestamp   time.Time
}

// Run acquires a management-plane token and triggers the APIM backup.
// Strictly sequential, no retry: the caller re-invokes the whole run on
// transient failure. The backup itself completes asynchronously in the
// management plane; Run only confirms initiation.
func Run(ctx context.Context, cfg config.Config, opt Options) (Result, error) {
	var res Result

	res.Timestamp = time.Now().UTC()
	res.BackupName = resolveName(cfg, opt, res.Timestamp)

	// 1) Acquire the ARM bearer via the configured auth provider.
	authStart := time.Now()
	token, err := auth.AcquireToken(ctx, cfg)
	if err != nil {
		log.Error().
			Err(err).
			Str("action", "backup_auth").
			Str("method", cfg.Auth.Method).
			Msg("management-plane auth failed")
		return res, err
	}
	log.Info().
		Str("action", "backup_auth").
		Str("method", cfg.Auth.Method).
		Dur("elapsed_ms", time.Since(authStart)).
		Msg("auth OK")

	// 2) Optional destination preflight before the request is spent.
	if cfg.StoragePreflight {
		pfStart := time.Now()
		if err := storage.VerifyContainer(ctx, cfg); err != nil {
			log.Error().
				Err(err).
				Str("action", "storage_preflight").
				Str("account", cfg.Storage.Account).
				Str("container", cfg.Storage.Container).
				Msg("preflight failed")
			return res, fmt.Errorf("storage preflight: %w", err)
		}
		log.Info().
			Str("action", "storage_preflight").
			Str("account", cfg.Storage.Account).
			Str("container", cfg.Storage.Container).
			Dur("elapsed_ms", time.Since(pfStart)).
			Msg("preflight OK")
	}

	// 3) Trigger the backup.
	reqStart := time.Now()
	client := apim.NewClient(cfg.ARMEndpoint, cfg.APIVersion, nil)
	ack, err := client.TriggerBackup(ctx, token, apim.BackupRequest{
		SubscriptionID: cfg.SubscriptionID,
		ResourceGroup:  cfg.ResourceGroup,
		ServiceName:    cfg.ServiceName,
		StorageAccount: cfg.Storage.Account,
		ContainerName:  cfg.Storage.Container,
		BackupName:     res.BackupName,
		Access:         cfg.AccessMethod(),
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("action", "apim_backup").
			Str("service", cfg.ServiceName).
			Str("backup_name", res.BackupName).
			Dur("elapsed_ms", time.Since(reqStart)).
			Msg("backup request failed")
		return res, err
	}

	res.Status = ack.Status
	res.OperationID = ack.OperationID

	log.Info().
		Str("action", "apim_backup").
		Str("service", cfg.ServiceName).
		Str("backup_name", res.BackupName).
		Str("status", res.Status).
		Str("operation_id", res.OperationID).
		Dur("elapsed_ms", time.Since(reqStart)).
		Msg("backup initiated (completes asynchronously)")

	return res, nil
}

// resolveName picks the backup name: option, then config, then
// "<service>-<timestamp>" with a configurable layout.
func resolveName(cfg config.Config, opt Options, ts time.Time) string {
	if name := strings.TrimSpace(opt.BackupName); name != "" {
		return name
	}
	if name := strings.TrimSpace(cfg.BackupName); name != "" {
		return name
	}
	layout := strings.TrimSpace(cfg.BackupTimestampFormat)
	if layout == "" {
		layout = "2006-01-02T15-04-05Z"
	}
	return fmt.Sprintf("%s-%s", cfg.ServiceName, ts.Format(layout))
}
