package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "settler",
	Short: "Settles the fund's validator owner stake and distributes fund units to depositors",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)
	rootCmd.PersistentFlags().StringP(config.Network, "n", "mainnet", "The network to use (mainnet, stokenet)")

	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "settler", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "settler", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLMode, "disable", `PostgreSQL sslmode (disable, require, verify-ca, verify-full)`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLCert, "", `Path to the client certificate`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLKey, "", `Path to the client key`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLRootCert, "", `Path to the root certificate`)

	rootCmd.PersistentFlags().String(config.GatewayUrl, "", `Ledger gateway url (defaults to the public gateway of the network)`)
	rootCmd.PersistentFlags().Duration(config.GatewayPollInterval, 0, `Delay between transaction status polls`)
	rootCmd.PersistentFlags().Int(config.GatewayPollAttempts, 0, `Number of transaction status polls before giving up`)

	rootCmd.PersistentFlags().String(config.OracleUrl, "", `Price oracle url (defaults to the oracle backend of the network)`)
	rootCmd.PersistentFlags().String(config.OracleMarketId, "GATEIO:XRD_USDT", `Market the XRD price is quoted on`)
	rootCmd.PersistentFlags().String(config.OracleNftId, "", `Local id of the oracle access NFT`)

	rootCmd.PersistentFlags().String(config.SignerUrl, "", `Key custody service url`)
	rootCmd.PersistentFlags().String(config.SignerApiToken, "", `Key custody service api token`)

	rootCmd.PersistentFlags().String(config.TelegramBotToken, "", `Telegram bot token used for alerts`)
	rootCmd.PersistentFlags().String(config.TelegramChatId, "", `Telegram chat alerts are sent to`)

	rootCmd.PersistentFlags().Int(config.RpcHttpPort, 7101, `http rpc port`)
	rootCmd.PersistentFlags().String(config.RpcAdminSecret, "", `Secret required by the admin endpoints`)
	rootCmd.PersistentFlags().String(config.RpcCorsOrigins, "*", `Comma separated list of allowed CORS origins`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)
	rootCmd.PersistentFlags().Bool(config.DataDogTracingEnabled, false, `e.g. "true" or "false"`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	rootCmd.PersistentFlags().String(config.PipelineUnlockThreshold, "", `Minimum locked owner stake units before an unlock is started`)
	rootCmd.PersistentFlags().String(config.PipelineFeeLock, "", `XRD locked for fees by each settlement transaction`)
	rootCmd.PersistentFlags().String(config.PipelineDistributionFeeLock, "", `XRD locked for fees by each distribution batch`)
	rootCmd.PersistentFlags().Int(config.PipelineBatchSize, 0, `Accounts paid per distribution transaction`)
	rootCmd.PersistentFlags().Duration(config.PipelineUnstakeLookback, 0, `Oldest unlock_started snapshot step 2 picks up`)
	rootCmd.PersistentFlags().Duration(config.PipelineDistributionLookback, 0, `Oldest unstaked snapshot step 3 resumes`)
	rootCmd.PersistentFlags().Duration(config.PipelineTxRetryDelay, 0, `Delay before retrying a failed transaction`)
	rootCmd.PersistentFlags().String(config.PipelineFeeBalanceThreshold, "", `Bot account XRD balance that triggers a low fee alert`)
	rootCmd.PersistentFlags().String(config.PipelineMinHolderBalance, "", `Depositors holding this amount or less are left out of snapshots`)

	rootCmd.PersistentFlags().Bool(config.ScheduleEnabled, true, `Run the settlement steps on a schedule`)
	rootCmd.PersistentFlags().Duration(config.ScheduleStep1Interval, 0, `Interval between step 1 runs`)
	rootCmd.PersistentFlags().Duration(config.ScheduleStep2Interval, 0, `Interval between step 2 runs`)
	rootCmd.PersistentFlags().Duration(config.ScheduleStep3Interval, 0, `Interval between step 3 runs`)
	rootCmd.PersistentFlags().Duration(config.ScheduleFeeCheckInterval, 0, `Interval between fee balance checks`)

	rootCmd.PersistentFlags().String(config.LedgerFundManagerComponent, "", `Override the fund manager component address`)
	rootCmd.PersistentFlags().String(config.LedgerFundBotBadge, "", `Override the fund bot badge resource`)
	rootCmd.PersistentFlags().String(config.LedgerFundUnitResource, "", `Override the fund unit resource`)
	rootCmd.PersistentFlags().String(config.LedgerCollateralNftResource, "", `Lending protocol collateral NFT resource merged into depositor balances`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(runVersionCmd)
	rootCmd.AddCommand(runDatabaseCmd)
	rootCmd.AddCommand(snapshotCmd)

	// bind any subcommand flags
	exportSnapshotCmd.PersistentFlags().String(config.SnapshotExportDate, "", "Date of the snapshot to export (defaults to the most recent one)")
	exportSnapshotCmd.PersistentFlags().String(config.SnapshotExportOutput, "", "Path of the csv file to write (defaults to stdout)")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

// bindCommandFlags binds the flags local to a sub command.
func bindCommandFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(config.KebabToSnakeCase(f.Name)); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
