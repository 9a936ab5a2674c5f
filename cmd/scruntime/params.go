package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sandboxvm/scruntime/types"
)

const (
	envPrefix = "SCRUNTIME"

	gasLimitKey     = "gas-limit"
	launchCostKey   = "launch-cost"
	operatorCostKey = "operator-cost"
	maxPagesKey     = "max-pages"
	maxCallDepthKey = "max-call-depth"
	calibrationKey  = "calibration"
	dataDirKey      = "data-dir"
	callerKey       = "caller"
	balanceKey      = "balance"
	logLevelKey     = "log-level"
	outputKey       = "output"
	reportKey       = "report"
	checksumKey     = "expect-checksum"
)

func buildFlagSet() *pflag.FlagSet {
	defaults := types.DefaultGasCosts()
	fs := pflag.NewFlagSet("scruntime", pflag.ContinueOnError)
	fs.Uint64(gasLimitKey, 100_000_000_000, "Gas limit of each execution")
	fs.Uint64(launchCostKey, defaults.LaunchCost, "Gas charged before main runs")
	fs.Uint64(operatorCostKey, defaults.OperatorCost, "Gas charged per instruction")
	fs.Uint32(maxPagesKey, types.DefaultMaxPages, "Linear memory ceiling in 64 KiB pages")
	fs.Int(maxCallDepthKey, types.DefaultMaxCallDepth, "Maximum depth of nested contract calls")
	fs.Bool(calibrationKey, false, "Count instructions and host calls instead of metering")
	fs.String(dataDirKey, "", "Persist ledger state in this directory")
	fs.String(callerKey, "AU12caller", "Address the execution runs as")
	fs.Uint64(balanceKey, 1_000_000_000, "Initial balance of the caller")
	fs.String(logLevelKey, "info", "Log level")
	fs.String(outputKey, "", "Write calibration results to this file instead of stdout")
	fs.String(reportKey, "", "Write a JSON report of each execution to this file")
	fs.String(checksumKey, "", "Refuse to run bytecode whose SHA-256 differs from this hex checksum")
	return fs
}

// getViper parses args into a viper instance. Every flag can also be set
// through an environment variable, e.g. SCRUNTIME_GAS_LIMIT.
func getViper(args []string) (*viper.Viper, []string, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := buildFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, nil, err
	}
	return v, fs.Args(), nil
}
