package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/sandboxvm/scruntime"
	"github.com/sandboxvm/scruntime/internal/ledger"
	"github.com/sandboxvm/scruntime/types"
)

var errChecksumMismatch = errors.New("bytecode checksum mismatch")

// report is written for each plain execution when --report is set.
type report struct {
	File         string         `json:"file"`
	Checksum     types.Checksum `json:"checksum"`
	GasLimit     uint64         `json:"gas_limit"`
	RemainingGas uint64         `json:"remaining_gas"`
	Events       int            `json:"events"`
}

func main() {
	v, files, err := getViper(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "couldn't get config: %s\n", err)
		os.Exit(2)
	}
	logger := newLogger(v)
	if len(files) == 0 {
		logger.Error().Msg("usage: scruntime [flags] file.wasm|file.wat...")
		os.Exit(2)
	}

	failed := false
	for _, file := range files {
		if err := runFile(v, logger, file); err != nil {
			logger.Error().Err(err).Str("file", file).Msg("execution failed")
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func newLogger(v *viper.Viper) zerolog.Logger {
	level, err := zerolog.ParseLevel(v.GetString(logLevelKey))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func gasCosts(v *viper.Viper) types.GasCosts {
	return types.GasCosts{
		OperatorCost: v.GetUint64(operatorCostKey),
		LaunchCost:   v.GetUint64(launchCostKey),
		ABICosts:     scruntime.DefaultABICosts(),
	}
}

func openLedger(v *viper.Viper, logger zerolog.Logger, name string) (*ledger.Ledger, error) {
	cfg := ledger.Config{
		Caller: v.GetString(callerKey),
		Seed:   []byte(name),
	}
	var db dbm.DB = dbm.NewMemDB()
	if dir := v.GetString(dataDirKey); dir != "" {
		var err error
		db, err = dbm.NewDB("ledger", dbm.GoLevelDBBackend, dir)
		if err != nil {
			return nil, fmt.Errorf("could not open ledger: %w", err)
		}
	}
	l := ledger.New(db, cfg, logger.With().Str("component", "ledger").Logger())
	if err := l.SetBalance(cfg.Caller, v.GetUint64(balanceKey)); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// readContract loads a .wasm or .wat file. Text files are assembled by the
// runtime.
func readContract(file string) ([]byte, error) {
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".wasm", ".wat":
	default:
		return nil, fmt.Errorf("unsupported file extension %q, want .wasm or .wat", ext)
	}
	info, err := os.Stat(file)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", file)
	}
	return os.ReadFile(file)
}

func runFile(v *viper.Viper, logger zerolog.Logger, file string) error {
	bytecode, err := readContract(file)
	if err != nil {
		return err
	}
	checksum := types.ChecksumOf(bytecode)
	if want := v.GetString(checksumKey); want != "" {
		expected, err := types.ParseChecksum(want)
		if err != nil {
			return err
		}
		if expected != checksum {
			return fmt.Errorf("%w: got %s, want %s", errChecksumMismatch, checksum, expected)
		}
	}
	l, err := openLedger(v, logger, file)
	if err != nil {
		return err
	}
	defer l.Close()

	limit := v.GetUint64(gasLimitKey)
	costs := gasCosts(v)
	opts := []scruntime.Option{
		scruntime.WithMaxPages(v.GetUint32(maxPagesKey)),
		scruntime.WithMaxCallDepth(v.GetInt(maxCallDepthKey)),
		scruntime.WithLogger(logger),
	}
	logger.Info().Str("file", file).Stringer("checksum", checksum).Uint64("gas_limit", limit).Msg("running")

	if v.GetBool(calibrationKey) {
		result, err := scruntime.RunMainGasCalibration(bytecode, limit, l, costs, opts...)
		if err != nil {
			return err
		}
		return writeCalibration(v.GetString(outputKey), result)
	}

	remaining, err := scruntime.RunMain(bytecode, limit, l, costs, opts...)
	if err != nil {
		return err
	}
	logger.Info().
		Str("file", file).
		Uint64("remaining_gas", remaining).
		Uint64("gas_used", limit-remaining).
		Int("events", len(l.Events())).
		Msg("execution completed")
	if path := v.GetString(reportKey); path != "" {
		return writeReport(path, report{
			File:         file,
			Checksum:     checksum,
			GasLimit:     limit,
			RemainingGas: remaining,
			Events:       len(l.Events()),
		})
	}
	return nil
}

func writeReport(path string, r report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeCalibration(path string, result types.CalibrationResult) error {
	data, err := result.MarshalMessagePack()
	if err != nil {
		return err
	}
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
