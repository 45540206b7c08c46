package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/iwvelando/payoff/internal/config"
	"github.com/iwvelando/payoff/internal/logging"
	"github.com/iwvelando/payoff/pkg/amortization"
	"github.com/iwvelando/payoff/pkg/constants"
	"github.com/iwvelando/payoff/pkg/output"
	"github.com/iwvelando/payoff/pkg/validation"
	"go.uber.org/zap"
)

func main() {
	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	principal := flag.Float64("principal", 0, "loan principal override")
	rate := flag.Float64("rate", -1, "annual interest rate override, in percent")
	payment := flag.Float64("payment", 0, "monthly payment override")
	term := flag.Int("term", 0, "term in months, used to derive the payment when none is given")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	config.LoadEnv()

	conf, err := loadConfiguration(*configLocation, flagSet("config"))
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Determine output format (CLI override takes precedence over config)
	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	// Flags take precedence over the loan section of the config file.
	loan := conf.Loan
	if flagSet("principal") {
		loan.Principal = *principal
	}
	if flagSet("rate") {
		loan.AnnualInterestRate = *rate
	}
	if flagSet("payment") {
		loan.MonthlyPayment = *payment
	}
	if flagSet("term") {
		loan.TermMonths = *term
		if !flagSet("payment") {
			loan.MonthlyPayment = 0
		}
	}

	in, err := loan.Input()
	if err != nil {
		logger.Fatal("failed to derive monthly payment from term",
			zap.String("op", "main"),
			zap.Int("termMonths", loan.TermMonths),
			zap.Error(err),
		)
	}

	for _, warning := range validation.LoanWarnings(in) {
		logger.Warn("Loan warning: "+warning,
			zap.String("op", "main"),
		)
	}

	schedule, err := amortization.Compute(in)

	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettyFormat(os.Stdout, schedule)
	case constants.OutputFormatCSV:
		output.CsvFormat(os.Stdout, schedule)
	}

	if err != nil {
		logger.Fatal("no schedule for loan",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}

// loadConfiguration reads the config file. A missing default file is not an
// error so a loan can be described entirely with flags.
func loadConfiguration(path string, explicit bool) (*config.Configuration, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return &config.Configuration{}, nil
	}
	return config.LoadConfiguration(path)
}

func flagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
