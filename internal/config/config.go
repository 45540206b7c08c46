// Package config defines the configuration of the payoff CLI and the
// functions for loading it.
package config

import (
	"fmt"
	"io"

	"github.com/iwvelando/payoff/pkg/amortization"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for the payoff CLI.
type Configuration struct {
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Output  OutputConfig  `yaml:"output,omitempty"`
	Loan    LoanConfig    `yaml:"loan,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv
}

// LoanConfig describes the loan to schedule. When MonthlyPayment is zero and
// TermMonths is set, the payment is derived from the term.
type LoanConfig struct {
	Principal          float64 `yaml:"principal,omitempty"`
	AnnualInterestRate float64 `yaml:"annualInterestRate,omitempty"`
	MonthlyPayment     float64 `yaml:"monthlyPayment,omitempty"`
	TermMonths         int     `yaml:"termMonths,omitempty"`
}

// LoadEnv loads a .env file from the working directory, if present, so values
// such as OPENAI_API_KEY are visible to AutomaticEnv.
func LoadEnv() {
	_ = godotenv.Load()
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	return decode(v)
}

// LoadConfigurationFromReader loads YAML-formatted configuration from a reader.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix("payoff")
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	return &configuration, nil
}

// Input resolves the loan section into calculator input, deriving the
// monthly payment from the term when no payment is given.
func (l LoanConfig) Input() (amortization.Input, error) {
	in := amortization.Input{
		Principal:          l.Principal,
		AnnualInterestRate: l.AnnualInterestRate,
		MonthlyPayment:     l.MonthlyPayment,
	}
	if in.MonthlyPayment == 0 && l.TermMonths != 0 {
		payment, err := amortization.PaymentForTerm(l.Principal, l.AnnualInterestRate, l.TermMonths)
		if err != nil {
			return in, err
		}
		in.MonthlyPayment = payment
	}
	return in, nil
}
