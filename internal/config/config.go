// Package config defines the data structures related to configuration and
// includes functions for loading and validating the config.
package config

import (
	"fmt"
	"io"

	"github.com/iwvelando/loan-simulator/pkg/constants"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for a loan-simulator run: one loan
// and the extra-payment scenarios compared against it.
type Configuration struct {
	Logging   LoggingConfig `yaml:"logging,omitempty" mapstructure:"logging"`
	Output    OutputConfig  `yaml:"output,omitempty" mapstructure:"output"`
	Loan      Loan          `yaml:"loan" mapstructure:"loan"`
	Scenarios []Scenario    `yaml:"scenarios" mapstructure:"scenarios"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format   string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv, yearly-csv, json
	Schedule bool   `yaml:"schedule,omitempty" mapstructure:"schedule"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()

	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	return decode(v)
}

// LoadConfigurationFromReader loads a YAML-formatted configuration from r.
// The HTTP API uses it for uploaded files.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := viper.New()
	v.SetConfigType("yml")

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config, %s", err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	configuration.applyDefaults()
	return &configuration, nil
}

func (c *Configuration) applyDefaults() {
	if c.Output.Format == "" {
		c.Output.Format = constants.OutputFormatPretty
	}
	for i := range c.Scenarios {
		if c.Scenarios[i].Optimize != nil {
			c.Scenarios[i].Optimize.Normalize()
		}
	}
}

// ActiveScenarios returns the scenarios marked active, in file order.
func (c *Configuration) ActiveScenarios() []Scenario {
	var active []Scenario
	for _, scenario := range c.Scenarios {
		if scenario.Active {
			active = append(active, scenario)
		}
	}
	return active
}

// Validate checks that the loan and every active scenario convert into valid
// simulation inputs. It returns the first failure.
func (c *Configuration) Validate() error {
	if _, err := c.Loan.ToLoanTerms(); err != nil {
		return fmt.Errorf("loan: %w", err)
	}
	for _, scenario := range c.ActiveScenarios() {
		if _, err := scenario.ToPolicy(); err != nil {
			return fmt.Errorf("scenario %q: %w", scenario.Name, err)
		}
		if scenario.Optimize != nil {
			if err := scenario.Optimize.Validate(); err != nil {
				return fmt.Errorf("scenario %q: %w", scenario.Name, err)
			}
		}
	}
	return nil
}

// ValidateConfiguration performs general validation of the configuration and
// returns non-fatal warnings.
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if len(c.Scenarios) == 0 {
		warnings = append(warnings, "no scenarios defined; only the standard schedule can be shown")
	}

	activeCount := 0
	termYears := c.Loan.TermYears
	for _, scenario := range c.Scenarios {
		if !scenario.Active {
			warnings = append(warnings, fmt.Sprintf("scenario %q is inactive and will be skipped", scenario.Name))
			continue
		}
		activeCount++

		policy, err := scenario.ToPolicy()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("scenario %q: %v", scenario.Name, err))
			continue
		}
		if policy.IsZero() && scenario.Optimize == nil {
			warnings = append(warnings, fmt.Sprintf("scenario %q has no extra payments and matches the standard schedule", scenario.Name))
		}
		if policy.AppliesYearly() && termYears > 0 && policy.LumpSumYears > termYears {
			warnings = append(warnings, fmt.Sprintf("scenario %q: lumpSumYears %d exceeds the %d-year term",
				scenario.Name, policy.LumpSumYears, termYears))
		}
		if opt := scenario.Optimize; opt != nil && termYears > 0 && opt.TargetPayoffMonths >= termYears*constants.MonthsPerYear {
			warnings = append(warnings, fmt.Sprintf("scenario %q: optimizer target of %d months is not shorter than the %d-month term",
				scenario.Name, opt.TargetPayoffMonths, termYears*constants.MonthsPerYear))
		}
	}

	if len(c.Scenarios) > 0 && activeCount == 0 {
		warnings = append(warnings, "no active scenarios; nothing will be compared")
	}

	return warnings
}
