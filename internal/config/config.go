// Package config loads and validates unitlink settings from the config file and environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/Veraticus/unitlink/internal/common"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the validated configuration for one linkage run. It is passed to
// component constructors; nothing reads configuration globally.
type Config struct {
	Owners       OwnersConfig       `mapstructure:"owners"`
	Transactions TransactionsConfig `mapstructure:"transactions"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Output       OutputConfig       `mapstructure:"output"`
	Matching     MatchingConfig     `mapstructure:"matching"`
}

// OwnersConfig describes the owner registry input.
type OwnersConfig struct {
	// Columns maps canonical field -> source column name.
	Columns        map[string]string `mapstructure:"columns"`
	BuyerRoles     []string          `mapstructure:"buyer_roles" validate:"min=1,dive,required"`
	AreaMultiplier float64           `mapstructure:"area_multiplier" validate:"gt=0"`
}

// TransactionsConfig describes the transaction ledger input.
type TransactionsConfig struct {
	Columns        map[string]string `mapstructure:"columns"`
	AreaMultiplier float64           `mapstructure:"area_multiplier" validate:"gt=0"`
}

// Weights are the composite score weights of the fuzzy tier.
type Weights struct {
	Building float64 `mapstructure:"building" validate:"gte=0,lte=1"`
	Unit     float64 `mapstructure:"unit" validate:"gte=0,lte=1"`
	Area     float64 `mapstructure:"area" validate:"gte=0,lte=1"`
}

// Thresholds are the inclusive lower bounds of the confidence buckets.
type Thresholds struct {
	High   float64 `mapstructure:"high" validate:"gt=0,lte=1"`
	Medium float64 `mapstructure:"medium" validate:"gt=0,lte=1"`
	Low    float64 `mapstructure:"low" validate:"gt=0,lte=1"`
}

// MatchingConfig holds the matching tiers' tunables.
type MatchingConfig struct {
	Weights       Weights    `mapstructure:"weights"`
	Thresholds    Thresholds `mapstructure:"thresholds"`
	AreaTolerance float64    `mapstructure:"area_tolerance" validate:"gte=0,lt=1"`
	AreaFalloff   float64    `mapstructure:"area_falloff" validate:"gt=0,lte=1"`
	TopK          int        `mapstructure:"top_k" validate:"gte=1"`
	Workers       int        `mapstructure:"workers" validate:"gte=1"`
	Shards        int        `mapstructure:"shards" validate:"gte=1"`
}

// DatabaseConfig locates the SQLite state database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// OutputConfig locates run artifacts.
type OutputConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Owners: OwnersConfig{
			BuyerRoles:     []string{"buyer"},
			AreaMultiplier: 1,
		},
		Transactions: TransactionsConfig{
			AreaMultiplier: 1,
		},
		Matching: MatchingConfig{
			AreaTolerance: 0.01,
			AreaFalloff:   0.02,
			Weights:       Weights{Building: 0.5, Unit: 0.3, Area: 0.2},
			Thresholds:    Thresholds{High: 0.90, Medium: 0.85, Low: 0.75},
			TopK:          3,
			Workers:       runtime.NumCPU(),
			Shards:        8,
		},
		Database: DatabaseConfig{Path: "~/.local/share/unitlink/unitlink.db"},
		Output:   OutputConfig{Dir: "out"},
	}
}

// SetDefaults registers the built-in values with v so partial config files
// and environment overrides layer on top of them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("owners.buyer_roles", d.Owners.BuyerRoles)
	v.SetDefault("owners.area_multiplier", d.Owners.AreaMultiplier)
	v.SetDefault("transactions.area_multiplier", d.Transactions.AreaMultiplier)
	v.SetDefault("matching.area_tolerance", d.Matching.AreaTolerance)
	v.SetDefault("matching.area_falloff", d.Matching.AreaFalloff)
	v.SetDefault("matching.weights.building", d.Matching.Weights.Building)
	v.SetDefault("matching.weights.unit", d.Matching.Weights.Unit)
	v.SetDefault("matching.weights.area", d.Matching.Weights.Area)
	v.SetDefault("matching.thresholds.high", d.Matching.Thresholds.High)
	v.SetDefault("matching.thresholds.medium", d.Matching.Thresholds.Medium)
	v.SetDefault("matching.thresholds.low", d.Matching.Thresholds.Low)
	v.SetDefault("matching.top_k", d.Matching.TopK)
	v.SetDefault("matching.workers", d.Matching.Workers)
	v.SetDefault("matching.shards", d.Matching.Shards)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("output.dir", d.Output.Dir)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, common.NewConfigurationError("config", "", err.Error())
	}
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Output.Dir = ExpandPath(cfg.Output.Dir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return common.NewConfigurationError(section(fe.Namespace()), fe.StructField(),
				fmt.Sprintf("rule '%s %s' failed for value '%v'", fe.Tag(), fe.Param(), fe.Value()))
		}
		return common.NewConfigurationError("config", "", err.Error())
	}

	w := c.Matching.Weights
	if sum := w.Building + w.Unit + w.Area; math.Abs(sum-1) > 1e-6 {
		return common.NewConfigurationError("matching", "weights",
			fmt.Sprintf("weights must sum to 1, got %.4f", sum))
	}

	th := c.Matching.Thresholds
	if th.High <= th.Medium || th.Medium <= th.Low {
		return common.NewConfigurationError("matching", "thresholds",
			fmt.Sprintf("thresholds must satisfy high > medium > low, got %.2f/%.2f/%.2f", th.High, th.Medium, th.Low))
	}

	for _, role := range c.Owners.BuyerRoles {
		if strings.TrimSpace(role) == "" {
			return common.NewConfigurationError("owners", "buyer_roles", "empty role")
		}
	}
	return nil
}

// section turns a validator namespace ("Config.Matching.Weights.Area") into
// the config section path ("matching.weights").
func section(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) <= 2 {
		return "config"
	}
	return strings.ToLower(strings.Join(parts[1:len(parts)-1], "."))
}
