// Package config loads the gateway's runtime configuration from a YAML
// file, overridable by GW_-prefixed environment variables, the layout
// grounded on the teacher pack's viper-based exchange config loader.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"exchangegw/gw"
)

// File is the top-level on-disk shape: one venue's Config plus its
// feature flags, the local cache directory and the reporting surface.
type File struct {
	Exchange  string          `mapstructure:"exchange"`
	APIKey    string          `mapstructure:"api_key"`
	Secret    string          `mapstructure:"secret"`
	Pass      string          `mapstructure:"passphrase"`
	Symbol    string          `mapstructure:"symbol"`
	Base      string          `mapstructure:"base"`
	Quote     string          `mapstructure:"quote"`
	MinSize   float64         `mapstructure:"min_size"`
	MinValue  float64         `mapstructure:"min_value"`
	MakeFee   float64         `mapstructure:"make_fee"`
	TakeFee   float64         `mapstructure:"take_fee"`
	Leverage  float64         `mapstructure:"leverage"`
	MaxLevel  int             `mapstructure:"max_level"`
	CacheHome string          `mapstructure:"cache_home"`
	Debug     int             `mapstructure:"debug"`
	Features  gw.FeatureFlags `mapstructure:"features"`
	HTTPAddr  string          `mapstructure:"http_addr"`
}

// Load reads configPath (YAML), merges in a .env file if present, and
// applies GW_-prefixed environment overrides — e.g. GW_SECRET overrides
// "secret", GW_FEATURES_ASKFORFEES overrides "features.askforfees".
func Load(configPath string) (File, error) {
	_ = godotenv.Load() // optional; missing .env is not an error

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("GW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("cache_home", "./.cache")
	v.SetDefault("max_level", 10)
	v.SetDefault("http_addr", ":9090")

	if err := v.ReadInConfig(); err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return File{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if f.Exchange == "" {
		return File{}, fmt.Errorf("config: exchange is required")
	}
	if f.Symbol == "" {
		return File{}, fmt.Errorf("config: symbol is required")
	}
	return f, nil
}

// ToGatewayConfig projects the loaded file onto gw.Config, the shape
// the handshake/bootstrap path actually consumes.
func (f File) ToGatewayConfig() gw.Config {
	return gw.Config{
		Exchange:  f.Exchange,
		APIKey:    f.APIKey,
		Secret:    f.Secret,
		Pass:      f.Pass,
		Base:      f.Base,
		Quote:     f.Quote,
		Symbol:    f.Symbol,
		MinSize:   f.MinSize,
		MinValue:  f.MinValue,
		MakeFee:   f.MakeFee,
		TakeFee:   f.TakeFee,
		MaxLevel:  f.MaxLevel,
		Leverage:  f.Leverage,
		Debug:     f.Debug,
		CacheHome: f.CacheHome,
	}
}
