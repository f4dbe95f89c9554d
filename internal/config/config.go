package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type VenueCfg struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Router  string `yaml:"router"`
	FeeBps  uint32 `yaml:"fee_bps"`
	Variant string `yaml:"variant"`  // constant_product | concentrated_liquidity
	FeeTier uint32 `yaml:"fee_tier"` // concentrated venues only
}

type RedisCfg struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Stream   string `yaml:"stream"`
	SnapNS   string `yaml:"snap_ns"`
}

type Config struct {
	Chain struct {
		RPCHTTP      string `yaml:"rpc_http"`
		WalletPK     string `yaml:"wallet_pk"`
		GasLimitSwap uint64 `yaml:"gas_limit_swap"`
	} `yaml:"chain"`

	Platform struct {
		Admin        string `yaml:"admin"`
		Custody      string `yaml:"custody"`
		FeeRecipient string `yaml:"fee_recipient"`
		FeeBps       uint32 `yaml:"fee_bps"`
	} `yaml:"platform"`

	Quote struct {
		TimeoutMs int `yaml:"timeout_ms"`
	} `yaml:"quote"`

	Venues []VenueCfg `yaml:"venues"`

	Analytics struct {
		Updaters []string `yaml:"updaters"`
	} `yaml:"analytics"`

	Redis RedisCfg `yaml:"redis"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Quote.TimeoutMs == 0 {
		c.Quote.TimeoutMs = 1500
	}
	if c.Chain.GasLimitSwap == 0 {
		c.Chain.GasLimitSwap = 400_000
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = "swaps"
	}
	if c.Redis.SnapNS == "" {
		c.Redis.SnapNS = "pool:snap:"
	}
	return &c, nil
}

func (c *Config) QuoteTimeout() time.Duration {
	return time.Duration(c.Quote.TimeoutMs) * time.Millisecond
}
