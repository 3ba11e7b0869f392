package plans

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/spf13/viper"
)

//go:embed default_plans.yml
var defaultPlansYAML []byte

type fileConfig struct {
	DefaultPaid string          `mapstructure:"default_paid"`
	Plans       map[string]Plan `mapstructure:"plans"`
}

// Load reads the catalog from a YAML file. When path is empty or the file does
// not exist the embedded default catalog is used. Provider price ids can be
// overridden with PADDLE_<PLAN>_MONTHLY_PRICE_ID / PADDLE_<PLAN>_ANNUAL_PRICE_ID.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	source := "embedded defaults"
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			source = path
		}
	}

	if source == path {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read plan catalog %s: %w", path, err)
		}
	} else if err := v.ReadConfig(bytes.NewReader(defaultPlansYAML)); err != nil {
		return nil, fmt.Errorf("read default plan catalog: %w", err)
	}

	for key := range v.GetStringMap("plans") {
		upper := strings.ToUpper(key)
		_ = v.BindEnv("plans."+key+".price_id_monthly", "PADDLE_"+upper+"_MONTHLY_PRICE_ID")
		_ = v.BindEnv("plans."+key+".price_id_annual", "PADDLE_"+upper+"_ANNUAL_PRICE_ID")
	}
	_ = v.BindEnv("default_paid", "PLANS_DEFAULT_PAID")

	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode plan catalog: %w", err)
	}
	if len(cfg.Plans) == 0 {
		return nil, errors.New("plan catalog is empty")
	}

	list := make([]Plan, 0, len(cfg.Plans))
	for key, p := range cfg.Plans {
		if p.ID == "" {
			p.ID = ID(key)
		}
		list = append(list, p)
	}

	catalog, err := NewCatalog(list, ID(cfg.DefaultPaid))
	if err != nil {
		return nil, err
	}
	log.Infof("[Plans] Loaded %d plans from %s", len(list), source)
	return catalog, nil
}

// MustLoad is Load for process start-up.
func MustLoad(path string) *Catalog {
	c, err := Load(path)
	if err != nil {
		panic(err)
	}
	return c
}
