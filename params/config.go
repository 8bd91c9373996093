package params

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr string
}

type Market struct {
	Symbol       string
	InitialPrice string // decimal string, parsed at wiring time
}

type Candles struct {
	// Retention caps the number of candles kept per timeframe.
	Retention int
}

// BotGroup describes one homogeneous slice of the bot fleet. Strategy
// parameters not used by a kind are ignored.
type BotGroup struct {
	Kind       string  `yaml:"kind"` // market-maker | momentum | mean-reversion | random | scalper
	Count      int     `yaml:"count"`
	Cash       string  `yaml:"cash"`
	IntervalMS int     `yaml:"interval_ms"`
	Spread     string  `yaml:"spread,omitempty"`
	Threshold  string  `yaml:"threshold,omitempty"`
	Size       int64   `yaml:"size,omitempty"`
	MaxSize    int64   `yaml:"max_size,omitempty"`
}

func (g BotGroup) Interval() time.Duration {
	return time.Duration(g.IntervalMS) * time.Millisecond
}

type Fleet struct {
	Bots []BotGroup `yaml:"bots"`
}

type Config struct {
	Server  Server
	Market  Market
	Candles Candles
	Fleet   Fleet
	LogFile string
}

func Default() Config {
	return Config{
		Server:  Server{Addr: ":8080"},
		Market:  Market{Symbol: "AAPL", InitialPrice: "150.00"},
		Candles: Candles{Retention: 1000},
		Fleet: Fleet{Bots: []BotGroup{
			{Kind: "market-maker", Count: 10, Cash: "50000", IntervalMS: 5000, Spread: "2.00", Size: 10},
			{Kind: "momentum", Count: 10, Cash: "25000", IntervalMS: 3000, Threshold: "0.02", Size: 5},
			{Kind: "mean-reversion", Count: 10, Cash: "30000", IntervalMS: 4000, Threshold: "0.03", Size: 8},
			{Kind: "random", Count: 10, Cash: "20000", IntervalMS: 8000, MaxSize: 5},
			{Kind: "scalper", Count: 10, Cash: "15000", IntervalMS: 2000, Size: 3},
		}},
		LogFile: "",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env > defaults. A fleet YAML file
// named by FLEET_FILE replaces the default fleet wholesale.
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if sym := os.Getenv("SYMBOL"); sym != "" {
		cfg.Market.Symbol = sym
	}
	if price := os.Getenv("INITIAL_PRICE"); price != "" {
		cfg.Market.InitialPrice = price
	}
	if retention := os.Getenv("CANDLE_RETENTION"); retention != "" {
		n, err := strconv.Atoi(retention)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid CANDLE_RETENTION %q", retention)
		}
		cfg.Candles.Retention = n
	}
	cfg.LogFile = os.Getenv("LOG_FILE")

	if fleetFile := os.Getenv("FLEET_FILE"); fleetFile != "" {
		fleet, err := LoadFleet(fleetFile)
		if err != nil {
			return cfg, err
		}
		cfg.Fleet = fleet
	}
	return cfg, nil
}

// LoadFleet reads a bot fleet description from a YAML file.
func LoadFleet(path string) (Fleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fleet{}, fmt.Errorf("read fleet file: %w", err)
	}
	var fleet Fleet
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return Fleet{}, fmt.Errorf("parse fleet file: %w", err)
	}
	for i, g := range fleet.Bots {
		if g.Count <= 0 {
			return Fleet{}, fmt.Errorf("fleet entry %d: count must be positive", i)
		}
		if g.IntervalMS <= 0 {
			return Fleet{}, fmt.Errorf("fleet entry %d: interval_ms must be positive", i)
		}
		switch g.Kind {
		case "random":
			if g.MaxSize <= 0 {
				return Fleet{}, fmt.Errorf("fleet entry %d: random bots need max_size > 0", i)
			}
		case "market-maker", "momentum", "mean-reversion", "scalper":
			if g.Size <= 0 {
				return Fleet{}, fmt.Errorf("fleet entry %d: %s bots need size > 0", i, g.Kind)
			}
		default:
			return Fleet{}, fmt.Errorf("fleet entry %d: unknown kind %q", i, g.Kind)
		}
	}
	return fleet, nil
}
