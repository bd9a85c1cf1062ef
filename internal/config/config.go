package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	DriverWebDriver = "webdriver"
	DriverBridge    = "bridge"

	appDir = "flyingchess"
)

type AppConfig struct {
	StockfishPath    string
	SearchDepth      int
	SearchNodes      int
	SearchMoveTime   time.Duration
	EngineThreads    int
	EngineHashMB     int
	EngineSkillLevel int
	EngineElo        int

	SessionPollInterval time.Duration
	MatchPollInterval   time.Duration
	SettleDelay         time.Duration
	ThinkMin            time.Duration
	ThinkMax            time.Duration
	RequeueDelay        time.Duration

	Driver           string
	WebDriverURL     string
	WebDriverRetries int
	ChromedriverPath string
	ChessComUsername string
	ChessComPassword string
	BridgeWSURL      string

	RedisURL           string
	DatabaseURL        string
	DumpDir            string
	JournalRecentLimit int

	// ConfigFile is the YAML file that was applied, if any.
	ConfigFile string
}

// source resolves a key: environment first, then the YAML file.
type source struct {
	file map[string]string
}

func (s source) get(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(s.file[strings.ToLower(key)])
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing precedence. File keys are the lower-cased
// environment names, e.g. "search_depth: 4".
func Load() (*AppConfig, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.validateDriver(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEngine is Load without the driver checks, for offline commands.
func LoadEngine() (*AppConfig, error) {
	return load()
}

func load() (*AppConfig, error) {
	cfg := &AppConfig{
		SearchDepth:         1,
		EngineThreads:       1,
		EngineHashMB:        16,
		EngineSkillLevel:    20,
		SessionPollInterval: 1500 * time.Millisecond,
		MatchPollInterval:   500 * time.Millisecond,
		SettleDelay:         150 * time.Millisecond,
		ThinkMin:            4500 * time.Millisecond,
		ThinkMax:            15 * time.Second,
		RequeueDelay:        10 * time.Second,
		Driver:              DriverWebDriver,
		WebDriverURL:        "http://127.0.0.1:9515",
		WebDriverRetries:    3,
		DumpDir:             filepath.Join(xdg.DataHome, appDir, "desync"),
		JournalRecentLimit:  20,
	}

	path, file, err := readFile()
	if err != nil {
		return nil, err
	}
	cfg.ConfigFile = path
	src := source{file: file}

	if v := src.get("STOCKFISH_PATH"); v != "" {
		cfg.StockfishPath = v
	} else if p, err := exec.LookPath("stockfish"); err == nil {
		cfg.StockfishPath = p
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SEARCH_DEPTH", &cfg.SearchDepth},
		{"SEARCH_NODES", &cfg.SearchNodes},
		{"ENGINE_THREADS", &cfg.EngineThreads},
		{"ENGINE_HASH_MB", &cfg.EngineHashMB},
		{"ENGINE_SKILL_LEVEL", &cfg.EngineSkillLevel},
		{"ENGINE_ELO", &cfg.EngineElo},
		{"JOURNAL_RECENT_LIMIT", &cfg.JournalRecentLimit},
		{"WEBDRIVER_RETRIES", &cfg.WebDriverRetries},
	}
	for _, it := range ints {
		if v := src.get(it.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid integer %q", it.key, v)
			}
			*it.dst = n
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SEARCH_MOVETIME", &cfg.SearchMoveTime},
		{"SESSION_POLL_INTERVAL", &cfg.SessionPollInterval},
		{"MATCH_POLL_INTERVAL", &cfg.MatchPollInterval},
		{"SETTLE_DELAY", &cfg.SettleDelay},
		{"THINK_MIN", &cfg.ThinkMin},
		{"THINK_MAX", &cfg.ThinkMax},
		{"REQUEUE_DELAY", &cfg.RequeueDelay},
	}
	for _, it := range durations {
		if v := src.get(it.key); v != "" {
			d, err := ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", it.key, err)
			}
			*it.dst = d
		}
	}

	if v := src.get("DRIVER"); v != "" {
		cfg.Driver = strings.ToLower(v)
	}
	if v := src.get("WEBDRIVER_URL"); v != "" {
		cfg.WebDriverURL = strings.TrimRight(v, "/")
	}
	cfg.ChromedriverPath = src.get("CHROMEDRIVER_PATH")
	cfg.ChessComUsername = src.get("CHESSCOM_USERNAME")
	cfg.ChessComPassword = src.get("CHESSCOM_PASSWORD")
	cfg.BridgeWSURL = src.get("BRIDGE_WS_URL")

	cfg.RedisURL = src.get("REDIS_URL")
	cfg.DatabaseURL = src.get("DATABASE_URL")
	if v := src.get("DUMP_DIR"); v != "" {
		cfg.DumpDir = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.StockfishPath == "" {
		return errors.New("STOCKFISH_PATH is required")
	}
	if c.SearchDepth <= 0 {
		return fmt.Errorf("SEARCH_DEPTH must be > 0: %d", c.SearchDepth)
	}
	if c.SearchNodes < 0 {
		return fmt.Errorf("SEARCH_NODES must be >= 0: %d", c.SearchNodes)
	}
	if c.SearchMoveTime < 0 {
		return fmt.Errorf("SEARCH_MOVETIME must be >= 0: %s", c.SearchMoveTime)
	}
	if c.EngineHashMB <= 0 {
		return fmt.Errorf("ENGINE_HASH_MB must be > 0: %d", c.EngineHashMB)
	}
	if c.EngineSkillLevel < 0 || c.EngineSkillLevel > 20 {
		return fmt.Errorf("ENGINE_SKILL_LEVEL out of range 0-20: %d", c.EngineSkillLevel)
	}
	if c.ThinkMin < 0 || c.ThinkMin > c.ThinkMax {
		return fmt.Errorf("THINK_MIN (%s) must be between 0 and THINK_MAX (%s)", c.ThinkMin, c.ThinkMax)
	}
	if c.SessionPollInterval <= 0 || c.MatchPollInterval <= 0 {
		return errors.New("poll intervals must be > 0")
	}
	return nil
}

func (c *AppConfig) validateDriver() error {
	switch c.Driver {
	case DriverWebDriver:
		if c.WebDriverRetries < 1 {
			return fmt.Errorf("WEBDRIVER_RETRIES must be >= 1: %d", c.WebDriverRetries)
		}
		if c.ChessComUsername == "" || c.ChessComPassword == "" {
			return errors.New("CHESSCOM_USERNAME and CHESSCOM_PASSWORD are required for the webdriver driver")
		}
	case DriverBridge:
		if c.BridgeWSURL == "" {
			return errors.New("BRIDGE_WS_URL is required for the bridge driver")
		}
	default:
		return fmt.Errorf("DRIVER must be %q or %q: %q", DriverWebDriver, DriverBridge, c.Driver)
	}
	return nil
}

// ParseDuration accepts Go duration syntax ("1.5s") or integer milliseconds.
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

// readFile returns the flattened YAML file. CONFIG_FILE must exist when set;
// the XDG default is optional.
func readFile() (string, map[string]string, error) {
	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		found, err := xdg.SearchConfigFile(filepath.Join(appDir, "config.yaml"))
		if err != nil {
			return "", nil, nil
		}
		path = found
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read config file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return "", nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		if v == nil {
			continue
		}
		out[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return path, out, nil
}
