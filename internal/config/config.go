package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the daemon and the management commands need.
// Values come from config.yaml (searched in ".", "./config" and the
// user config dir), overridden by FANYU_* environment variables.
type Config struct {
	ListenAddr   string // local web UI
	RemoteBase   string // booking platform API base URL
	DBPath       string // sqlite key/value store
	PollInterval time.Duration
	LogLevel     string
	LogFile      string // optional JSON log sink, "" disables

	// Command executed once per successful booking with title and body
	// as arguments (e.g. "notify-send"). Empty disables it.
	NotifyCommand string

	SessionHashKey  []byte
	SessionBlockKey []byte
	CredEncKey      []byte // 32 bytes for AES-256-GCM
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "fanyu-assistant"))
	}
	v.SetEnvPrefix("FANYU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("remote_base", "https://yoga.fanyu.cn/api")
	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("poll_interval_seconds", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("notify_command", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		// no config file: environment only
	}

	cfg := Config{
		ListenAddr:    v.GetString("listen_addr"),
		RemoteBase:    strings.TrimRight(v.GetString("remote_base"), "/"),
		DBPath:        v.GetString("db_path"),
		LogLevel:      v.GetString("log_level"),
		LogFile:       v.GetString("log_file"),
		NotifyCommand: v.GetString("notify_command"),
	}

	pollSec := v.GetInt("poll_interval_seconds")
	if pollSec < 1 {
		return Config{}, fmt.Errorf("poll_interval_seconds must be >= 1 (got %d)", pollSec)
	}
	cfg.PollInterval = time.Duration(pollSec) * time.Second

	var err error
	if cfg.SessionHashKey, err = keyB64(v, "session_hash_key"); err != nil {
		return Config{}, err
	}
	if cfg.SessionBlockKey, err = keyB64(v, "session_block_key"); err != nil {
		return Config{}, err
	}
	if cfg.CredEncKey, err = keyB64(v, "cred_enc_key"); err != nil {
		return Config{}, err
	}
	if len(cfg.CredEncKey) != 32 {
		return Config{}, fmt.Errorf("cred_enc_key must decode to 32 bytes (got %d)", len(cfg.CredEncKey))
	}

	return cfg, nil
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "fanyu-assistant.db"
	}
	return filepath.Join(dir, "fanyu-assistant", "app.db")
}

func keyB64(v *viper.Viper, name string) ([]byte, error) {
	s := strings.TrimSpace(v.GetString(name))
	if s == "" {
		return nil, fmt.Errorf("%s is required (base64, see 'fanyuassist keys')", name)
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}
