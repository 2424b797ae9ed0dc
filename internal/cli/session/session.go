// Package session holds the CLI's persisted settings (~/.booktrack.yaml) and
// builds API clients from them.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"booktrack/internal/apiclient"
	grpcclient "booktrack/internal/protocols/grpc"
)

const (
	DefaultServerURL = "http://localhost:8080/api/v1"
	DefaultGRPCAddr  = "localhost:9090"
	configName       = ".booktrack"
)

// ErrNotLoggedIn is returned when no token is stored
var ErrNotLoggedIn = errors.New("no token configured. Run: booktrack config set user.token <token>")

// Keys that `config set` accepts
var Keys = []string{"server.url", "grpc.addr", "user.token", "user.id"}

// Load reads path, or ~/.booktrack.yaml when path is empty. A missing file
// is fine; defaults apply.
func Load(path string) error {
	viper.SetDefault("server.url", DefaultServerURL)
	viper.SetDefault("grpc.addr", DefaultGRPCAddr)
	viper.SetDefault("user.token", "")

	viper.SetEnvPrefix("BOOKTRACK_CLI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to locate home directory: %w", err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Path is where Save writes
func Path() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return configName + ".yaml"
	}
	return filepath.Join(home, configName+".yaml")
}

// Set validates key and stores value in memory
func Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, k := range Keys {
		if k == key {
			viper.Set(key, value)
			return nil
		}
	}
	return fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(Keys, ", "))
}

// Save writes the current settings to Path
func Save() error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Token returns the stored bearer token
func Token() (string, error) {
	token := strings.TrimSpace(viper.GetString("user.token"))
	if token == "" {
		return "", ErrNotLoggedIn
	}
	return token, nil
}

// API returns an authenticated REST client
func API() (*apiclient.Client, error) {
	token, err := Token()
	if err != nil {
		return nil, err
	}
	return apiclient.NewClient(strings.TrimRight(viper.GetString("server.url"), "/"), token), nil
}

// Rankings returns an authenticated gRPC ranking client. The caller closes it.
func Rankings() (*grpcclient.Client, error) {
	token, err := Token()
	if err != nil {
		return nil, err
	}
	return grpcclient.NewClient(viper.GetString("grpc.addr"), token)
}
