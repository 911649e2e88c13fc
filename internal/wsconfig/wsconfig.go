// Package wsconfig loads a single workspace's definition file: the
// settings a workspace.Client builder needs before it can construct
// its extensions (data directory, bind address for the relay
// extension, which extensions to attach). One viper instance per
// config file, yaml/toml/json all accepted via SetConfigFile's
// extension sniffing.
package wsconfig

import (
	"fmt"

	"github.com/spf13/viper"
)

// Definition is the on-disk shape of one workspace's configuration.
type Definition struct {
	ID         string   `mapstructure:"id"`
	DataDir    string   `mapstructure:"data_dir"`
	BindAddr   string   `mapstructure:"bind_addr"`
	Bootstrap  bool     `mapstructure:"bootstrap"`
	JoinAddr   string   `mapstructure:"join_addr"`
	Extensions []string `mapstructure:"extensions"`
}

// Load reads a workspace definition from path. The format (yaml, toml,
// or json) is inferred from the file extension by viper.
//
// Environment variables prefixed WORKSPACE_ override fields whose key
// appears in the config file (e.g. WORKSPACE_BIND_ADDR overrides
// bind_addr), taking precedence over the file's value.
func Load(path string) (*Definition, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("WORKSPACE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("wsconfig: read %s: %w", path, err)
	}

	var def Definition
	if err := v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("wsconfig: unmarshal %s: %w", path, err)
	}
	if def.ID == "" {
		return nil, fmt.Errorf("wsconfig: %s: missing id", path)
	}
	return &def, nil
}
