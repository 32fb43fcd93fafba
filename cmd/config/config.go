package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rcanpahali/BirdNet/internal/conf"
)

const maskedValue = "********"

// secretKeys are masked in the printed configuration.
var secretKeys = []string{
	"database.mysql.password",
	"sentry.dsn",
}

// Command creates the config command.
func Command(_ *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the merged defaults, config file, environment and flag values as YAML. Secrets are masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := Render(viper.AllSettings())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// Render encodes settings as YAML with secret values masked.
func Render(settings map[string]any) ([]byte, error) {
	for _, key := range secretKeys {
		maskKey(settings, strings.Split(key, "."))
	}
	out, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("error encoding settings: %w", err)
	}
	return out, nil
}

func maskKey(m map[string]any, path []string) {
	if len(path) == 0 {
		return
	}
	v, ok := m[path[0]]
	if !ok {
		return
	}
	if len(path) == 1 {
		if s, isString := v.(string); !isString || s != "" {
			m[path[0]] = maskedValue
		}
		return
	}
	if nested, isMap := v.(map[string]any); isMap {
		maskKey(nested, path[1:])
	}
}
