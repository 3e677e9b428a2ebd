// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"sort"

	"fibr-cli/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage fibr configuration",
	Long: `Manage fibr configuration.

Configuration is stored in:
  - Linux: ~/.config/fibr/config.yaml
  - macOS: ~/Library/Application Support/fibr/config.yaml
  - Windows: %APPDATA%\fibr\config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getConfigValue(args[0])
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(args[0], args[1])
		},
	})
}

func showConfig() error {
	cfg, err := config.Load(config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("Current Configuration"))
	fmt.Println()

	path, pathErr := config.Path()
	if pathErr == nil && fileExists(path) {
		fmt.Printf("%s: %s\n", NameStyle.Render("Config file"), path)
	} else {
		fmt.Printf("%s: %s\n", NameStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Println()

	root := cfg.Root
	if root == "" {
		root = "(working directory)"
	}
	fmt.Printf("%s: %s\n", NameStyle.Render("root"), SuccessStyle.Render(root))
	fmt.Printf("%s: %s\n", NameStyle.Render("shell"), SuccessStyle.Render(cfg.Shell))
	fmt.Printf("%s: %s\n", NameStyle.Render("pool_size"), SuccessStyle.Render(fmt.Sprint(cfg.PoolSize)))
	fmt.Printf("%s: %s\n", NameStyle.Render("concurrency"), SuccessStyle.Render(fmt.Sprint(cfg.Concurrency)))
	fmt.Printf("%s: %s\n", NameStyle.Render("check_timeout"), SuccessStyle.Render(cfg.CheckTimeout.String()))
	fmt.Printf("%s: %s\n", NameStyle.Render("cache_ttl"), SuccessStyle.Render(cfg.CacheTTL.String()))
	fmt.Printf("%s: %s\n", NameStyle.Render("verbose"), SuccessStyle.Render(fmt.Sprint(cfg.Verbose)))

	if len(cfg.Modules) > 0 {
		fmt.Println()
		fmt.Println(SubtitleStyle.Render("Module overrides:"))
		names := make([]string, 0, len(cfg.Modules))
		for name := range cfg.Modules {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ov := cfg.Modules[name]
			detail := ""
			if ov.Enabled != nil {
				detail = fmt.Sprintf("enabled=%v", *ov.Enabled)
			}
			if len(ov.ModuleConfig) > 0 {
				if detail != "" {
					detail += ", "
				}
				detail += fmt.Sprintf("%d nested key(s)", len(ov.ModuleConfig))
			}
			fmt.Printf("  %s: %s\n", NameStyle.Render(name), VerboseStyle.Render(detail))
		}
	}
	return nil
}

func getConfigValue(key string) error {
	path := cfgFile
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(config.ConfigFileExt)
	if fileExists(path) {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	val := v.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Println(val)
	return nil
}

// setConfigValue writes one key into the config file, creating it when
// missing and preserving existing keys.
func setConfigValue(key, value string) error {
	path := cfgFile
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return err
		}
		if err := config.EnsureConfigDir(); err != nil {
			return err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(config.ConfigFileExt)
	if fileExists(path) {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v.Set(key, value)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	fmt.Printf("%s %s = %s\n", SuccessStyle.Render("Set"), NameStyle.Render(key), value)
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
