package shell

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultStartupFile is the optional static-config file loaded once at
// shell startup, before the persisted history/alias/var state. It is
// meant for settings a user wants checked into dotfiles rather than
// mutated by the running shell, so it is read-only to the shell itself.
const DefaultStartupFile = ".mysh.yaml"

// startupConfig is the shape of DefaultStartupFile.
type startupConfig struct {
	Vars    map[string]string `yaml:"vars"`
	Aliases map[string]string `yaml:"aliases"`
}

// LoadStartupFile seeds env with the vars and aliases declared in a
// YAML dotfile, if one exists at path. A missing file is not an error;
// the shell runs fine with no static config at all. Values loaded here
// are overridden by whatever the persisted history/config file later
// restores, since that reflects the user's actual last session.
func LoadStartupFile(path string, env *Env) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read startup file: %w", err)
	}

	var cfg startupConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse startup file %s: %w", path, err)
	}

	for name, value := range cfg.Vars {
		env.SetVar(name, value)
	}
	for name, value := range cfg.Aliases {
		env.SetAlias(name, value)
	}
	return nil
}
