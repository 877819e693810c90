package runner

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/archdotdev/dagster-meltano-pipelines/component"
)

// CollectSSHKeys gathers the Git SSH private keys a pipeline needs: plugin
// keys in execution order, then the deprecated pipeline-level list, which
// logs a warning when used. "${VAR}" values are resolved; an unset reference
// is an error, since silently skipping a key would surface later as an
// opaque Git clone failure inside Meltano.
func CollectSSHKeys(logger *slog.Logger, p *component.Pipeline) ([]string, error) {
	var keys []string

	for _, plugin := range p.Plugins() {
		if plugin.GitSSHPrivateKey == "" {
			continue
		}
		key, isRef, set := component.ResolveEnvRef(plugin.GitSSHPrivateKey)
		if isRef && !set {
			return nil, fmt.Errorf("plugin %s: git_ssh_private_key references an unset environment variable", plugin.Name)
		}
		keys = append(keys, key)
	}

	if len(p.GitSSHPrivateKeys) > 0 {
		logger.Warn("pipeline-level git_ssh_private_keys is deprecated; set git_ssh_private_key on individual plugins",
			slog.String("pipeline", p.ID))
		for i, raw := range p.GitSSHPrivateKeys {
			key, isRef, set := component.ResolveEnvRef(raw)
			if isRef && !set {
				return nil, fmt.Errorf("ssh key %d references an unset environment variable", i)
			}
			keys = append(keys, key)
		}
	}

	return keys, nil
}

// SetupSSH materialises the keys as files and writes an ssh_config pointing
// at them, so Meltano's git invocations can authenticate via
// GIT_SSH_COMMAND="ssh -F <path>". It returns the config path and a cleanup
// function removing all key material. With no keys it returns an empty path
// and a no-op cleanup.
//
// Key files are written with mode 0600; literal "\n" sequences are replaced
// with newlines so keys can be passed through single-line environment
// variables, and a trailing newline is ensured because OpenSSH rejects keys
// without one.
func SetupSSH(keys []string) (string, func(), error) {
	if len(keys) == 0 {
		return "", func() {}, nil
	}

	dir, err := os.MkdirTemp("", "meltano-ssh-")
	if err != nil {
		return "", nil, fmt.Errorf("create ssh temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	var config strings.Builder
	for i, key := range keys {
		key = strings.ReplaceAll(key, `\n`, "\n")
		if !strings.HasSuffix(key, "\n") {
			key += "\n"
		}

		keyPath := filepath.Join(dir, fmt.Sprintf("id_rsa_%d", i))
		if err := os.WriteFile(keyPath, []byte(key), 0o600); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("write ssh key %d: %w", i, err)
		}

		config.WriteString("Host *\n")
		config.WriteString("    IdentityFile " + keyPath + "\n")
		config.WriteString("    IdentitiesOnly yes\n")
		config.WriteString("    StrictHostKeyChecking no\n")
		config.WriteString("    UserKnownHostsFile /dev/null\n\n")
	}

	configPath := filepath.Join(dir, "ssh_config")
	if err := os.WriteFile(configPath, []byte(config.String()), 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write ssh config: %w", err)
	}

	return configPath, cleanup, nil
}
