package registry

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// AliasFile is the name of the alias file inside the installer directory.
const AliasFile = "aliases"

// LoadAliases reads {dir}/aliases and returns its alias-to-manager
// mappings. Each line has the form "alias=manager". If the file does not
// exist, an empty map is returned without an error. Invalid or malformed
// lines are silently skipped.
func LoadAliases(dir string) (map[string]string, error) {
	aliases := make(map[string]string)

	f, err := os.Open(filepath.Join(dir, AliasFile))
	if err != nil {
		if os.IsNotExist(err) {
			return aliases, nil
		}
		return aliases, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		alias := strings.TrimSpace(line[:idx])
		manager := strings.TrimSpace(line[idx+1:])
		if alias == "" || manager == "" {
			continue
		}

		aliases[alias] = manager
	}

	if err := scanner.Err(); err != nil {
		return aliases, err
	}

	return aliases, nil
}

// ApplyAliases loads {dir}/aliases into r and returns how many aliases were
// added.
func (r *Registry) ApplyAliases(dir string) (int, error) {
	aliases, err := LoadAliases(dir)
	if err != nil {
		return 0, err
	}
	for alias, manager := range aliases {
		r.AddAlias(manager, alias)
	}
	return len(aliases), nil
}
