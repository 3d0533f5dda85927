package file

import (
	"fmt"
	"os"
)

// migration transforms a decoded config document from one version to the
// next. Documents are generic maps so that one migration serves both
// encodings.
type migration struct {
	from    int
	to      int
	migrate func(doc map[string]any) (map[string]any, error)
}

// migrations is the ordered list of config migrations.
// Empty for now: version 1 is the initial format.
var migrations []migration

// migrateFile runs all necessary migrations on the config file.
// Before each migration step, the current file is backed up.
func migrateFile(path string, c codec, data []byte, fromVersion int) error {
	current := fromVersion

	for _, m := range migrations {
		if m.from != current {
			continue
		}

		backupPath := fmt.Sprintf("%s.v%d.bak", path, current)
		if err := os.WriteFile(backupPath, data, 0o640); err != nil {
			return fmt.Errorf("backup before migration v%d→v%d: %w", m.from, m.to, err)
		}

		var doc map[string]any
		if err := c.unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode for migration v%d→v%d: %w", m.from, m.to, err)
		}
		doc, err := m.migrate(doc)
		if err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", m.from, m.to, err)
		}
		doc["version"] = m.to
		migrated, err := c.marshal(doc)
		if err != nil {
			return fmt.Errorf("encode migration v%d→v%d: %w", m.from, m.to, err)
		}

		tmpPath := path + ".tmp"
		if err := os.WriteFile(tmpPath, migrated, 0o640); err != nil {
			return fmt.Errorf("write migrated config: %w", err)
		}
		if err := os.Rename(tmpPath, path); err != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("rename migrated config: %w", err)
		}

		data = migrated
		current = m.to
	}

	if current != currentVersion {
		return fmt.Errorf("no migration path from version %d to %d", fromVersion, currentVersion)
	}
	return nil
}
