package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/intakebot/core/logger"
)

// SeedFile is the on-disk shape of a catalog seed.
type SeedFile struct {
	Offerings []Offering `yaml:"offerings"`
}

// LoadSeedFile parses and validates a seed file.
func LoadSeedFile(path string) (SeedFile, error) {
	var sf SeedFile
	data, err := os.ReadFile(path)
	if err != nil {
		return sf, fmt.Errorf("read catalog seed: %w", err)
	}
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("parse catalog seed %s: %w", path, err)
	}
	for i := range sf.Offerings {
		o := &sf.Offerings[i]
		o.Name = strings.TrimSpace(o.Name)
		if o.Name == "" {
			return sf, fmt.Errorf("catalog seed %s: offering #%d has no name", path, i+1)
		}
		if n := len([]rune(o.Name)); n > 100 {
			return sf, fmt.Errorf("catalog seed %s: offering %q name is %d characters, max 100", path, o.Name, n)
		}
	}
	return sf, nil
}

// Seeder fills an empty offerings table from a YAML file.
// A table that already has rows is left alone.
type Seeder struct {
	Path string
}

// Seed implements bootstrap.Seeder.
func (s Seeder) Seed(ctx context.Context, db *sqlx.DB) error {
	if strings.TrimSpace(s.Path) == "" {
		return nil
	}
	sf, err := LoadSeedFile(s.Path)
	if err != nil {
		return err
	}
	n, err := NewRepository(db).Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info(ctx, "db.seed", "catalog.seed",
			slog.String("status", "skip"),
			slog.Int("count", n),
		)
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog seed: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, o := range sf.Offerings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO offerings (name, description) VALUES ($1, $2)`,
			o.Name, o.Description,
		); err != nil {
			return fmt.Errorf("catalog seed: insert %q: %w", o.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog seed: commit: %w", err)
	}
	logger.Info(ctx, "db.seed", "catalog.seed",
		slog.String("status", "ok"),
		slog.Int("count", len(sf.Offerings)),
		slog.String("file", s.Path),
	)
	return nil
}
