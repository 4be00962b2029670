package settings

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/domain"
)

// ProviderRepository stores one row per configured AI provider.
type ProviderRepository struct {
	db  dbtx
	log zerolog.Logger
}

// NewProviderRepository creates a provider repository
func NewProviderRepository(db *sql.DB, log zerolog.Logger) *ProviderRepository {
	return &ProviderRepository{
		db:  db,
		log: log.With().Str("repo", "providers").Logger(),
	}
}

const providerColumns = `name, api_key, model, active, allocation_ceiling, persona, updated_at`

// ListProviders returns every stored provider in display order.
func (r *ProviderRepository) ListProviders(ctx context.Context) ([]domain.ProviderConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+providerColumns+` FROM provider_configs`)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	var out []domain.ProviderConfig
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate providers: %w", err)
	}

	order := make(map[domain.ProviderName]int, len(domain.AllProviders))
	for i, name := range domain.AllProviders {
		order[name] = i
	}
	sort.SliceStable(out, func(i, j int) bool {
		return order[out[i].Name] < order[out[j].Name]
	})
	return out, nil
}

// ActiveProviders returns the providers that take part in trading cycles.
func (r *ProviderRepository) ActiveProviders(ctx context.Context) ([]domain.ProviderConfig, error) {
	all, err := r.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, p := range all {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

// Get returns one provider or ErrProviderNotFound.
func (r *ProviderRepository) Get(ctx context.Context, name domain.ProviderName) (*domain.ProviderConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM provider_configs WHERE name = ?`, string(name))
	p, err := scanProvider(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", name, ErrProviderNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert inserts or replaces a provider configuration.
func (r *ProviderRepository) Upsert(ctx context.Context, p domain.ProviderConfig) error {
	if !p.Name.IsValid() {
		return fmt.Errorf("unknown provider: %q", p.Name)
	}
	if p.AllocationCeiling < 0 {
		return fmt.Errorf("allocation ceiling must not be negative, got %.2f", p.AllocationCeiling)
	}
	if p.Persona == "" {
		p.Persona = domain.PersonaBalanced
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO provider_configs (`+providerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			api_key = excluded.api_key,
			model = excluded.model,
			active = excluded.active,
			allocation_ceiling = excluded.allocation_ceiling,
			persona = excluded.persona,
			updated_at = excluded.updated_at
	`, string(p.Name), p.APIKey, p.Model, boolToInt(p.Active), p.AllocationCeiling, string(p.Persona), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert provider %s: %w", p.Name, err)
	}
	return nil
}

// Seed inserts roster entries that are not stored yet. Stored rows win so
// changes made at runtime survive restarts.
func (r *ProviderRepository) Seed(ctx context.Context, roster []domain.ProviderConfig) (int, error) {
	inserted := 0
	now := formatTime(time.Now())
	for _, p := range roster {
		if p.Persona == "" {
			p.Persona = domain.PersonaBalanced
		}
		res, err := r.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO provider_configs (`+providerColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, string(p.Name), p.APIKey, p.Model, boolToInt(p.Active), p.AllocationCeiling, string(p.Persona), now)
		if err != nil {
			return inserted, fmt.Errorf("failed to seed provider %s: %w", p.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if inserted > 0 {
		r.log.Info().Int("inserted", inserted).Msg("Seeded provider roster")
	}
	return inserted, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProvider(s scanner) (domain.ProviderConfig, error) {
	var (
		p                      domain.ProviderConfig
		name, persona, updated string
		active                 int
	)
	if err := s.Scan(&name, &p.APIKey, &p.Model, &active, &p.AllocationCeiling, &persona, &updated); err != nil {
		if err == sql.ErrNoRows {
			return p, err
		}
		return p, fmt.Errorf("failed to scan provider: %w", err)
	}
	p.Name = domain.ProviderName(name)
	p.Active = active == 1
	p.Persona = domain.Persona(persona)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}
