package app

import (
	"context"
	"errors"
	"fmt"

	"focusquest/internal/config"
	"focusquest/internal/repo"
)

// ResolveConfig loads the stored settings, seeding the defaults on first run
// so every command sees a validated config.
func ResolveConfig(ctx context.Context, r repo.Repo) (*config.Config, error) {
	cfg, err := r.GetSettings(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	seed := config.Default()
	if err := r.UpsertSettings(ctx, seed); err != nil {
		return nil, fmt.Errorf("seed settings: %w", err)
	}
	return seed, nil
}
