package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tplearn/tplearn-bot/config"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/persistence"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	var (
		envFile string
		from    string
		to      string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy the bot documents from one store backend to another",
		Long: `Copy every persisted document (WORKS, GUILD, TODAY, TODAY-TH) between
backends. Connection settings for both sides come from the environment,
so for example a redis deployment can be moved to postgres with:

  tplearn migrate --from redis --to postgres`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			src, dst, err := migrationPair(cfg.Store, from, to)
			if err != nil {
				return err
			}
			log := setupLogger(cfg)

			var stores [2]persistence.Backend
			g, gctx := errgroup.WithContext(cmd.Context())
			for i, sc := range []config.StoreConfig{src, dst} {
				g.Go(func() error {
					s, err := persistence.Open(gctx, sc, log)
					if err != nil {
						return fmt.Errorf("open %s: %w", sc.Backend, err)
					}
					stores[i] = s
					return nil
				})
			}
			err = g.Wait()
			defer func() {
				for _, s := range stores {
					if s != nil {
						_ = s.Close()
					}
				}
			}()
			if err != nil {
				return err
			}

			n, err := persistence.Copy(cmd.Context(), stores[0], stores[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s copied %d documents from %s to %s\n",
				color.New(color.FgGreen).Sprint("✓"), n, src.Backend, dst.Backend)
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before the environment")
	cmd.Flags().StringVar(&from, "from", "", "source backend")
	cmd.Flags().StringVar(&to, "to", "", "destination backend")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// migrationPair derives the two store configurations from the shared one.
func migrationPair(base config.StoreConfig, from, to string) (config.StoreConfig, config.StoreConfig, error) {
	src, dst := base, base
	src.Backend = config.StoreBackend(from)
	dst.Backend = config.StoreBackend(to)

	switch {
	case !src.Backend.Valid() || !dst.Backend.Valid():
		return src, dst, fmt.Errorf("backends must be one of %v", config.StoreBackends)
	case src.Backend == dst.Backend:
		return src, dst, errors.New("source and destination must differ")
	case src.Backend == config.StoreMemory || dst.Backend == config.StoreMemory:
		return src, dst, errors.New("the memory backend does not persist")
	case (src.Backend == config.StorePostgres || dst.Backend == config.StorePostgres) && base.DatabaseURL == "":
		return src, dst, errors.New("DATABASE_URL is required for the postgres backend")
	}
	return src, dst, nil
}
