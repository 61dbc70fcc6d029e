package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/importer"
)

var setupDBCmd = &cobra.Command{
	Use:   "setup-db",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("schema ready")
		return nil
	},
}

var importPath string

var importPostsCmd = &cobra.Command{
	Use:   "import-posts",
	Short: "Load tracked posts from the tracking sheet export",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path := importPath
		if path == "" {
			path = cfg.Import.Path
		}

		posts, err := importer.LoadPosts(path)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertPosts(ctx, posts)
		if err != nil {
			return eris.Wrap(err, "import posts")
		}
		zap.L().Info("import complete",
			zap.String("path", path),
			zap.Int("rows", len(posts)),
			zap.Int64("upserted", n),
		)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print table counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	importPostsCmd.Flags().StringVar(&importPath, "path", "", "XLSX or CSV export (default from config import.path)")
	rootCmd.AddCommand(setupDBCmd, importPostsCmd, statusCmd)
}
