package cli

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/authgate"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/client"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/storage"
	"github.com/spf13/cobra"
)

type app struct {
	serverURL string
	home      string
}

func NewRootCmd(version string) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ecochurch",
		Short:         "Record and follow up church visitor appointments",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.serverURL, "server", envOr("ECOCHURCH_SERVER", "http://localhost:3000"), "Server base URL")
	root.PersistentFlags().StringVar(&a.home, "home", defaultHome(), "Directory holding the session slot")

	root.AddCommand(a.newRegisterCmd(), a.newLoginCmd(), a.newLogoutCmd(), a.newWhoamiCmd(), a.newProfileCmd())
	root.AddCommand(a.newListCmd(), a.newAddCmd(), a.newEditCmd(), a.newCompleteCmd(), a.newExportCmd(), a.newImportCmd())
	return root
}

func (a *app) session() (*authgate.Session, error) {
	medium, err := storage.NewFileMedium(a.home)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return authgate.NewSession(storage.NewStore(medium, logger, "")), nil
}

func (a *app) client() *client.Client {
	return client.New(a.serverURL)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func defaultHome() string {
	if v := os.Getenv("ECOCHURCH_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ecochurch"
	}
	return filepath.Join(home, ".ecochurch")
}
