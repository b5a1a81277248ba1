package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/url"
	"os"

	"github.com/dmitrijs2005/filevault/internal/client/config"
	"github.com/dmitrijs2005/filevault/internal/netx"
)

// filesAPI is the part of netx.Client the commands use.
type filesAPI interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*netx.FileInfo, error)
	List(ctx context.Context, q url.Values) ([]netx.FileInfo, error)
	Get(ctx context.Context, id string) (*netx.FileInfo, error)
	Download(ctx context.Context, id string, w io.Writer) (int64, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*netx.Stats, error)
	FileTypes(ctx context.Context) ([]string, error)
}

type App struct {
	api   filesAPI
	owner string
	in    io.Reader
	out   io.Writer
}

func NewApp(cfg *config.Config) (*App, error) {
	if cfg.OwnerID == "" {
		return nil, errors.New("owner id is required, pass -u")
	}
	c, err := netx.NewClient(cfg.ServerURL, cfg.OwnerID, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return &App{api: c, owner: cfg.OwnerID, in: os.Stdin, out: os.Stdout}, nil
}

// Run starts the REPL and returns when input ends, the user exits or ctx is
// cancelled.
func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to filevault CLI (type 'help' for commands)")
	runREPL(ctx, a, func() string { return a.owner }, bufio.NewScanner(a.in))
}
