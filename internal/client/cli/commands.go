package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/filevault/internal/netx"
	"github.com/dustin/go-humanize"
)

var errUsage = errors.New("wrong number of arguments")

var listKeys = map[string]struct{}{
	"search": {}, "file_type": {}, "min_size": {}, "max_size": {}, "start_date": {}, "end_date": {},
}

func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: upload <path>", errUsage)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := a.api.Upload(ctx, filepath.Base(args[0]), f)
	if err != nil {
		return err
	}
	a.printFile(info)
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	q := url.Values{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if _, known := listKeys[k]; !ok || !known {
			return fmt.Errorf("bad filter %q", arg)
		}
		q.Set(k, v)
	}

	files, err := a.api.List(ctx, q)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE\tUPLOADED\tDEDUP")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n",
			f.ID, f.OriginalFilename, f.FileType, humanize.IBytes(uint64(f.Size)),
			humanize.Time(f.UploadedAt), f.IsReference)
	}
	return tw.Flush()
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: show <id>", errUsage)
	}
	info, err := a.api.Get(ctx, args[0])
	if err != nil {
		return err
	}
	a.printFile(info)
	return nil
}

// Download writes into a temp file next to the destination and renames it
// once the transfer completes.
func (a *App) Download(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: download <id> <path>", errUsage)
	}
	dest := args[1]

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fv-download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	n, err := a.api.Download(ctx, args[0], tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved %s to %s\n", humanize.IBytes(uint64(n)), dest)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete <id>", errUsage)
	}
	if err := a.api.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", args[0])
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	st, err := a.api.Stats(ctx)
	if err != nil {
		return err
	}
	quota := "unlimited"
	if st.QuotaLimit > 0 {
		quota = humanize.IBytes(uint64(st.QuotaLimit))
	}
	fmt.Fprintf(a.out, "files:    %d\n", st.TotalFiles)
	fmt.Fprintf(a.out, "stored:   %s of %s (%.2f%%)\n", humanize.IBytes(uint64(st.OriginalStorageUsed)), quota, st.UsedPercentage)
	fmt.Fprintf(a.out, "logical:  %s\n", humanize.IBytes(uint64(st.LogicalStorageUsed)))
	fmt.Fprintf(a.out, "saved:    %s (%.2f%%)\n", humanize.IBytes(uint64(st.SpaceSaved)), st.SavingsPercentage)
	return nil
}

func (a *App) Types(ctx context.Context) error {
	types, err := a.api.FileTypes(ctx)
	if err != nil {
		return err
	}
	for _, t := range types {
		fmt.Fprintln(a.out, t)
	}
	return nil
}

func (a *App) printFile(f *netx.FileInfo) {
	fmt.Fprintf(a.out, "id:       %s\n", f.ID)
	fmt.Fprintf(a.out, "name:     %s\n", f.OriginalFilename)
	fmt.Fprintf(a.out, "type:     %s\n", f.FileType)
	fmt.Fprintf(a.out, "size:     %s\n", humanize.IBytes(uint64(f.Size)))
	fmt.Fprintf(a.out, "sha256:   %s\n", f.FileHash)
	fmt.Fprintf(a.out, "uploaded: %s\n", f.UploadedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(a.out, "dedup:    %t\n", f.IsReference)
}
