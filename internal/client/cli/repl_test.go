package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
	args  [][]string
	err   error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return f.err
}

func (f *fakeExec) Upload(_ context.Context, a []string) error   { return f.record("upload", a) }
func (f *fakeExec) List(_ context.Context, a []string) error     { return f.record("list", a) }
func (f *fakeExec) Show(_ context.Context, a []string) error     { return f.record("show", a) }
func (f *fakeExec) Download(_ context.Context, a []string) error { return f.record("download", a) }
func (f *fakeExec) Delete(_ context.Context, a []string) error   { return f.record("delete", a) }
func (f *fakeExec) Stats(_ context.Context) error                { return f.record("stats", nil) }
func (f *fakeExec) Types(_ context.Context) error                { return f.record("types", nil) }

func capturePrints(t *testing.T) *[]string {
	t.Helper()
	var out []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		out = append(out, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &out
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := capturePrints(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"",
		"upload ./a.txt",
		"l search=report",
		"show f1",
		"download f1 /tmp/x",
		"delete f1",
		"stats",
		"types",
		"bogus",
		"exit",
		"stats",
	}, "\n"))

	fx := &fakeExec{}
	runREPL(context.Background(), fx, func() string { return "alice" }, bufio.NewScanner(input))

	assert.Equal(t, []string{"upload", "list", "show", "download", "delete", "stats", "types"}, fx.calls)
	assert.Equal(t, []string{"./a.txt"}, fx.args[0])
	assert.Equal(t, []string{"f1", "/tmp/x"}, fx.args[3])
	assert.Contains(t, *out, helpText)
	assert.Contains(t, *out, "Unknown command: bogus")
	assert.Contains(t, *out, "Bye!")
	assert.Contains(t, *out, "fv (alice)>")
}

func TestRunREPL_PrintsErrorsAndContinues(t *testing.T) {
	out := capturePrints(t)

	fx := &fakeExec{err: errors.New("server returned 404")}
	runREPL(context.Background(), fx, func() string { return "" }, bufio.NewScanner(strings.NewReader("show x\nstats\n")))

	assert.Equal(t, []string{"show", "stats"}, fx.calls)
	assert.Contains(t, *out, "Error: server returned 404")
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	capturePrints(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fx := &fakeExec{}
	runREPL(ctx, fx, func() string { return "" }, bufio.NewScanner(strings.NewReader("stats\n")))
	assert.Empty(t, fx.calls)
}
