// Command squashstat squashes every token of its input into one-word
// length-prefixed values and reports the memory footprint against plain
// []byte and string headers.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/squash/alloc"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var (
		backendName string
		splitMode   string
		noSentinel  bool
		interactive bool
		verbose     bool
	)

	flagSet := pflag.NewFlagSet("squashstat", pflag.ContinueOnError)
	flagSet.StringVar(&backendName, "backend", "heap", "block backend: heap or manual")
	flagSet.StringVar(&splitMode, "split", "words", "token boundaries: words or lines")
	flagSet.BoolVar(&noSentinel, "no-sentinel", false, "allocate a block for every empty token")
	flagSet.BoolVarP(&interactive, "interactive", "i", false, "interactive inspector")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log allocator activity to stderr")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer logger.Sync()
		alloc.SetLogger(logger)
	}

	var backend alloc.Backend
	switch backendName {
	case "heap":
		backend = alloc.Heap{}
	case "manual":
		arena := alloc.NewManual()
		defer arena.Close()
		backend = arena
	default:
		return fmt.Errorf("unknown backend %q (want heap or manual)", backendName)
	}

	var split bufio.SplitFunc
	switch splitMode {
	case "words":
		split = bufio.ScanWords
	case "lines":
		split = bufio.ScanLines
	default:
		return fmt.Errorf("unknown split mode %q (want words or lines)", splitMode)
	}

	counting := alloc.NewCounting(backend)
	prev := alloc.SetDefault(alloc.New(counting, alloc.WithSentinel(!noSentinel)))
	defer alloc.SetDefault(prev)

	if interactive {
		return runInteractive(counting)
	}

	var c corpus
	defer c.free()

	files := flagSet.Args()
	if len(files) == 0 {
		if err := c.scan(stdin, split); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}
	for _, name := range files {
		if err := scanFile(&c, name, split); err != nil {
			return err
		}
	}

	rep := newReport(c.tally, counting.Stats())
	rep.render(stdout, isTerminal(stdout))

	c.free()
	if st := counting.Stats(); st.Live != 0 || st.Rejected != 0 {
		return fmt.Errorf("allocator imbalance: %d blocks live, %d rejected frees", st.Live, st.Rejected)
	}
	return nil
}

func scanFile(c *corpus, name string, split bufio.SplitFunc) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	if err := c.scan(f, split); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `squashstat squashes every token of its input and reports the footprint.

Usage:
  squashstat [flags] [file...]

With no files, tokens are read from stdin.

Examples:
  # Footprint of the words of a source tree
  cat *.go | squashstat

  # Line tokens, off-heap blocks, no shared empty value
  squashstat --split lines --backend manual --no-sentinel notes.txt

  # Type values and watch their layout
  squashstat -i

Flags:
`)
	flagSet.PrintDefaults()
}
