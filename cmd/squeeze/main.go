// Command squeeze compresses files with an optimal-parsing DEFLATE
// compressor, writing gzip, zlib, or raw DEFLATE output.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/packflate/pack"
	"github.com/packflate/pack/flate"
)

var version = "dev"

var (
	configPath string
	verbose    bool
	toStdout   bool
)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"iterations":      "iterations",
	"max-stall":       "max_stall",
	"randomize-every": "randomize_every",
	"search-len":      "search_len",
	"block-size":      "block_size",
	"greedy":          "greedy_level",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "squeeze [file...]",
	Short: "Compress files with optimal DEFLATE parsing",
	Long: `squeeze compresses each named file to file.gz (or .zlib, .deflate),
spending extra time to find a smaller encoding than a greedy compressor.
With no files, or when a file is "-", it compresses standard input to
standard output.

Examples:
  # Compress a file to data.txt.gz
  squeeze data.txt

  # More rounds, zlib output, to stdout
  squeeze --iterations 50 --format zlib -c data.txt > data.zlib`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runSqueeze,
}

func init() {
	d := defaultConfig()
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML config file")
	f.BoolVarP(&verbose, "verbose", "v", false, "log each optimization round")
	f.BoolVarP(&toStdout, "stdout", "c", false, "write to standard output")
	f.Int("iterations", d.Iterations, "maximum optimization rounds per block after the fixed-tree round (negative: none)")
	f.Int("max-stall", d.MaxStall, "stop after this many rounds without improvement (negative: never)")
	f.Int("randomize-every", d.RandomizeEvery, "perturb the statistics every N rounds (negative: never)")
	f.Int("search-len", d.SearchLen, "hash chain entries to examine per position")
	f.Int("block-size", d.BlockSize, "bytes per DEFLATE block")
	f.Int("greedy", d.GreedyLevel, "use the greedy compressor at this level (1-9) instead")
	f.String("format", d.Format, "output format: gzip, zlib, or deflate")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runSqueeze(cmd *cobra.Command, args []string) error {
	overrides := make(map[string]any)
	for name, key := range flagKeys {
		if cmd.Flags().Changed(name) {
			v, err := cmd.Flags().GetInt(name)
			if err != nil {
				return err
			}
			overrides[key] = v
		}
	}
	if cmd.Flags().Changed("format") {
		v, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}
		overrides["format"] = v
	}

	cfg, err := loadConfig(configPath, overrides)
	if err != nil {
		return err
	}

	logger, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	format, err := flate.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		args = []string{"-"}
	}
	for _, name := range args {
		if err := compressFile(cfg, format, logger, name); err != nil {
			logger.Error("compression failed", zap.String("file", name), zap.Error(err))
			return err
		}
	}
	return nil
}

// newWriter returns a pack.Writer configured by cfg, writing to w. For gzip
// output, hdr supplies the header fields.
func newWriter(cfg *Config, format flate.Format, hdr flate.GZIPHeader, logger *zap.Logger, w io.Writer) *pack.Writer {
	var mf pack.MatchFinder
	if cfg.GreedyLevel > 0 {
		mf = flate.NewMatchFinder(cfg.GreedyLevel)
	} else {
		mf = flate.NewSqueezeMatchFinder(cfg.squeezeParser(logger), cfg.SearchLen)
	}
	enc := flate.NewFormatEncoder(format)
	if format == flate.GZIP {
		enc = flate.NewGZIPEncoderWithHeader(hdr)
	}
	return &pack.Writer{
		Dest:        w,
		MatchFinder: mf,
		Encoder:     enc,
		BlockSize:   cfg.BlockSize,
	}
}

// compressFile compresses the named file, or standard input if name is "-".
// If an output file was created and compression fails, the file is removed.
func compressFile(cfg *Config, format flate.Format, logger *zap.Logger, name string) (err error) {
	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	var hdr flate.GZIPHeader
	outName := "-"

	if name != "-" {
		f, oerr := os.Open(name)
		if oerr != nil {
			return fmt.Errorf("failed to open %s: %w", name, oerr)
		}
		defer f.Close()
		in = f
		hdr.Name = filepath.Base(name)
		if fi, serr := f.Stat(); serr == nil {
			hdr.ModTime = fi.ModTime()
		}

		if !toStdout {
			outName = name + format.Extension()
			of, cerr := os.Create(outName)
			if cerr != nil {
				return fmt.Errorf("failed to create %s: %w", outName, cerr)
			}
			out = of
			defer func() {
				if cerr := of.Close(); cerr != nil && err == nil {
					err = fmt.Errorf("failed to close %s: %w", outName, cerr)
				}
				if err != nil {
					os.Remove(outName)
				}
			}()
		}
	}

	start := time.Now()
	cw := &countingWriter{w: out}
	w := newWriter(cfg, format, hdr, logger, cw)
	n, err := io.Copy(w, in)
	if err != nil {
		return fmt.Errorf("failed to compress %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish %s: %w", name, err)
	}

	logger.Info("compressed",
		zap.String("file", name),
		zap.String("output", outName),
		zap.String("format", format.String()),
		zap.Int64("in_bytes", n),
		zap.Int64("out_bytes", cw.n),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
