package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
)

// Build-time variables injected via ldflags.
var (
	Version        = "v0.0.0"
	CommitHash     = "dev"
	BuildTimestamp = "1970-01-01T00:00:00Z"
	Builder        = "unknown"
	GithubRepo     = "babs/pixconv"
)

func versionString() string {
	return fmt.Sprintf("pixconv %s-%s", Version, CommitHash)
}

func versionStringLong() string {
	return fmt.Sprintf("pixconv %s-%s (built %s using %s)\nhttps://github.com/%s\n",
		Version, CommitHash, BuildTimestamp, Builder, GithubRepo)
}

const usageCommands = `
Commands:
  convert  -to <fmt> [-from <fmt>] files...   convert files to another format
  compress files...                          re-encode JPG/PNG/WebP smaller
  watch    -from <fmt> -to <fmt> <dir>       convert files dropped into dir
  inspect  files.ico...                      print ICO directory entries

Conversions:
  jpg  -> png, webp, avif, ico
  png  -> jpg, webp, avif, ico, svg
  webp -> png, jpg, avif, ico, svg
  svg  -> png, jpg, webp, avif, ico
`

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmsgprefix)
	log.SetPrefix("[pixconv] ")

	showVersion := flag.Bool("version", false, "show version and exit")
	doUpdate := flag.Bool("update", false, "check and update to latest release")
	cfgFile := flag.String("config", "", "config file, .json or .yaml (default ~/.config/pixconv/config.json)")
	from := flag.String("from", "", "source format: png, jpg, webp, svg (default: detected)")
	to := flag.String("to", "", "target format: png, jpg, webp, avif, svg, ico")
	outDir := flag.String("out", "", "output directory (env: PIXCONV_OUTPUT_DIR)")
	workers := flag.Int("workers", 0, "parallel conversions (env: PIXCONV_WORKERS)")
	jpgQuality := flag.Int("jpg-quality", 0, "JPG quality 1-100 (env: PIXCONV_JPG_QUALITY)")
	svgJPGQuality := flag.Int("svg-jpg-quality", 0, "JPG quality 1-100 for SVG input (env: PIXCONV_SVG_JPG_QUALITY)")
	webpQuality := flag.Int("webp-quality", 0, "WebP quality 1-100 (env: PIXCONV_WEBP_QUALITY)")
	avifQuality := flag.Int("avif-quality", 0, "AVIF quality 1-100 (env: PIXCONV_AVIF_QUALITY)")
	compressQuality := flag.Int("quality", 0, "compressor quality 1-100 (env: PIXCONV_COMPRESS_QUALITY)")
	icoSize := flag.Int("ico-size", 0, "ICO size: 16, 32, 48, 64, 128, 256 (env: PIXCONV_ICO_SIZE)")
	svgScale := flag.Int("svg-scale", 0, "SVG raster scale: 1, 2, 3, 4 (env: PIXCONV_SVG_SCALE)")
	maxWidth := flag.Int("max-width", 0, "compressor max width (env: PIXCONV_MAX_WIDTH)")
	maxHeight := flag.Int("max-height", 0, "compressor max height (env: PIXCONV_MAX_HEIGHT)")
	resize := flag.Bool("resize", false, "compressor: fit within max-width x max-height (env: PIXCONV_RESIZE)")
	keepAspect := flag.Bool("keep-aspect", true, "compressor: keep aspect ratio when resizing (env: PIXCONV_KEEP_ASPECT)")
	avifFallback := flag.Bool("avif-fallback", false, "write WebP when AVIF encoding fails (env: PIXCONV_AVIF_FALLBACK)")
	overwrite := flag.Bool("overwrite", false, "replace existing output files (env: PIXCONV_OVERWRITE)")
	flag.Usage = func() {
		fmt.Print(versionStringLong())
		fmt.Fprintf(os.Stderr, "\nUsage: %s [options] <command> [args]\n%s\nOptions:\n", os.Args[0], usageCommands)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Print(versionStringLong())
		return
	}

	if *doUpdate {
		selfUpdate()
		return
	}

	if *cfgFile != "" {
		configPath = *cfgFile
	}
	cfg := loadConfig()

	// Only pass bool overrides when the flag was explicitly set; flag.Bool
	// cannot distinguish "not set" from the default value otherwise.
	o := overrides{
		OutputDir:       *outDir,
		Workers:         *workers,
		JPGQuality:      *jpgQuality,
		SVGJPGQuality:   *svgJPGQuality,
		WebPQuality:     *webpQuality,
		AVIFQuality:     *avifQuality,
		CompressQuality: *compressQuality,
		IcoSize:         *icoSize,
		SVGScale:        *svgScale,
		MaxWidth:        *maxWidth,
		MaxHeight:       *maxHeight,
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "resize":
			o.Resize = resize
		case "keep-aspect":
			o.KeepAspect = keepAspect
		case "avif-fallback":
			o.AVIFFallback = avifFallback
		case "overwrite":
			o.Overwrite = overwrite
		}
	})
	applyOverrides(&cfg, o)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "convert":
		err = runConvert(ctx, cfg, *from, *to, rest, os.Stdout)
	case "compress":
		err = runCompress(ctx, cfg, rest, os.Stdout)
	case "watch":
		err = runWatch(ctx, cfg, *from, *to, rest, os.Stdout)
	case "inspect":
		err = runInspect(rest, os.Stdout)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// errBatchFailed is returned when at least one file in a batch errored.
var errBatchFailed = errors.New("some files failed")

// resolveSource determines the source format from the flag or, when
// empty, from the first file's detected type.
func resolveSource(from string, files []InputFile) (Format, error) {
	if from != "" {
		return parseFormat(from)
	}
	if len(files) == 0 {
		return "", &ValidationError{Msg: "No files selected."}
	}
	f, ok := formatForMIME(files[0].MIME)
	if !ok {
		return "", fmt.Errorf("cannot detect format of %s (%s); use -from", files[0].Name, files[0].MIME)
	}
	return f, nil
}

// runConvert validates, converts and writes a set of files.
func runConvert(ctx context.Context, cfg Config, from, to string, paths []string, w io.Writer) error {
	if to == "" {
		return errors.New("convert needs -to")
	}
	dst, err := parseFormat(to)
	if err != nil {
		return err
	}
	files, err := readInputs(paths)
	if err != nil {
		return err
	}
	src, err := resolveSource(from, files)
	if err != nil {
		return err
	}
	if !supportedPair(src, dst) {
		return fmt.Errorf("%w: %s to %s", ErrUnsupportedPair, src.Label(), dst.Label())
	}
	rules, _ := rulesFor(src)
	if err := validateFiles(rules, files); err != nil {
		return err
	}

	opts := conversionOptions(cfg)
	batch := NewBatch(files)
	batch.Run(ctx, cfg.Workers, convertFunc(cfg, src, dst, opts))
	return report(batch, w)
}

// convertFunc returns the per-file transcode-and-write step.
func convertFunc(cfg Config, src, dst Format, opts Options) ProcessFunc {
	return func(_ context.Context, f InputFile) (Output, error) {
		res, err := transcode(src, dst, f.Data, opts)
		if err != nil {
			return Output{}, err
		}
		path, err := writeOutput(cfg.OutputDir, outputName(f.Name, res.Format, ""), res.Data, cfg.Overwrite)
		if err != nil {
			return Output{}, err
		}
		return Output{Result: res, Path: path}, nil
	}
}

// runCompress validates, compresses and writes a set of files.
func runCompress(ctx context.Context, cfg Config, paths []string, w io.Writer) error {
	files, err := readInputs(paths)
	if err != nil {
		return err
	}
	if err := validateFiles(compressRules, files); err != nil {
		return err
	}

	opts := compressOptions(cfg)
	batch := NewBatch(files)
	batch.Run(ctx, cfg.Workers, func(_ context.Context, f InputFile) (Output, error) {
		res, err := compressImage(f, opts)
		if err != nil {
			return Output{}, err
		}
		path, err := writeOutput(cfg.OutputDir, outputName(f.Name, res.Format, "-compressed"), res.Data, cfg.Overwrite)
		if err != nil {
			return Output{}, err
		}
		return Output{Result: res.Result, Path: path}, nil
	})
	return report(batch, w)
}

// runWatch converts files dropped into a directory until ctx is canceled.
func runWatch(ctx context.Context, cfg Config, from, to string, args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("watch needs exactly one directory")
	}
	if from == "" || to == "" {
		return errors.New("watch needs -from and -to")
	}
	src, err := parseFormat(from)
	if err != nil {
		return err
	}
	dst, err := parseFormat(to)
	if err != nil {
		return err
	}
	if !supportedPair(src, dst) {
		return fmt.Errorf("%w: %s to %s", ErrUnsupportedPair, src.Label(), dst.Label())
	}
	rules, _ := rulesFor(src)
	process := convertFunc(cfg, src, dst, conversionOptions(cfg))

	watcher, err := NewWatcher(args[0], rules, []string{dst.Ext()}, func(f InputFile) {
		batch := NewBatch([]InputFile{f})
		batch.Run(ctx, 1, process)
		for _, e := range batch.State() {
			fmt.Fprintln(w, formatEntryLine(e))
		}
	})
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}

// runInspect prints the ICO directory of each file.
func runInspect(paths []string, w io.Writer) error {
	if len(paths) == 0 {
		return errors.New("inspect needs at least one file")
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		entries, err := readICOHeader(data)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		fmt.Fprintf(w, "%s: %d image(s), %s\n", p, len(entries), formatFileSize(int64(len(data))))
		for i, e := range entries {
			kind := "BMP"
			if e.PNG {
				kind = "PNG"
			}
			fmt.Fprintf(w, "  #%d %dx%d %dbpp %s %s at offset %d\n",
				i, e.Width, e.Height, e.BitsPerPixel, kind, formatFileSize(int64(e.Size)), e.Offset)
		}
	}
	return nil
}

// report prints per-file lines and the summary.
func report(b *Batch, w io.Writer) error {
	for _, e := range b.State() {
		fmt.Fprintln(w, formatEntryLine(e))
	}
	s := b.Summary()
	if line := formatSummaryLine(s); line != "" {
		fmt.Fprintln(w, line)
	}
	if s.Errored > 0 {
		return errBatchFailed
	}
	return nil
}

// overrides holds CLI flag values for config overrides.
type overrides struct {
	OutputDir       string
	Workers         int
	JPGQuality      int
	SVGJPGQuality   int
	WebPQuality     int
	AVIFQuality     int
	CompressQuality int
	IcoSize         int
	SVGScale        int
	MaxWidth        int
	MaxHeight       int
	Resize          *bool
	KeepAspect      *bool
	AVIFFallback    *bool
	Overwrite       *bool
}

// applyIntOverride applies an int override from env var and flag.
// The env value is parsed with Atoi; both env and flag values are accepted only if valid returns true.
func applyIntOverride(target *int, envKey string, flagVal int, valid func(int) bool) {
	if v := os.Getenv(envKey); v != "" {
		if i, err := strconv.Atoi(v); err != nil || !valid(i) {
			log.Printf("Ignoring invalid %s=%q", envKey, v)
		} else {
			*target = i
		}
	}
	if valid(flagVal) {
		*target = flagVal
	}
}

// applyStringOverride applies a string override from env var and flag.
// Non-empty values are accepted only if valid returns true.
func applyStringOverride(target *string, envKey, flagName, flagVal string, valid func(string) bool) {
	if v := os.Getenv(envKey); v != "" {
		if !valid(v) {
			log.Printf("Ignoring invalid %s=%q", envKey, v)
		} else {
			*target = v
		}
	}
	if flagVal != "" {
		if !valid(flagVal) {
			log.Printf("Ignoring invalid -%s=%q", flagName, flagVal)
		} else {
			*target = flagVal
		}
	}
}

// parseEnvBool accepts true/1 and false/0.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}

// applyBoolOverride applies a tri-state bool override from env var and flag.
func applyBoolOverride(target *bool, envKey string, flagVal *bool) {
	if v := os.Getenv(envKey); v != "" {
		if b, ok := parseEnvBool(v); ok {
			*target = b
		} else {
			log.Printf("Ignoring invalid %s=%q", envKey, v)
		}
	}
	if flagVal != nil {
		*target = *flagVal
	}
}

// applyOverrides applies env vars and flags to config. Priority: flag > env > config file.
func applyOverrides(cfg *Config, o overrides) {
	positive := func(i int) bool { return i > 0 }

	applyStringOverride(&cfg.OutputDir, "PIXCONV_OUTPUT_DIR", "out", o.OutputDir,
		func(s string) bool { return strings.TrimSpace(s) != "" })
	applyIntOverride(&cfg.Workers, "PIXCONV_WORKERS", o.Workers, positive)
	applyIntOverride(&cfg.JPGQuality, "PIXCONV_JPG_QUALITY", o.JPGQuality, validQuality)
	applyIntOverride(&cfg.SVGJPGQuality, "PIXCONV_SVG_JPG_QUALITY", o.SVGJPGQuality, validQuality)
	applyIntOverride(&cfg.WebPQuality, "PIXCONV_WEBP_QUALITY", o.WebPQuality, validQuality)
	applyIntOverride(&cfg.AVIFQuality, "PIXCONV_AVIF_QUALITY", o.AVIFQuality, validQuality)
	applyIntOverride(&cfg.CompressQuality, "PIXCONV_COMPRESS_QUALITY", o.CompressQuality, validQuality)
	applyIntOverride(&cfg.IcoSize, "PIXCONV_ICO_SIZE", o.IcoSize, validIcoSize)
	applyIntOverride(&cfg.SVGScale, "PIXCONV_SVG_SCALE", o.SVGScale, validSVGScale)
	applyIntOverride(&cfg.MaxWidth, "PIXCONV_MAX_WIDTH", o.MaxWidth, positive)
	applyIntOverride(&cfg.MaxHeight, "PIXCONV_MAX_HEIGHT", o.MaxHeight, positive)

	// Out-of-range flag values are dropped silently by applyIntOverride
	// since 0 means "not set"; report the ones a user actually typed.
	if o.IcoSize != 0 && !validIcoSize(o.IcoSize) {
		log.Printf("Ignoring invalid -ico-size=%d (must be one of %v)", o.IcoSize, validIcoSizes)
	}
	if o.SVGScale != 0 && !validSVGScale(o.SVGScale) {
		log.Printf("Ignoring invalid -svg-scale=%d (must be one of %v)", o.SVGScale, validSVGScales)
	}

	applyBoolOverride(&cfg.Resize, "PIXCONV_RESIZE", o.Resize)
	applyBoolOverride(&cfg.AVIFFallback, "PIXCONV_AVIF_FALLBACK", o.AVIFFallback)
	applyBoolOverride(&cfg.Overwrite, "PIXCONV_OVERWRITE", o.Overwrite)

	keep := configKeepAspect(*cfg)
	applyBoolOverride(&keep, "PIXCONV_KEEP_ASPECT", o.KeepAspect)
	cfg.KeepAspect = &keep
}
