package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bdougie/framevocab/internal/extractor"
	"github.com/bdougie/framevocab/internal/models"
)

// ErrHelp is returned by parseArgs for -h and --help.
var ErrHelp = errors.New("help requested")

// Usage is printed for --help and configuration errors.
const Usage = `Usage: framevocab [flags] <video|dir>...

Flags:
  --video <path>            video to process (repeatable, same as a positional path)
  --output <dir>            output directory (default ".")
  --frame-gap <seconds>     seconds between sampled frames (default 5.0)
  --languages <id...>       OCR languages, combinable with + (default eng)
  --save-frames             write every sampled frame to frames/
  --save-frame-text         write the raw text of every frame to text/
  --debug                   debug logging and intermediate images in debug/
  --workers <n>             parallel recognition workers (default 1)
  --timeout <duration>      whole-run timeout, e.g. 30m (default none)
  --engine <name>           tesseract or ollama (default tesseract)
  --tesseract-args <args>   extra tesseract arguments, e.g. "--psm 6"
  --metrics-file <path>     write Prometheus metrics to this textfile
  --config <path>           YAML configuration file

Every setting can also be given as FRAMEVOCAB_<NAME> environment variable.
`

// cliArgs holds the flags that were given explicitly; nil means unset.
type cliArgs struct {
	configFile    string
	videos        []string
	languages     []string
	outputDir     *string
	frameGap      *float64
	workers       *int
	timeout       *time.Duration
	engine        *string
	tesseractArgs *string
	metricsFile   *string
	saveFrames    bool
	saveFrameText bool
	debug         bool
}

// parseArgs parses command line arguments without the program name.
// --languages consumes the following arguments until the next flag or an
// argument that looks like a file name, a path or an existing directory.
func parseArgs(args []string) (cliArgs, error) {
	var c cliArgs

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, inline, hasInline := strings.Cut(arg, "=")
		if !strings.HasPrefix(arg, "-") {
			c.videos = append(c.videos, arg)
			continue
		}

		value := func() (string, error) {
			if hasInline {
				return inline, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("%w: %s requires a value", models.ErrInvalidConfiguration, name)
			}
			i++
			return args[i], nil
		}

		var err error
		switch name {
		case "-h", "--help":
			return c, ErrHelp
		case "--save-frames":
			c.saveFrames = true
		case "--save-frame-text":
			c.saveFrameText = true
		case "--debug":
			c.debug = true
		case "--video":
			var v string
			if v, err = value(); err == nil {
				c.videos = append(c.videos, v)
			}
		case "--config":
			c.configFile, err = value()
		case "--output":
			c.outputDir, err = stringFlag(value)
		case "--engine":
			c.engine, err = stringFlag(value)
		case "--tesseract-args":
			c.tesseractArgs, err = stringFlag(value)
		case "--metrics-file":
			c.metricsFile, err = stringFlag(value)
		case "--frame-gap":
			var v string
			if v, err = value(); err == nil {
				var gap float64
				if gap, err = strconv.ParseFloat(v, 64); err != nil {
					err = fmt.Errorf("%w: --frame-gap %q is not a number", models.ErrInvalidConfiguration, v)
				}
				c.frameGap = &gap
			}
		case "--workers":
			var v string
			if v, err = value(); err == nil {
				var n int
				if n, err = strconv.Atoi(v); err != nil {
					err = fmt.Errorf("%w: --workers %q is not an integer", models.ErrInvalidConfiguration, v)
				}
				c.workers = &n
			}
		case "--timeout":
			var v string
			if v, err = value(); err == nil {
				var d time.Duration
				if d, err = time.ParseDuration(v); err != nil {
					err = fmt.Errorf("%w: --timeout %q is not a duration", models.ErrInvalidConfiguration, v)
				}
				c.timeout = &d
			}
		case "--languages":
			if hasInline {
				c.languages = append(c.languages, inline)
				break
			}
			for i+1 < len(args) && isLanguageArg(args[i+1]) {
				i++
				c.languages = append(c.languages, args[i])
			}
			if len(c.languages) == 0 {
				err = fmt.Errorf("%w: --languages requires at least one identifier", models.ErrInvalidConfiguration)
			}
		default:
			err = fmt.Errorf("%w: unknown flag %s", models.ErrInvalidConfiguration, name)
		}
		if err != nil {
			return c, err
		}
	}

	return c, nil
}

func stringFlag(value func() (string, error)) (*string, error) {
	v, err := value()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func isLanguageArg(arg string) bool {
	if strings.HasPrefix(arg, "-") || extractor.IsSupported(arg) {
		return false
	}
	// Language identifiers never look like paths or file names.
	if strings.ContainsAny(arg, `/\`) || filepath.Ext(arg) != "" {
		return false
	}
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return false
	}
	return true
}

// apply overrides cfg with every flag that was given.
func (c cliArgs) apply(cfg *Config) {
	if len(c.videos) > 0 {
		cfg.Videos = append([]string(nil), c.videos...)
	}
	if len(c.languages) > 0 {
		cfg.Languages = append([]string(nil), c.languages...)
	}
	if c.outputDir != nil {
		cfg.OutputDir = *c.outputDir
	}
	if c.frameGap != nil {
		cfg.FrameGap = *c.frameGap
	}
	if c.workers != nil {
		cfg.Workers = *c.workers
	}
	if c.timeout != nil {
		cfg.Timeout = *c.timeout
	}
	if c.engine != nil {
		cfg.Engine = *c.engine
	}
	if c.tesseractArgs != nil {
		cfg.Tesseract.Args = *c.tesseractArgs
	}
	if c.metricsFile != nil {
		cfg.MetricsFile = *c.metricsFile
	}
	if c.saveFrames {
		cfg.SaveFrames = true
	}
	if c.saveFrameText {
		cfg.SaveFrameText = true
	}
	if c.debug {
		cfg.Debug = true
	}
}
