// Command chanconfig resolves and prints the raw configuration value
// space for a channel and load path, for inspecting what modules will see
// before a process starts.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/chanconfig/source"
)

var (
	app      = kingpin.New("chanconfig", "Inspect resolved configuration values.")
	channel  = app.Flag("channel", "Deployment channel to resolve.").Short('c').Enum(source.Channels...)
	loadPath = app.Flag("load-path", "Colon-separated package roots to append.").Short('p').String()
	dirs     = app.Flag("dir", "Root searched for package base config files.").Default(".").Strings()
	home     = app.Flag("home", "Directory searched for home override files.").String()
	format   = app.Flag("format", "Output format.").Short('f').Default("toml").Enum("toml", "json")
	verbose  = app.Flag("verbose", "Log each source as it loads.").Short('v').Bool()
)

func main() {
	os.Exit(run())
}

func run() int {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	environ := os.Environ()
	if *channel != "" {
		environ = append(environ, source.EnvChannel+"="+*channel)
	}
	if *loadPath != "" {
		environ = append(environ, source.EnvLoadPath+"="+*loadPath)
	}

	loader := source.NewLoader()
	loader.Dirs = *dirs
	loader.Home = *home
	loader.Environ = environ
	loader.Log = log

	result, err := loader.Coalesce([]string{source.SelfPackage})
	if err != nil {
		log.Error().Err(err).Msg("coalescing sources")
		return 1
	}

	nested, err := source.Unflatten(result.Values)
	if err != nil {
		log.Error().Err(err).Msg("rebuilding nested values")
		return 1
	}

	switch *format {
	case "json":
		out, err := json.MarshalIndent(nested, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("encoding json")
			return 1
		}
		fmt.Println(string(out))
	default:
		// TOML has no nil; explicitly cleared values are dropped from the dump.
		out, err := toml.Marshal(dropNil(nested))
		if err != nil {
			log.Error().Err(err).Msg("encoding toml")
			return 1
		}
		fmt.Print(string(out))
	}
	return 0
}

// dropNil removes nil values, which TOML cannot represent.
func dropNil(m map[string]any) map[string]any {
	res := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case nil:
		case map[string]any:
			res[k] = dropNil(t)
		default:
			res[k] = v
		}
	}
	return res
}
