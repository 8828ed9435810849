package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Args are command line arguments.
type Args struct {
	ConfigFile string
}

func getArgs() (Args, error) {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "configpath", "",
		"Path to the configuration file. If omitted, built-in defaults are used.")
	fs.StringVar(&configPath, "cp", "",
		"Path to the configuration file (shorthand).")

	if err := fs.Parse(os.Args[1:]); err != nil {
		// flag.ErrHelp comes back here for -h/--help.
		return Args{}, err
	}

	if fs.NArg() > 0 {
		fs.Usage()
		return Args{}, errors.Errorf("unknown argument: %s", fs.Arg(0))
	}

	if len(configPath) == 0 {
		return Args{}, nil
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return Args{}, errors.Wrapf(err,
			"unable to determine absolute path to config file: %s", configPath)
	}

	return Args{ConfigFile: absPath}, nil
}
