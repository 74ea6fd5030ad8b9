package main

import "flag"

// Options holds CLI options for the sender.
type Options struct {
    ConfigPath string
    Listen     string
    Name       string
    Files      []string
}

// ParseFlags parses CLI flags from args and returns Options. Positional
// arguments are the files to send.
func ParseFlags(args []string) Options {
    fs := flag.NewFlagSet("fastdrop-send", flag.ExitOnError)
    var opts Options
    fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    fs.StringVar(&opts.Listen, "listen", "0.0.0.0:0", "Data-channel listen address")
    fs.StringVar(&opts.Name, "name", "", "Advertised device name (default: app name from config)")
    _ = fs.Parse(args)
    opts.Files = fs.Args()
    return opts
}
