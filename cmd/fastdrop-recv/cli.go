package main

import "flag"

// Options holds CLI options for the receiver.
type Options struct {
    ConfigPath string
    Ticket     string
    OutDir     string
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
    fs := flag.NewFlagSet("fastdrop-recv", flag.ExitOnError)
    var opts Options
    fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    fs.StringVar(&opts.Ticket, "ticket", "", "Session ticket (base64url); prompted for when omitted")
    fs.StringVar(&opts.OutDir, "out", "", "Download directory (default: from config)")
    _ = fs.Parse(args)
    return opts
}
