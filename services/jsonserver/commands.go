package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/jsonserver/core/backend"
	"github.com/relabs-tech/jsonserver/core/storage"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	hintColor    = color.New(color.FgHiBlack)
	routeColor   = color.New(color.FgBlue)
	boldColor    = color.New(color.Bold)
)

// newRootCommand returns the jsonserver command. Flag defaults come from env.
func newRootCommand(env *Service) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "jsonserver [file]",
		Short: "A REST API for a JSON file",
		Long: `jsonserver serves a full REST API for the resources of a JSON document.

Every top level key of the document becomes a resource: lists get collection and
item routes, objects get a single route. Changes are written back to the document.

Get started:
  jsonserver --try-server
  jsonserver db.json --port 8080 --path /api`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return run(ctx, env, o, args)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&o.port, "port", "p", env.Port, "port to listen on")
	flags.StringVarP(&o.host, "host", "H", env.Host, "host to listen on")
	flags.StringArrayVarP(&o.static, "static", "s", nil, "static files directory, can be given multiple times")
	flags.BoolVarP(&o.auth, "auth", "a", false, "require a token for all routes, see /auth/login")
	flags.StringVarP(&o.path, "path", "P", "", "path prefix for all resource routes, e.g. /api")
	flags.BoolVarP(&o.returnObject, "return-object", "o", false, "wrap responses as {code, message, data}")
	flags.BoolVarP(&o.tryServer, "try-server", "t", false, "start with a sample document written to "+tryServerFile)
	flags.StringVarP(&o.delay, "delay", "d", "", `delay responses by some milliseconds, "auto" picks 300 to 1000 ms per request`)
	flags.StringVar(&o.storage, "storage", string(storage.DriverTypeLocal), "where the document lives: local, memory, s3 or postgres")
	flags.BoolVar(&o.watch, "watch", true, "reload the document when the local file changes")
	flags.BoolVar(&o.accessLog, "access-log", false, "write an access log to stdout")
	flags.StringVar(&o.logLevel, "log-level", env.LogLevel, "log level: debug, info, warn or error")

	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jsonserver %s\n", backend.Version)
		},
	}
}

// Execute runs the root command
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
