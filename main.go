package main

import (
	"context"
	"embed"
	"log"
	"os"
	"os/signal"

	"github.com/abiiranathan/pdfmatch/chat"
	"github.com/abiiranathan/pdfmatch/cli"
	"github.com/abiiranathan/pdfmatch/edgar"
	"github.com/abiiranathan/pdfmatch/pdf"
	"github.com/abiiranathan/pdfmatch/routes"
	"github.com/abiiranathan/pdfmatch/server"
)

//go:embed all:templates
var viewsFs embed.FS

// Default configuration for the CLI
var config = &cli.DefaultConfig

func startServer() {
	logger := config.NewLogger(os.Stdout)

	svc := &routes.Services{
		Logger: logger,
		Open: func(path string) (routes.OpenedDocument, error) {
			doc, err := pdf.Open(path, pdf.WithDPI(config.DPI))
			if err != nil {
				return nil, err
			}
			return doc, nil
		},
		Chat:           chat.NewClient(config.ChatClientConfig(), logger),
		Filings:        edgar.NewClient(edgar.WithUserAgent(config.Edgar.UserAgent)),
		StaticDir:      config.StaticDir,
		FilingYear:     config.Edgar.Year,
		Workers:        config.MaxConcurrency,
		MaxUploadBytes: config.MaxUploadBytes,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := server.Run(ctx, config, viewsFs, svc); err != nil {
		log.Fatalln(err)
	}
}

func main() {
	log.SetPrefix("[pdfmatch]: ")
	log.SetFlags(log.Lshortfile)

	// Set the locale to the system's default
	pdf.SetLocale()

	// Values from the config file are overridden by command line flags.
	loaded, err := cli.LoadConfig(os.Getenv("PDFMATCH_CONFIG"))
	if err != nil {
		log.Fatalln(err)
	}
	*config = loaded

	// Parse the command line arguments
	ctx := cli.DefineFlags(config, startServer)
	subcmd, err := ctx.Parse(os.Args)
	if err != nil {
		log.Fatalln(err)
	}

	// If the subcommand is nil, print the usage and exit
	if subcmd == nil {
		ctx.PrintUsage(os.Stdout)
		os.Exit(1)
	}

	// Run the subcommand
	subcmd.Handler()
}
