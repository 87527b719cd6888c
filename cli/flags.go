package cli

import (
	"context"
	"log"
	"os"

	"github.com/abiiranathan/goflag"
)

func DefineFlags(config *Config, runserver func()) *goflag.Context {
	patternFlag := goflag.Flag{
		FlagType:  goflag.FlagString,
		Name:      "pattern",
		ShortName: "p",
		Value:     &config.Pattern,
		Usage:     "The regular expression to search for",
		Required:  true,
		Validator: nil,
	}

	beforeFlag := goflag.Flag{
		FlagType:  goflag.FlagInt,
		Name:      "before",
		ShortName: "b",
		Value:     &config.Before,
		Usage:     "Characters of context before the match",
		Required:  false,
		Validator: nil,
	}

	afterFlag := goflag.Flag{
		FlagType:  goflag.FlagInt,
		Name:      "after",
		ShortName: "a",
		Value:     &config.After,
		Usage:     "Characters of context after the match",
		Required:  false,
		Validator: nil,
	}

	// Create flag context.
	ctx := goflag.NewContext()

	// global flags
	ctx.AddFlag(goflag.FlagInt, "concurrency", "c",
		&config.MaxConcurrency,
		"No of pages processed at once",
		false, goflag.Min(1), goflag.Max(100))

	ctx.AddSubCommand("search_file", "Search a single PDF, text or HTML file", func() {
		res, err := SearchFile(context.Background(), config)
		if err != nil {
			log.Fatalln(err)
		}
		printResult(os.Stdout, config.Filename, res)
	}).AddFlag(goflag.FlagFilePath, "file", "f", &config.Filename, "The file to search", true).
		AddFlag(goflag.FlagString, "out", "o", &config.Output, "Write the highlighted first matching page to this PNG", false).
		AddFlagPtr(&patternFlag).
		AddFlagPtr(&beforeFlag).
		AddFlagPtr(&afterFlag)

	ctx.AddSubCommand("search_dir", "Search every PDF in a directory recursively", func() {
		results, err := SearchDir(context.Background(), config)
		if err != nil {
			log.Fatalln(err)
		}
		for _, r := range results {
			printResult(os.Stdout, r.Filename, r.Result)
		}
	}).AddFlag(goflag.FlagDirPath, "directory", "d", &config.Directory, "The directory to search", true).
		AddFlagPtr(&patternFlag).
		AddFlagPtr(&beforeFlag).
		AddFlagPtr(&afterFlag)

	// Run server
	ctx.AddSubCommand("runserver", "Start an Http server for search", runserver).
		AddFlag(goflag.FlagInt, "port", "p", &config.Port, "The port to run the server on", false).
		AddFlag(goflag.FlagString, "static", "s", &config.StaticDir, "Directory for generated page images", false)

	return ctx
}
