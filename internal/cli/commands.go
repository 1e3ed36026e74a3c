// Copyright 2025 mcpgate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli wires the mcpgate commands: parse and tools for offline
// inspection of an OpenAPI document, serve for running the gateway.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"
	"github.com/urfave/cli/v3"

	"github.com/mcpgate/mcpgate/pkg/server"
	"github.com/mcpgate/mcpgate/pkg/spec"
	"github.com/mcpgate/mcpgate/pkg/tools"
)

// GetCommands returns the top-level mcpgate commands.
func GetCommands() []*cli.Command {
	return []*cli.Command{
		parseCommand(),
		toolsCommand(),
		serveCommand(),
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "Path to an OpenAPI document on disk.",
		},
		&cli.StringFlag{
			Name:  "url",
			Usage: "URL of an OpenAPI document.",
		},
		&cli.StringSliceFlag{
			Name:    "routes",
			Aliases: []string{"r"},
			Usage:   "Route filter patterns; paths must match one as a regex prefix.",
		},
	}
}

// sourceFrom enforces that exactly one of --file and --url is set.
func sourceFrom(cmd *cli.Command) (string, error) {
	file, url := cmd.String("file"), cmd.String("url")
	switch {
	case file != "" && url != "":
		return "", cli.Exit("specify either --file or --url, not both", 1)
	case file != "":
		return file, nil
	case url != "":
		return url, nil
	default:
		return "", cli.Exit("one of --file or --url is required", 1)
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Load an OpenAPI document and print the resolved paths.",
		Flags: sourceFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			source, err := sourceFrom(cmd)
			if err != nil {
				return err
			}
			// No cache here: inspection should always reflect the document.
			resolved, err := spec.NewLoader().Load(ctx, source, cmd.StringSlice("routes"))
			if err != nil {
				return err
			}
			fmt.Print(resolved.Summary())
			return nil
		},
	}
}

func toolsCommand() *cli.Command {
	flags := append(sourceFlags(),
		&cli.StringSliceFlag{
			Name:  "forward-params",
			Usage: "Query parameter names injected by the gateway; hidden from tools.",
		},
	)
	return &cli.Command{
		Name:  "tools",
		Usage: "Compile an OpenAPI document and print the resulting MCP tools.",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			source, err := sourceFrom(cmd)
			if err != nil {
				return err
			}
			resolved, err := spec.NewLoader().Load(ctx, source, cmd.StringSlice("routes"))
			if err != nil {
				return err
			}
			compiled := tools.NewCompiler(cmd.StringSlice("forward-params")...).Compile(resolved)
			printTools(compiled)
			return nil
		},
	}
}

func printTools(compiled []tools.Tool) {
	fmt.Printf("Tools: %d\n", len(compiled))
	for _, t := range compiled {
		fmt.Printf("\n%s  %s %s\n", t.Name, t.Method, t.Path)
		if t.Description != "" {
			fmt.Printf("  %s\n", t.Description)
		}
		for _, p := range t.Parameters() {
			line := fmt.Sprintf("  - %s (%s", p.Name, p.Type)
			if p.Required {
				line += ", required"
			}
			line += ")"
			if p.RequestBodyField != "" {
				line += " -> body." + p.RequestBodyField
			}
			if p.Description != "" {
				line += " " + p.Description
			}
			fmt.Println(line)
		}
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP gateway from a servers.yaml config.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "servers.yaml",
				Usage:   "Path to the gateway config file.",
			},
			&cli.StringFlag{
				Name:  "port",
				Value: "8080",
				Usage: "HTTP listen port, ignored for stdio transport.",
			},
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Value:   "http",
				Usage:   "Transport protocol: http or stdio.",
			},
			&cli.StringFlag{
				Name:  "namespace",
				Usage: "Namespace to expose on stdio transport; defaults to the only configured one.",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Reload the gateway when the config file changes.",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServe(ctx, serveParams{
				Config:    cmd.String("config"),
				Port:      cmd.String("port"),
				Transport: cmd.String("transport"),
				Namespace: cmd.String("namespace"),
				Watch:     cmd.Bool("watch"),
			})
		},
	}
}

type serveParams struct {
	Config    string
	Port      string
	Transport string
	Namespace string
	Watch     bool
}

func runServe(ctx context.Context, params serveParams) error {
	manager := server.NewManager(params.Config)
	if err := manager.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load gateway config: %w", err)
	}

	if params.Watch {
		watcher := server.NewWatcher(params.Config, func() {
			if err := manager.Reload(ctx); err != nil {
				log.Error().Err(err).Msg("reload failed, keeping previous state")
			}
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Error().Err(err).Msg("config watcher stopped")
			}
		}()
	}

	switch strings.ToLower(params.Transport) {
	case "http":
		return manager.Serve(ctx, ":"+params.Port)
	case "stdio":
		name := params.Namespace
		if name == "" {
			namespaces := manager.Namespaces()
			if len(namespaces) != 1 {
				return cli.Exit("--namespace is required when more than one server is configured", 1)
			}
			name = namespaces[0]
		}
		return manager.ServeStdio(name)
	default:
		return cli.Exit(fmt.Sprintf("unsupported transport: %s", params.Transport), 1)
	}
}
