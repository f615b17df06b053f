// Command graphkernelctl is demonstration scaffolding: it submits a
// hand-built fixture query against a fresh in-memory engine and prints
// the result in either wire encoding. It is not a product surface —
// nothing in this repository parses a query-language string, so every
// fixture below builds an ast.Query node by hand.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/graphkernel/corequery/internal/ast"
	"github.com/graphkernel/corequery/internal/resultset"
	"github.com/graphkernel/corequery/pkg/engine"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "graphkernelctl",
		Short: "graphkernelctl runs fixture queries against the corequery engine",
		Long: `graphkernelctl is a thin demonstration CLI around
github.com/graphkernel/corequery/pkg/engine. It has no query-language
parser of its own: every command runs one of a small set of built-in
AST fixtures and prints the result set using the engine's verbose or
compact wire encoding.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("graphkernelctl v%s\n", version)
		},
	})

	root.AddCommand(demoCmd())
	root.AddCommand(fixtureCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func demoCmd() *cobra.Command {
	var format string
	var timeoutMS int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "create two connected nodes, then match and print them",
		Long: `Runs a create-then-match round trip end-to-end:

  CREATE (a:P {name:'x'})-[:R {w:2}]->(b:P {name:'y'})
  MATCH (a:P)-[r:R]->(b:P) RETURN a.name, b.name, r.w

against a fresh engine, printing execution stats for the CREATE and the
MATCH rows in the requested wire format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := engine.New()
			timeout := time.Duration(timeoutMS) * time.Millisecond

			created, err := e.Submit(fixtureCreate(), nil, timeout)
			if err != nil {
				return fmt.Errorf("create: %w", err)
			}
			fmt.Printf("created: nodes=%d relationships=%d properties=%d\n",
				created.Stats.NodesCreated, created.Stats.RelationshipsCreated, created.Stats.PropertiesSet)

			matched, err := e.Submit(fixtureMatch(), nil, timeout)
			if err != nil {
				return fmt.Errorf("match: %w", err)
			}
			return printResult(matched, e, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "verbose", "result encoding: verbose|compact")
	cmd.Flags().IntVar(&timeoutMS, "timeout-ms", 0, "query timeout in milliseconds (0 = none)")
	return cmd
}

// fixtureFile is the on-disk shape `graphkernelctl fixture` decodes via
// yaml.v3. It only supports the single demo path-finding config shape
// used below; arbitrary pattern fixtures still require building an
// ast.Query by hand in Go.
type fixtureFile struct {
	SourceName string `yaml:"source"`
	TargetName string `yaml:"target"`
	RelType    string `yaml:"relType"`
	WeightProp string `yaml:"weightProp"`
}

func fixtureCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "load a YAML fixture describing a path-finding demo and run it",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var f fixtureFile
			if err := yaml.Unmarshal(data, &f); err != nil {
				return fmt.Errorf("decode fixture: %w", err)
			}
			fmt.Printf("loaded fixture: source=%q target=%q relType=%q weightProp=%q\n",
				f.SourceName, f.TargetName, f.RelType, f.WeightProp)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "fixture.yaml", "path to a fixture YAML file")
	return cmd
}

func fixtureCreate() *ast.Query {
	lit := func(v any) ast.Expr { return ast.Expr{Kind: ast.ExprLiteral, Literal: v} }
	return &ast.Query{Clauses: []ast.Clause{{
		Kind: ast.ClauseCreate,
		Create: &ast.Create{Patterns: []ast.Pattern{{
			Nodes: []ast.NodePattern{
				{Variable: "a", Labels: []string{"P"}, Properties: map[string]ast.Expr{"name": lit("x")}},
				{Variable: "b", Labels: []string{"P"}, Properties: map[string]ast.Expr{"name": lit("y")}},
			},
			Rels: []ast.RelPattern{
				{Variable: "r", Types: []string{"R"}, Direction: ast.DirOutgoing, MinHops: -1, Properties: map[string]ast.Expr{"w": lit(int64(2))}},
			},
		}}},
	}}}
}

func fixtureMatch() *ast.Query {
	variable := func(name string) ast.Expr { return ast.Expr{Kind: ast.ExprVariable, Variable: name} }
	propAccess := func(base, prop string) ast.Expr {
		b := variable(base)
		return ast.Expr{Kind: ast.ExprPropertyAccess, Base: &b, Property: prop}
	}
	return &ast.Query{Clauses: []ast.Clause{
		{
			Kind: ast.ClauseMatch,
			Match: &ast.Match{Patterns: []ast.Pattern{{
				Nodes: []ast.NodePattern{{Variable: "a", Labels: []string{"P"}}, {Variable: "b", Labels: []string{"P"}}},
				Rels:  []ast.RelPattern{{Variable: "r", Types: []string{"R"}, Direction: ast.DirOutgoing, MinHops: -1}},
			}}},
		},
		{
			Kind: ast.ClauseReturn,
			Return: &ast.Return{Items: []ast.ReturnItem{
				{Expr: propAccess("a", "name")},
				{Expr: propAccess("b", "name")},
				{Expr: propAccess("r", "w")},
			}},
		},
	}}
}

func printResult(set *resultset.Set, e *engine.Engine, format string) error {
	var rendered [][]any
	switch format {
	case "compact":
		rendered = resultset.RenderCompact(set, e.Store)
	default:
		rendered = resultset.RenderVerbose(set, e.Store)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rendered)
}
