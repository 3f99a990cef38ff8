package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janus-lang/dispatch/pkg/diagnostic"
	"github.com/janus-lang/dispatch/pkg/pipeline"
	"github.com/janus-lang/dispatch/pkg/resolve"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve every call site in the compilation unit and report the outcome",
		RunE:  runResolve,
	}
	cmd.Flags().Bool("json", false, "emit each non-success diagnostic as its JSON projection")
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	p, _, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close(cmd.Context())
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx := cmd.Context()
	visibleNames := visibleFunctionNames(p)

	var ambiguous, noMatch, internal, ok int
	for _, cs := range p.Compilation.CallSites {
		res := p.Resolve(ctx, cs)
		switch res.Outcome {
		case resolve.Success:
			ok++
			printSuccess(fmt.Sprintf("%s(%v) -> %s", cs.FunctionName, cs.ArgumentTypes, res.Implementation.FunctionId))
		case resolve.Ambiguous:
			ambiguous++
			reportFailure(ctx, p, res, visibleNames, asJSON)
		case resolve.NoMatch:
			noMatch++
			reportFailure(ctx, p, res, visibleNames, asJSON)
		case resolve.InternalError:
			internal++
			printError(res)
		}
	}

	printInfo(fmt.Sprintf("%d resolved, %d ambiguous, %d no_match, %d internal_error", ok, ambiguous, noMatch, internal))
	if ambiguous+noMatch+internal > 0 {
		return fmt.Errorf("resolve: %d call site(s) did not resolve uniquely", ambiguous+noMatch+internal)
	}
	return nil
}

func reportFailure(ctx context.Context, p *pipeline.Pipeline, res resolve.Result, visibleNames []string, asJSON bool) {
	d := p.Diagnose(ctx, res, visibleNames)
	if asJSON {
		b, err := json.MarshalIndent(diagnostic.ToJSON(d), "", "  ")
		if err != nil {
			printError(err)
			return
		}
		fmt.Println(string(b))
		return
	}
	fmt.Print(diagnostic.RenderTerminal(d, ""))
}

// visibleFunctionNames collects the unique simple names of every
// implementation in the compilation unit, for the diagnostic engine's
// "did you mean" typo hypothesis (§4.9).
func visibleFunctionNames(p *pipeline.Pipeline) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, impl := range p.Compilation.Implementations {
		name := impl.FunctionId.SimpleName
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}
