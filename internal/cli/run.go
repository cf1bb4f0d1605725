package cli

import "context"

// Result is the outcome of Run/Execute: a semantic exit code plus the
// program's final stdout-equivalent output buffer, mirroring the
// teacher's CLIResult shape.
type Result struct {
	ExitCode int
	Output   string
}

// Run is the high-level CLI entrypoint suitable for black-box tests: it
// parses args (excluding argv[0]) and executes the resulting invocation.
func Run(ctx context.Context, args []string) (Result, error) {
	inv, err := ParseInvocation(args)
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	return Execute(ctx, inv)
}
