// Package process runs short-lived helper programs to completion.
//
// The registrar shells out to esptool for every device operation. Each
// invocation is one-shot: start, capture stdout and stderr, wait. When the
// caller's context is cancelled the whole process group receives SIGTERM,
// and SIGKILL follows if it has not exited within the graceful timeout, so
// no helper keeps the serial bridge busy after a run is aborted.
//
// Example usage:
//
//	res, err := process.NewExec().Run(ctx, process.Spec{
//	    Name:   "esptool",
//	    Binary: "esptool",
//	    Args:   []string{"version"},
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Print(res.Stdout)
package process
