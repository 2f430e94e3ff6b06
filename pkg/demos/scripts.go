package demos

import "context"

// RunScripts only points at the stored procedure samples.
func RunScripts(_ context.Context, env *Env) error {
	env.Console.Println("The demo has yet to be implemented. In the interim, please visit the")
	env.Console.Println(`"DocumentDB Samples" site (https://github.com/hjgraca/documentdbsamples)`)
	env.Console.Println("for more info.")
	env.Console.Println()
	return nil
}
