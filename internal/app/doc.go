// Package app wires the forecast service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration (defaults, config.yaml, SALES_* environment)
//  2. Initialize logging and OpenTelemetry
//  3. Create the model registry and the session store
//  4. Initialize services with their dependencies
//  5. Set up HTTP handlers and middleware
//  6. Start the server, the session janitor and the model warm-up
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then stops accepting connections, waits
// for in-flight requests up to the shutdown timeout, stops the janitor and
// flushes telemetry.
//
// The app never calls os.Exit; all initialization errors are returned to
// the caller.
package app
