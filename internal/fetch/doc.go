// Package fetch retrieves a single URL through a leased circuit and
// turns the response into a model.FetchResult.
//
// The fetcher enforces the wall-clock timeout and the byte cap,
// classifies failures into the fetch status taxonomy, and extracts
// outbound links deterministically. It never retries: retry policy lives
// in the orchestrator so circuit rotation decisions stay centralized.
package fetch
