// Package application provides application initialization and dependency wiring.
// It mounts static and media files next to the API routes, wraps them in the
// request middleware chain and builds the HTTP server, keeping the main
// package focused on CLI parsing and orchestration.
package application
