package workers

// Worker defines the interface for all background workers
type Worker interface {
	// Start schedules the worker, it must not block
	Start() error

	// Stop gracefully stops the worker and waits for a running job
	Stop()

	// Name returns the worker name for logging
	Name() string
}
