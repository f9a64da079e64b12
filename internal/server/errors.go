package server

import "errors"

var (
	// ErrMissingRuntime is returned when the php executable does not exist
	ErrMissingRuntime = errors.New("php runtime not found")
	// ErrPortUnavailable is returned when the port is tracked or cannot be bound
	ErrPortUnavailable = errors.New("port unavailable")
	// ErrMissingDocumentRoot is returned when the document root is not a directory
	ErrMissingDocumentRoot = errors.New("document root not found")
	// ErrSpawn is returned when the child process cannot be started
	ErrSpawn = errors.New("failed to start server process")
	// ErrProcessDiedEarly is returned when the server exits during the grace period
	ErrProcessDiedEarly = errors.New("server process exited during startup")
	// ErrNotFound is returned for an unknown server id
	ErrNotFound = errors.New("server not found")
	// ErrClosed is returned by Start after Close
	ErrClosed = errors.New("manager closed")
)
