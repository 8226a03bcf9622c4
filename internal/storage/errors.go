package storage

import "github.com/cockroachdb/errors"

var (
	// ErrNotFound is returned when a matched node does not exist
	ErrNotFound = errors.New("node not found")

	// ErrUniqueViolation is returned when a write would duplicate an indexed value
	ErrUniqueViolation = errors.New("unique constraint violated")

	// ErrRelationshipExists is returned when a node already has a relationship it must not have
	ErrRelationshipExists = errors.New("relationship already exists")

	// ErrExpectationFailed is returned when a matched node's properties differ from the expected ones
	ErrExpectationFailed = errors.New("node properties do not match")

	// ErrNoIndex is returned when looking up a label.key that was not declared as an index
	ErrNoIndex = errors.New("no index declared")

	// ErrUnavailable marks failures of the storage engine itself
	ErrUnavailable = errors.New("store unavailable")

	// ErrIncompatibleSchema is returned when opening a store written with another major schema version
	ErrIncompatibleSchema = errors.New("incompatible store schema")

	// ErrClosed is returned by a graph after Close
	ErrClosed = errors.New("graph closed")
)
