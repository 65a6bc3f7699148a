// Package registry provides a generic, type-safe registry system
// for managing pipeline steps and named pipelines. It supports
// automatic registration through init() functions.
package registry
