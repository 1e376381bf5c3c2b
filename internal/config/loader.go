package config

import "context"

// Loader translates one or more pipeline definition files into the
// format-agnostic Model. Implementations exist for HCL and YAML; the app
// picks one based on the file extension.
type Loader interface {
	// Load parses every given path (files or directories) and returns a
	// single merged model. Declaration order across files follows the
	// lexical order of the paths.
	Load(ctx context.Context, paths ...string) (*Model, error)
}
