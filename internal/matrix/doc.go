// Package matrix provides a typed client for the MatrixALM/QMS REST API.
//
// Client fetches project metadata, the project tree, and item detail records,
// and uploads files into item fields. TokenResolver resolves the API token from
// env:NAME or file:/path declarations.
package matrix
