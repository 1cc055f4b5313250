// Package pathutils expands user supplied filesystem paths, such as
// configuration files and token files, that refer to the home directory
// or to environment variables.
package pathutils
