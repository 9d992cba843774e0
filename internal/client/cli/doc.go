// Package cli provides the GophDrop command-line client.
//
// Two subcommands mirror the server API: upload sends a local file through
// a presigned form POST and prints the file id; download redeems an id and
// saves the file, which the server deletes on first download. PINs are read
// from the terminal without echo. Downloads never overwrite existing files.
package cli
