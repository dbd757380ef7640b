// Package chat implements the host's chat-provider contract on top of a
// provider transport.
//
// A [Service] resolves the API key for every call, lists models through a
// process-wide cache, translates host requests with the adapter, and drives
// the streaming reassembler so response parts reach the caller's sink as
// soon as they are produced. It is shared by the HTTP server and the CLI.
package chat
