// Command chatbridge bridges an OpenRouter-style chat completion API to
// the chat provider contract of a host IDE.
//
// Usage:
//
//	chatbridge serve                 run the HTTP surface
//	chatbridge models [--json]       list the models the provider offers
//	chatbridge chat "prompt"         stream one conversation to the terminal
//	chatbridge key set|delete        manage the stored provider API key
//	chatbridge token <subject>       issue a bearer token for auth.type jwt
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
