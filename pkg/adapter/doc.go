// Package adapter translates between the host's chat types (package api) and
// the provider's Chat Completions wire types (package provider).
//
// Every function is pure. The only configuration is the model id prefix the
// host sees in front of provider-native ids, held by [Adapter].
package adapter
