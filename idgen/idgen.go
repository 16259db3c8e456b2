// Package idgen provides pluggable ID generation.
//
// Constructors across the module accept a Generator, making the ID strategy
// a startup-time decision rather than a compile-time one. Session ids use
// short NanoIDs over a confusion-free alphabet so they survive being read
// aloud or typed into an inspect command.
package idgen

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

// friendlyAlphabet omits characters that are easy to confuse when read
// back by an operator: 0/o, 1/l.
const friendlyAlphabet = "23456789abcdefghijkmnpqrstuvwxyz"

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator producing IDs of the given length drawn from
// the friendly alphabet. Short, URL-safe, path-safe (ids name browser
// profile directories).
func NanoID(length int) Generator {
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		b := make([]byte, length)
		for i := range b {
			b[i] = friendlyAlphabet[int(buf[i])%len(friendlyAlphabet)]
		}
		return string(b)
	}
}

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings.
// Time-sortable, globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Timestamped returns a Generator producing "20060102T150405Z_<suffix>"
// IDs, where the suffix comes from the inner generator.
func Timestamped(gen Generator) Generator {
	return func() string {
		return time.Now().UTC().Format("20060102T150405Z") + "_" + gen()
	}
}

// Default is the module default: UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}
