//go:build !unix

package main

type visibilityTarget interface {
	SetVisible(visible bool)
}

// watchVisibility is a no-op where job control signals do not exist.
func watchVisibility(visibilityTarget) func() { return func() {} }
