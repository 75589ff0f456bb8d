// Package main is the entry point for the meterd service.
package main

func main() {
	Execute()
}
