// Package main is the entry point for metercore.
package main

func main() {
	Execute()
}
