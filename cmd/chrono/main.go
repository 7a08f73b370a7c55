// Command chrono runs programs under sparse call tracing and inspects the
// traces they leave behind.
package main

func main() {
	Execute()
}
