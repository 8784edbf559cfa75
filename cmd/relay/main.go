// Command relay is an operator-gated console for talking to language models
// that can request local tools.
package main

func main() {
	Execute()
}
