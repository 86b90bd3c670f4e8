// Command overseer inspects and answers the oversight state of an agent
// project: turn counter, checkpoints and pending approval requests.
package main

func main() {
	Execute()
}
